package session

import "encoding/json"

// Kind names a relay event. The wire names are fixed by the client protocol.
type Kind string

const (
	KindJoin           Kind = "join"
	KindJoined         Kind = "joined"
	KindDisconnected   Kind = "disconnected"
	KindCodeChange     Kind = "code-change"
	KindSyncCode       Kind = "sync-code"
	KindLeave          Kind = "leave"
	KindSendMessage    Kind = "send-message"
	KindReceiveMessage Kind = "receive-message"
	KindCursorChange   Kind = "cursor-change"
	KindSyncOutput     Kind = "sync-output"
	KindLanguageChange Kind = "language-change"
)

// Envelope is the frame exchanged on the websocket: a kind plus a
// kind-specific payload that the core mostly treats as opaque.
type Envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode marshals a payload into a ready-to-send envelope frame.
func Encode(kind Kind, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: kind, Data: raw})
}

// Member is one entry of a room membership list.
type Member struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// JoinedPayload is fanned out to every member of the room, the joiner
// included, so the joiner can learn its own socket ID and request a
// buffer snapshot from a peer.
type JoinedPayload struct {
	Clients  []Member `json:"clients"`
	Username string   `json:"username"`
	SocketID string   `json:"socketId"`
}

type DisconnectedPayload struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

type CodeChangePayload struct {
	RoomID string `json:"roomId,omitempty"`
	Code   string `json:"code"`
}

// SyncCodePayload carries the full editor state one member hands to a
// late joiner. Inbound, SocketID addresses the recipient; outbound it
// is cleared.
type SyncCodePayload struct {
	SocketID  string `json:"socketId,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	Code      string `json:"code"`
	Language  string `json:"language,omitempty"`
	Output    string `json:"output,omitempty"`
	IsRunning bool   `json:"isRunning,omitempty"`
}

type CursorChangePayload struct {
	RoomID   string          `json:"roomId,omitempty"`
	Cursor   json.RawMessage `json:"cursor"`
	SocketID string          `json:"socketId,omitempty"`
	Username string          `json:"username,omitempty"`
}

type ChatPayload struct {
	RoomID   string `json:"roomId,omitempty"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

type SyncOutputPayload struct {
	RoomID    string `json:"roomId,omitempty"`
	Output    string `json:"output"`
	IsRunning bool   `json:"isRunning"`
}

type LanguageChangePayload struct {
	RoomID   string `json:"roomId,omitempty"`
	Language string `json:"language"`
}
