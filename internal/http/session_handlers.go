package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Sajalrastogi191/CodeWithPair/internal/runner"
	"github.com/Sajalrastogi191/CodeWithPair/internal/store"
)

// SessionStore is the slice of the store the session API needs; keeps
// the handlers testable without a live database.
type SessionStore interface {
	SaveSession(ctx context.Context, roomID, code, language string) error
	GetSession(ctx context.Context, roomID string) (store.CodeSession, error)
	ListVersions(ctx context.Context, roomID string, limit int) ([]store.CodeVersion, error)
}

// Stats reports the relay hub's current load.
type Stats interface {
	Stats() (rooms, clients int)
}

type SessionsAPI struct {
	DB     SessionStore
	Runner *runner.Client
	Hub    Stats
}

type saveReq struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

type sessionResponse struct {
	RoomID    string    `json:"roomId"`
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type versionResponse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

type executeReq struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Code     string `json:"code"`
}

// Save persists a room's buffer and appends a version record.
func (a *SessionsAPI) Save(w http.ResponseWriter, r *http.Request) {
	var req saveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := a.DB.SaveSession(r.Context(), req.RoomID, req.Code, req.Language); err != nil {
		http.Error(w, "failed to save code", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "Code saved"})
}

// Get returns the last saved state for a room.
func (a *SessionsAPI) Get(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	if roomID == "" {
		http.Error(w, "roomId required", http.StatusBadRequest)
		return
	}

	s, err := a.DB.GetSession(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, sessionResponse{
		RoomID: s.RoomID, Code: s.Code, Language: s.Language, UpdatedAt: s.UpdatedAt,
	})
}

// Versions lists a room's saved snapshots, newest first.
func (a *SessionsAPI) Versions(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	if roomID == "" {
		http.Error(w, "roomId required", http.StatusBadRequest)
		return
	}

	versions, err := a.DB.ListVersions(r.Context(), roomID, 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		resp = append(resp, versionResponse{ID: v.ID, Code: v.Code, CreatedAt: v.CreatedAt})
	}
	writeJSON(w, resp)
}

// Execute forwards code to the external runner and returns its output.
// Sharing the result with the room is the client's job, via sync-output.
func (a *SessionsAPI) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Language == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	res, err := a.Runner.Execute(r.Context(), req.Language, req.Version, req.Code)
	if err != nil {
		http.Error(w, "execution failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, res)
}

// Stats reports active rooms and open connections on this instance.
func (a *SessionsAPI) Stats(w http.ResponseWriter, _ *http.Request) {
	rooms, clients := a.Hub.Stats()
	writeJSON(w, map[string]int{"rooms": rooms, "clients": clients})
}
