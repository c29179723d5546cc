package store

import "time"

// CodeSession is the saved state of one room's shared buffer.
type CodeSession struct {
	ID        string
	RoomID    string
	Code      string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CodeVersion is one snapshot in a session's append-only history.
type CodeVersion struct {
	ID        int64
	RoomID    string
	Code      string
	CreatedAt time.Time
}
