package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrSessionNotFound means no code has ever been saved for the room.
var ErrSessionNotFound = errors.New("code session not found")

// SaveSession upserts a room's buffer + language and appends a version
// record, matching an explicit user save.
func (p *Postgres) SaveSession(ctx context.Context, roomID, code, language string) error {
	if roomID == "" {
		return errors.New("roomId required")
	}
	if language == "" {
		language = "javascript"
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO code_sessions (room_id, code, language)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id) DO UPDATE
		SET code = EXCLUDED.code, language = EXCLUDED.language, updated_at = NOW()
	`, roomID, code, language); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO code_session_versions (room_id, code)
		VALUES ($1, $2)
	`, roomID, code); err != nil {
		return fmt.Errorf("append version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	p.log.Info("session.saved", "room", roomID, "bytes", len(code))
	return nil
}

// SaveCode upserts the buffer only, keeping the stored language. Used by
// the relay autosave, which has no business writing history rows on
// every debounce tick.
func (p *Postgres) SaveCode(ctx context.Context, roomID, code string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO code_sessions (room_id, code)
		VALUES ($1, $2)
		ON CONFLICT (room_id) DO UPDATE
		SET code = EXCLUDED.code, updated_at = NOW()
	`, roomID, code)
	return err
}

// GetSession fetches the saved state for a room.
func (p *Postgres) GetSession(ctx context.Context, roomID string) (CodeSession, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, room_id, code, language, created_at, updated_at
		FROM code_sessions
		WHERE room_id = $1
	`, roomID)

	var s CodeSession
	if err := row.Scan(&s.ID, &s.RoomID, &s.Code, &s.Language, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CodeSession{}, ErrSessionNotFound
		}
		return CodeSession{}, err
	}
	return s, nil
}

// ListVersions returns a room's saved snapshots, newest first.
func (p *Postgres) ListVersions(ctx context.Context, roomID string, limit int) ([]CodeVersion, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, room_id, code, created_at
		FROM code_session_versions
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CodeVersion
	for rows.Next() {
		var v CodeVersion
		if err := rows.Scan(&v.ID, &v.RoomID, &v.Code, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
