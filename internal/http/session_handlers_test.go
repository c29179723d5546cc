package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sajalrastogi191/CodeWithPair/internal/store"
)

type fakeStore struct {
	sessions map[string]store.CodeSession
	versions map[string][]store.CodeVersion
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]store.CodeSession{},
		versions: map[string][]store.CodeVersion{},
	}
}

func (f *fakeStore) SaveSession(_ context.Context, roomID, code, language string) error {
	if language == "" {
		language = "javascript"
	}
	f.sessions[roomID] = store.CodeSession{RoomID: roomID, Code: code, Language: language, UpdatedAt: time.Now()}
	f.versions[roomID] = append(f.versions[roomID], store.CodeVersion{
		ID: int64(len(f.versions[roomID]) + 1), RoomID: roomID, Code: code, CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, roomID string) (store.CodeSession, error) {
	s, ok := f.sessions[roomID]
	if !ok {
		return store.CodeSession{}, store.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeStore) ListVersions(_ context.Context, roomID string, _ int) ([]store.CodeVersion, error) {
	return f.versions[roomID], nil
}

type fakeHub struct{ rooms, clients int }

func (f fakeHub) Stats() (int, int) { return f.rooms, f.clients }

func TestSessionsAPI_SaveAndGet(t *testing.T) {
	db := newFakeStore()
	api := &SessionsAPI{DB: db}

	body := `{"roomId":"r1","code":"x=1","language":"python"}`
	req := httptest.NewRequest(http.MethodPost, "/api/save", strings.NewReader(body))
	rec := httptest.NewRecorder()
	api.Save(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, true, saved["success"])
	assert.Len(t, db.versions["r1"], 1)

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/r1", nil)
	req.SetPathValue("roomId", "r1")
	rec = httptest.NewRecorder()
	api.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "x=1", got.Code)
	assert.Equal(t, "python", got.Language)
}

func TestSessionsAPI_SaveRejectsBadPayload(t *testing.T) {
	api := &SessionsAPI{DB: newFakeStore()}

	for _, body := range []string{"not json", `{"code":"x"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/save", strings.NewReader(body))
		rec := httptest.NewRecorder()
		api.Save(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestSessionsAPI_GetUnknownRoom(t *testing.T) {
	api := &SessionsAPI{DB: newFakeStore()}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil)
	req.SetPathValue("roomId", "nope")
	rec := httptest.NewRecorder()
	api.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsAPI_Versions(t *testing.T) {
	db := newFakeStore()
	require.NoError(t, db.SaveSession(context.Background(), "r1", "v1", ""))
	require.NoError(t, db.SaveSession(context.Background(), "r1", "v2", ""))
	api := &SessionsAPI{DB: db}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/r1/versions", nil)
	req.SetPathValue("roomId", "r1")
	rec := httptest.NewRecorder()
	api.Versions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []versionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestSessionsAPI_Stats(t *testing.T) {
	api := &SessionsAPI{Hub: fakeHub{rooms: 2, clients: 5}}

	rec := httptest.NewRecorder()
	api.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got["rooms"])
	assert.Equal(t, 5, got["clients"])
}
