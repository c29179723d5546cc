package httpx

import (
	"net/http"

	"log/slog"

	"github.com/Sajalrastogi191/CodeWithPair/internal/app"
	"github.com/Sajalrastogi191/CodeWithPair/internal/runner"
	"github.com/Sajalrastogi191/CodeWithPair/internal/store"
	"github.com/Sajalrastogi191/CodeWithPair/internal/ws"
	"github.com/Sajalrastogi191/CodeWithPair/pkg/auth"
	"github.com/Sajalrastogi191/CodeWithPair/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, logger *slog.Logger, hub *ws.Hub, db *store.Postgres) http.Handler {
	mw := NewMiddleware(cfg)
	sessions := &SessionsAPI{
		DB:     db,
		Runner: runner.New(cfg.RunnerURL, logger),
		Hub:    hub,
	}
	authAPI := &AuthAPI{DB: db, JWT: auth.New(cfg.JWTSecret)}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint
	mux.Handle("/ws", http.HandlerFunc(hub.ServeWS))

	// Auth endpoints
	mux.Handle("POST /api/auth/register", http.HandlerFunc(authAPI.Register))
	mux.Handle("POST /api/auth/login", http.HandlerFunc(authAPI.Login))
	mux.Handle("GET /api/auth/me", mw.Auth(http.HandlerFunc(authAPI.Me)))

	// Session endpoints. Save stays open so the editor can save without
	// an account; the history listing is JWT-protected.
	mux.Handle("POST /api/save", http.HandlerFunc(sessions.Save))
	mux.Handle("GET /api/sessions/{roomId}", http.HandlerFunc(sessions.Get))
	mux.Handle("GET /api/sessions/{roomId}/versions", mw.Auth(http.HandlerFunc(sessions.Versions)))
	mux.Handle("POST /api/execute", http.HandlerFunc(sessions.Execute))
	mux.Handle("GET /api/stats", http.HandlerFunc(sessions.Stats))

	// CORS + rate limit applied globally
	return mw.Wrap(mux)
}
