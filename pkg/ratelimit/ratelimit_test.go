package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func doRequest(h http.Handler, addr string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestLimiter_BlocksAfterMax(t *testing.T) {
	l := New(3, time.Minute)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234"))
	}
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:1234"))

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.2:1234"))
}

func TestLimiter_WindowResets(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:1234"))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234"))
}
