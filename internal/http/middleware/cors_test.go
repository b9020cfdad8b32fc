package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runCORS(t *testing.T, origins []string, origin, method, preflight string) *httptest.ResponseRecorder {
	t.Helper()
	mw := CORS(origins)
	req := httptest.NewRequest(method, "/ai/chat", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight != "" {
		req.Header.Set("Access-Control-Request-Method", preflight)
	}
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowedOrigin(t *testing.T) {
	rec := runCORS(t, []string{"https://app.pandoc.health"}, "https://app.pandoc.health", http.MethodPost, "")
	assert.Equal(t, "https://app.pandoc.health", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDisallowedOrigin(t *testing.T) {
	rec := runCORS(t, []string{"https://app.pandoc.health"}, "https://evil.example", http.MethodPost, "")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	rec := runCORS(t, []string{"*"}, "https://anything.example", http.MethodPost, "")
	assert.Equal(t, "https://anything.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	rec := runCORS(t, []string{"*"}, "https://app.pandoc.health", http.MethodOptions, http.MethodPost)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, corsDefaultHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORSOriginMatchIsCaseInsensitive(t *testing.T) {
	rec := runCORS(t, []string{"https://App.Pandoc.Health"}, "https://app.pandoc.health", http.MethodPost, "")
	assert.Equal(t, "https://app.pandoc.health", rec.Header().Get("Access-Control-Allow-Origin"))
}
