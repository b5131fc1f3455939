package security

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestFilterMiddleware(t *testing.T) {
	handler := FilterMiddleware(true)(okHandler())

	tests := []struct {
		path    string
		blocked bool
	}{
		{"/api/v1/quests", false},
		{"/api/v1/quests/15/verify", false},
		{"/api/v1/users/0x1111111111111111111111111111111111111111", false},
		{"/api/v1/leaderboard?limit=5", false},
		{"/healthz", false},
		{"/metrics", false},
		{"/.env", true},
		{"/.ENV", true},
		{"/.git/config", true},
		{"/wp-login.php", true},
		{"/WP-ADMIN/", true},
		{"/phpmyadmin/index.php", true},
		{"/cgi-bin/test.cgi", true},
		{"/actuator/health", true},
		{"/../../etc/passwd", true},
		{"/api/v1/quests/..%2f..%2fetc", true},
		{"/api/v1/quests/%2e%2e/secret", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if tt.blocked {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			} else {
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}

func TestFilterMiddleware_Disabled(t *testing.T) {
	handler := FilterMiddleware(false)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.env", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFilterMiddleware_ResponseHidesRule(t *testing.T) {
	rec := httptest.NewRecorder()
	FilterMiddleware(true)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.git/HEAD", nil))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BAD_REQUEST", body["error"]["code"])
	assert.Equal(t, "Invalid request", body["error"]["message"])
}

func TestMaxBodySizeMiddleware(t *testing.T) {
	handler := MaxBodySizeMiddleware(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name string
		size int
		want int
	}{
		{"small", 64, http.StatusOK},
		{"exact", 1024, http.StatusOK},
		{"over", 1025, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", strings.NewReader(strings.Repeat("x", tt.size)))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMiddleware_Chain(t *testing.T) {
	handler := Middleware(Config{FilterEnabled: true, MaxBodySizeKB: 1})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/.env", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/verify", strings.NewReader(strings.Repeat("x", 4096))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
