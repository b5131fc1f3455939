package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware returns HTTP middleware for request metrics.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			path := normalizePath(r.URL.Path)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
			httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures status code.
func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// normalizePath replaces quest IDs and wallet addresses with placeholders
// to keep label cardinality bounded:
//
//	/api/v1/quests/12/steps/verify -> /api/v1/quests/{id}/steps/verify
//	/api/v1/users/0xab...cd/sync   -> /api/v1/users/{address}/sync
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	normalized := make([]string, 0, len(parts)+1)
	normalized = append(normalized, "/api/v1")
	for i, part := range parts {
		switch {
		case part == "":
			continue
		case i == 0:
			normalized = append(normalized, part)
		case isAddress(part):
			normalized = append(normalized, "{address}")
		case isLikelyID(part):
			normalized = append(normalized, "{id}")
		default:
			normalized = append(normalized, part)
		}
	}
	return strings.Join(normalized, "/")
}

// isLikelyID returns true for path segments that look like identifiers.
// Any segment directly after the resource name counts, since quest IDs are free-form.
func isLikelyID(segment string) bool {
	switch segment {
	case "verify", "steps", "sync":
		return false
	}
	return true
}

func isAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return false
	}
	for _, c := range s[2:] {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
