// Package security rejects scanner traffic and oversized bodies before
// they reach the API handlers.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Config holds the configuration for security middleware
type Config struct {
	FilterEnabled bool
	// MaxBodySizeKB bounds request bodies. Zero disables the bound.
	MaxBodySizeKB int
}

// probePrefixes are paths only vulnerability scanners ask for
var probePrefixes = []string{
	"/.env",
	"/.git/",
	"/.aws/",
	"/.htaccess",
	"/.htpasswd",
	"/.ds_store",
	"/wp-",
	"/wordpress",
	"/xmlrpc.php",
	"/phpmyadmin",
	"/phpinfo",
	"/cgi-bin/",
	"/vendor/phpunit",
	"/actuator",
	"/server-status",
	"/admin/",
	"/config.",
	"/shell",
}

// traversalMarkers signal path traversal or null byte injection
var traversalMarkers = []string{
	"../",
	"..\\",
	"%2e%2e",
	"%00",
	"\x00",
}

// Blocked reports whether the request path looks like attack traffic.
func Blocked(r *http.Request) bool {
	candidates := []string{strings.ToLower(r.URL.Path)}
	if raw := r.URL.EscapedPath(); raw != "" {
		candidates = append(candidates, strings.ToLower(raw))
		if decoded, err := url.PathUnescape(raw); err == nil {
			candidates = append(candidates, strings.ToLower(decoded))
		}
	}

	for _, p := range candidates {
		for _, prefix := range probePrefixes {
			if strings.HasPrefix(p, prefix) {
				return true
			}
		}
		for _, marker := range traversalMarkers {
			if strings.Contains(p, marker) {
				return true
			}
		}
	}
	return false
}

// FilterMiddleware answers scanner probes with a generic 400.
func FilterMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Blocked(r) {
				writeBlocked(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySizeMiddleware caps request bodies at maxKB kilobytes.
// Handlers see an error from Read once the cap is exceeded.
func MaxBodySizeMiddleware(maxKB int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxKB <= 0 {
			return next
		}
		limit := int64(maxKB) * 1024
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware chains the filter and the body cap.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	filter := FilterMiddleware(cfg.FilterEnabled)
	limit := MaxBodySizeMiddleware(cfg.MaxBodySizeKB)
	return func(next http.Handler) http.Handler {
		return filter(limit(next))
	}
}

// writeBlocked does not say which rule matched
func writeBlocked(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "BAD_REQUEST",
			"message": "Invalid request",
		},
	})
}
