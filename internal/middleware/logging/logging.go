// Package logging provides structured HTTP access logging.
package logging

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/questhub/internal/middleware/realip"
)

// quiet paths are polled by probes and scrapers and logged at debug
var quiet = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Middleware logs one line per request with the request id, route,
// status, size, latency and client IP. Server errors log at error level,
// client errors at warn.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				attrs := []any{
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"client_ip", realip.GetClientIP(r),
				}
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						attrs = append(attrs, "route", pattern)
					}
				}
				logger.Log(context.Background(), level(r.URL.Path, status), "request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func level(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case quiet[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
