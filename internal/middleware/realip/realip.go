// Package realip resolves the client address of a request, honouring
// X-Forwarded-For only when the peer is a trusted proxy.
package realip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type contextKey struct{}

// Config holds the configuration for the real IP middleware
type Config struct {
	// TrustProxy enables X-Forwarded-For parsing
	TrustProxy bool
	// TrustedProxies lists proxy networks in CIDR notation. Bare IPs are accepted.
	TrustedProxies []string
}

// Resolver decides the client IP of a request.
type Resolver struct {
	trustProxy bool
	trusted    []netip.Prefix
}

// NewResolver parses the trusted networks in cfg. Entries that are neither
// a prefix nor an address are skipped.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{trustProxy: cfg.TrustProxy}
	if !cfg.TrustProxy {
		return r
	}
	for _, entry := range cfg.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if p, err := netip.ParsePrefix(entry); err == nil {
			r.trusted = append(r.trusted, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			r.trusted = append(r.trusted, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return r
}

// Resolve returns the client IP for req.
// The X-Forwarded-For chain is walked from the right and the first hop
// outside the trusted networks wins.
func (r *Resolver) Resolve(req *http.Request) string {
	peer := hostOnly(req.RemoteAddr)
	if !r.trustProxy || !r.isTrusted(peer) {
		return peer
	}

	xff := req.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := strings.TrimSpace(req.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		return peer
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !r.isTrusted(hop) {
			return hop
		}
	}
	return strings.TrimSpace(hops[0])
}

func (r *Resolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range r.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Middleware stores the resolved client IP in the request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	resolver := NewResolver(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), contextKey{}, resolver.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP returns the IP stored by Middleware, or the peer address
// when the middleware did not run.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(contextKey{}).(string); ok && ip != "" {
		return ip
	}
	return hostOnly(r.RemoteAddr)
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
