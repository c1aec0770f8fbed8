// internal/router/realip.go
package router

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// TrustedRealIP rewrites RemoteAddr from X-Forwarded-For or X-Real-IP, but
// only when the direct peer is one of the trusted proxies. Headers from any
// other peer are ignored, so the callback allowlist and the rate limiter see
// the address that actually connected.
func TrustedRealIP(trusted []string, logger *zap.Logger) func(http.Handler) http.Handler {
	var nets []*net.IPNet
	for _, entry := range trusted {
		if n := parseAllowEntry(entry); n != nil {
			nets = append(nets, n)
		} else {
			logger.Warn("ignoring malformed TRUSTED_PROXIES entry", zap.String("entry", entry))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(nets) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowed(nets, clientIP(r)) {
				if ip := forwardedFor(r, nets); ip != "" {
					r.RemoteAddr = ip
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedFor walks X-Forwarded-For from the right and returns the first hop
// that is not itself a trusted proxy. Hops to the left of it were written by
// the client and are not looked at.
func forwardedFor(r *http.Request, trusted []*net.IPNet) string {
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				return ""
			}
			if !allowed(trusted, hop) {
				return hop
			}
		}
		return ""
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xrip) != nil {
		return xrip
	}
	return ""
}
