package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const callerIDKey contextKey = "callerID"

// rateLimitWindow is the fixed window shared by every route namespace.
const rateLimitWindow = 60 * time.Second

// CallerID requires the authenticated caller identity on every request.
// Identity issuance itself is handled upstream; this boundary only refuses
// requests that arrive without one.
func CallerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerID := r.Header.Get("X-Caller-ID")
		if callerID == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		ctx := context.WithValue(r.Context(), callerIDKey, callerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerIDFrom returns the identity stored by the CallerID middleware.
func CallerIDFrom(ctx context.Context) string {
	callerID, _ := ctx.Value(callerIDKey).(string)
	return callerID
}

// rateLimit applies the fixed-window limiter to a route, keyed by client IP.
func (s *Server) rateLimit(namespace string, maxRequests int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !s.limiter.Allow(r.Context(), namespace, ip, maxRequests, rateLimitWindow) {
				slog.Warn("Rate limit exceeded", "namespace", namespace, "ip", ip)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimitWindow.Seconds())))
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again in about a minute.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the caller address behind the load balancer: first hop
// of X-Forwarded-For, then X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
