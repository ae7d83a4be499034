package slogx

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/twofactor/pkg/idx"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// HTTPOptions tunes HTTPMiddleware.
type HTTPOptions struct {
	// SessionCookie, when set, adds a short digest of that cookie as "sid" so
	// the two requests of a login can be correlated without logging the id.
	SessionCookie string
}

// HTTPMiddleware attaches a request-scoped logger to the context and logs one
// line per request once it is served. The line carries the matched mux
// pattern as "route"; 5xx responses log at error and 4xx at warn.
func HTTPMiddleware(base *slog.Logger, opts ...HTTPOptions) func(http.Handler) http.Handler {
	var o HTTPOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = idx.New().String()
			}
			w.Header().Set(RequestIDHeader, reqID)

			attrs := []any{
				"req_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			}
			if o.SessionCookie != "" {
				if c, err := r.Cookie(o.SessionCookie); err == nil && c.Value != "" {
					attrs = append(attrs, "sid", digest(c.Value))
				}
			}
			logger := base.With(attrs...)

			r = r.WithContext(WithContext(r.Context(), logger))
			next.ServeHTTP(rw, r)

			// ServeMux records the matched pattern on the request it was given.
			logger.Log(r.Context(), levelForStatus(rw.status), "http_request",
				"route", r.Pattern,
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func digest(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:6])
}

type responseWriter struct {
	http.ResponseWriter

	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
