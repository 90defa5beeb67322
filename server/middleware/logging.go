package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/orchestrator/logger"
)

var quietPaths = map[string]bool{
	"/health": true,
	"/info":   true,
}

// RequestLogger returns middleware that logs every request with method,
// path, status code, and duration. Probe paths are skipped.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newRecorder(w)
			next.ServeHTTP(rec, r)
			duration := time.Since(start)

			path := r.URL.Path
			if q := r.URL.RawQuery; q != "" {
				path = path + "?" + q
			}
			fields := map[string]interface{}{
				"method":           r.Method,
				"path":             path,
				logger.FieldStatus: rec.status,
				"bytes":            rec.bytes,
				"duration_ms":      duration.Milliseconds(),
			}
			if id := r.Header.Get(HeaderRequestID); id != "" {
				fields[logger.FieldRequestID] = id
			}
			if duration > 500*time.Millisecond {
				fields["slow"] = true
			}

			switch {
			case rec.status >= 500:
				log.Error("Request completed", fields)
			case rec.status >= 400:
				log.Warn("Request completed", fields)
			default:
				log.Debug("Request completed", fields)
			}
		})
	}
}
