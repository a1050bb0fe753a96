package middleware

import (
	"net/http"

	"github.com/getsentry/relay-go/infrastructure/httputil"
)

const defaultMaxRequestBodyBytes int64 = 20 << 20 // 20MiB, used only when NewBodyLimit gets no positive limit

// BodyLimit caps request bodies so a single oversized envelope can't exhaust
// memory; envelope.Parse does no size checks of its own.
type BodyLimit struct {
	maxBytes int64
}

// NewBodyLimit creates a request body limiting middleware. maxBytes <= 0 falls
// back to a conservative default.
func NewBodyLimit(maxBytes int64) *BodyLimit {
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBodyBytes
	}
	return &BodyLimit{maxBytes: maxBytes}
}

// Handler returns the body-limiting middleware handler.
func (m *BodyLimit) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.maxBytes <= 0 || r == nil {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > m.maxBytes {
			httputil.WriteErrorResponse(
				w, r, http.StatusRequestEntityTooLarge, "",
				"request body too large",
				map[string]any{"limit_bytes": m.maxBytes},
			)
			return
		}

		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, m.maxBytes)
		}

		next.ServeHTTP(w, r)
	})
}
