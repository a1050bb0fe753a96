package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/relay-go/infrastructure/errors"
	"github.com/getsentry/relay-go/infrastructure/httputil"
	"github.com/getsentry/relay-go/infrastructure/logging"
)

// Recovery recovers from panics in downstream handlers and logs them with a stack trace.
type Recovery struct {
	logger *logging.Logger
}

// NewRecovery creates a panic-recovery middleware.
func NewRecovery(logger *logging.Logger) *Recovery {
	return &Recovery{logger: logger}
}

// Handler returns the recovery middleware handler.
func (m *Recovery) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := debug.Stack()
				m.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
					"panic":       fmt.Sprintf("%v", rec),
					"stack":       string(stack),
					"path":        r.URL.Path,
					"method":      r.Method,
					"remote_addr": r.RemoteAddr,
				}).Error("panic recovered")

				serviceErr := errors.Internal("internal server error", fmt.Errorf("%v", rec))
				httputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
