package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Recovery turns a handler panic into a 500 and marks the request span as
// failed. http.ErrAbortHandler is re-raised so net/http can drop the
// connection. Nothing is written if the handler already started a response.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrapResponseWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rec)
				}

				stack := debug.Stack()
				span := trace.SpanFromContext(r.Context())
				span.RecordError(fmt.Errorf("panic: %v", rec))
				span.SetStatus(codes.Error, "panic")

				event := log.Error().
					Str("request_id", GetRequestID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path)
				if userID := loggedUser(r.Context()); userID != "" {
					event = event.Str("user_id", userID)
				}
				event.
					Interface("panic", rec).
					Bytes("stack", stack).
					Msg("panic recovered")

				if rw.wroteHeader {
					return
				}
				WriteError(rw, http.StatusInternalServerError, "an unexpected error occurred")
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
