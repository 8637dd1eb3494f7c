package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/baxperience/baxperience/internal/devapi/token"
)

// TokenValidator resolves an access token to the user it was issued for.
type TokenValidator interface {
	Validate(tokenString string) (string, error)
}

type userIDKey struct{}

// Auth rejects requests without a valid bearer token and stores the user ID
// in the request context.
func Auth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				WriteError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				WriteError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(header[len(bearerPrefix):])
			if tokenString == "" {
				WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := tokens.Validate(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, token.ErrTokenExpired):
					WriteError(w, http.StatusUnauthorized, "access token has expired")
				default:
					WriteError(w, http.StatusUnauthorized, "invalid access token")
				}
				return
			}

			authenticatedAs(r.Context(), userID)
			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("enduser.id", userID))

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID retrieves the authenticated user ID from the context, or "".
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}
