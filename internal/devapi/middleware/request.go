// Package middleware provides the HTTP middleware chain of the local backend.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-Id"

const maxRequestIDLength = 128

// requestInfo is created by RequestID and filled in by inner middleware, so
// the outer ones can report what only the inner ones learn.
type requestInfo struct {
	id     string
	userID string
}

type requestInfoKey struct{}

// RequestID adopts the caller's X-Request-Id when it is usable, or generates
// one, and echoes it on the response. It must run first.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &requestInfo{id: clientRequestID(r.Header.Get(HeaderRequestID))}
		if info.id == "" {
			info.id = "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:22]
		}

		w.Header().Set(HeaderRequestID, info.id)

		ctx := context.WithValue(r.Context(), requestInfoKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientRequestID returns id if it is short printable ASCII, else "". IDs end
// up in log lines and headers verbatim.
func clientRequestID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > maxRequestIDLength {
		return ""
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return ""
		}
	}
	return id
}

func infoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.id
	}
	return ""
}

// authenticatedAs records the user on the request info, if there is one.
func authenticatedAs(ctx context.Context, userID string) {
	if info := infoFrom(ctx); info != nil {
		info.userID = userID
	}
}

// loggedUser returns the user recorded by Auth further down the chain.
func loggedUser(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.userID
	}
	return ""
}
