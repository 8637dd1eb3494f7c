// Package session holds the authenticated user's access token.
//
// A Session is created empty, started at login and ended at logout. It is
// passed explicitly to the clients that need the token; there is no global
// token storage.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned when a token is required but none is stored.
var ErrNoSession = errors.New("no active session")

// ExpirySkew treats tokens this close to expiry as already expired.
const ExpirySkew = 30 * time.Second

// User is the profile attached to a session.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"nombre,omitempty"`
	LastName  string `json:"apellido,omitempty"`
}

// Session is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	user      *User
	startedAt time.Time
	now       func() time.Time
}

// New returns an empty session.
func New() *Session {
	return &Session{now: time.Now}
}

// Start stores token as the current credential, replacing any previous one.
// When token is a JWT carrying an exp claim its expiry is remembered; the
// signature is not verified here.
func (s *Session) Start(token string) {
	token = strings.TrimSpace(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.expiresAt = tokenExpiry(token)
	s.user = nil
	s.startedAt = s.now()
}

// SetUser attaches profile data to the current session.
func (s *Session) SetUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return
	}
	if u == nil {
		s.user = nil
		return
	}
	cp := *u
	s.user = &cp
}

// End clears the session.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.user = nil
	s.startedAt = time.Time{}
}

// Token returns the stored token, if any.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// IsAuthenticated reports whether a token is stored and not known to be expired.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	if s.expiresAt.IsZero() {
		return true
	}
	return s.now().Add(ExpirySkew).Before(s.expiresAt)
}

// ExpiresAt returns the token expiry when it is known.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt, !s.expiresAt.IsZero()
}

// User returns a copy of the attached profile, or nil.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	return &cp
}

// StartedAt returns when the current session began (zero if none).
func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// tokenExpiry reads the exp claim of an unverified JWT. Opaque tokens and
// tokens without exp yield the zero time.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
