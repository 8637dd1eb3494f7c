// Package account signs travellers in and up against the BAXperience backend
// and keeps the resulting token in a session.
package account

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/baxperience/baxperience/internal/session"
)

// Sentinel errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountExists      = errors.New("account already exists")
	ErrRejected           = errors.New("request rejected")
	ErrUnreachable        = errors.New("backend unreachable")
	ErrMissingToken       = errors.New("response carried no token")
)

// Error is a failed account call.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := "account " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (%d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns text suitable for showing to the traveller.
func (e *Error) UserMessage() string {
	switch {
	case errors.Is(e.Err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(e.Err, ErrAccountExists):
		return "An account with this email already exists."
	case errors.Is(e.Err, ErrUnreachable):
		return "Could not reach the BAXperience server. Check your connection and try again."
	case errors.Is(e.Err, session.ErrNoSession):
		return "Please log in to continue."
	case e.Message != "" && e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError:
		return e.Message
	}
	return "Something went wrong. Please try again."
}

// LoginRequest is the body of the login call.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// BasicInfo is the first registration step.
type BasicInfo struct {
	FullName string
	Email    string
	Password string
}

// ProfileInfo is the second registration step.
type ProfileInfo struct {
	BirthDate         string
	Country           string
	City              string
	PreferredLanguage string
	Phone             string
	TravellerType     string
	Gender            string
}

// RegistrationRequest is the body of the register call.
type RegistrationRequest struct {
	Email             string   `json:"email"`
	Password          string   `json:"password"`
	FirstName         string   `json:"nombre"`
	LastName          string   `json:"apellido"`
	Username          string   `json:"username"`
	BirthDate         string   `json:"fechaNacimiento,omitempty"`
	Country           string   `json:"paisOrigen,omitempty"`
	City              string   `json:"ciudadOrigen,omitempty"`
	PreferredLanguage string   `json:"idiomaPreferido,omitempty"`
	Phone             string   `json:"telefono,omitempty"`
	TravellerType     string   `json:"tipoViajero,omitempty"`
	Gender            string   `json:"genero,omitempty"`
	Preferences       []string `json:"preferencias"`
}

// Profile is the authenticated user's full profile.
type Profile struct {
	session.User
	BirthDate     string   `json:"fechaNacimiento,omitempty"`
	Country       string   `json:"paisOrigen,omitempty"`
	City          string   `json:"ciudadOrigen,omitempty"`
	Registered    string   `json:"fechaRegistro,omitempty"`
	TravellerType string   `json:"tipoViajero,omitempty"`
	Preferences   []string `json:"preferencias,omitempty"`
}

// authResponse is returned by login and register.
type authResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    wireUser `json:"user"`
}

// wireUser accepts numeric or string ids.
type wireUser struct {
	ID        json.RawMessage `json:"id"`
	Email     string          `json:"email"`
	Username  string          `json:"username"`
	FirstName string          `json:"nombre"`
	LastName  string          `json:"apellido"`
}

func (u wireUser) toUser() *session.User {
	return &session.User{
		ID:        rawID(u.ID),
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// profileResponse tolerates the profile being wrapped in {"user": ...}.
type profileResponse struct {
	wireUser
	BirthDate     string            `json:"fechaNacimiento"`
	Country       string            `json:"paisOrigen"`
	City          string            `json:"ciudadOrigen"`
	Registered    string            `json:"fechaRegistro"`
	TravellerType string            `json:"tipoViajero"`
	Preferences   []json.RawMessage `json:"preferencias"`
	Wrapped       json.RawMessage   `json:"user"`
}

func (r profileResponse) toProfile() *Profile {
	p := &Profile{
		User:          *r.toUser(),
		BirthDate:     r.BirthDate,
		Country:       r.Country,
		City:          r.City,
		Registered:    r.Registered,
		TravellerType: r.TravellerType,
	}
	for _, raw := range r.Preferences {
		if id := rawID(raw); id != "" {
			p.Preferences = append(p.Preferences, id)
		}
	}
	return p
}
