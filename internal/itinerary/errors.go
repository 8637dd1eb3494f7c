package itinerary

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/baxperience/baxperience/internal/backend"
)

// Sentinel errors, one per Kind. errors.Is matches an *Error against them.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrNetwork      = errors.New("network error")
	ErrServer       = errors.New("server error")
)

// Op names the failing operation.
type Op string

const (
	OpGenerate Op = "generate"
	OpConfirm  Op = "confirm"
)

// Kind classifies itinerary failures.
type Kind string

const (
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindBadRequest   Kind = "BAD_REQUEST"
	KindConflict     Kind = "CONFLICT"
	KindNetwork      Kind = "NETWORK_ERROR"
	KindServer       Kind = "SERVER_ERROR"
)

// Error is a failed generate or confirm call.
type Error struct {
	Op         Op
	Kind       Kind
	StatusCode int    // 0 when no response was received
	Message    string // server-provided message, if any
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("itinerary %s: %s", e.Op, e.Kind)
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

// Is matches the sentinel for the error's Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthorized:
		return ErrUnauthorized
	case KindBadRequest:
		return ErrBadRequest
	case KindConflict:
		return ErrConflict
	case KindNetwork:
		return ErrNetwork
	case KindServer:
		return ErrServer
	}
	return nil
}

// UserMessage returns text suitable for showing to the traveller.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindUnauthorized:
		return "Your session has expired. Please log in again."
	case KindBadRequest:
		if e.Message != "" {
			return "The trip details were rejected: " + e.Message
		}
		return "The trip details were rejected. Please review them and try again."
	case KindConflict:
		return "This itinerary has already been saved to your trips."
	case KindNetwork:
		return "Could not reach the BAXperience server. Check your connection and try again."
	}
	if e.Op == OpConfirm {
		return "Failed to save itinerary. Please try again."
	}
	return "Failed to generate itinerary. Please try again later."
}

// mapError converts a transport error into an *Error. Context errors are
// returned unchanged.
func mapError(op Op, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var statusErr *backend.StatusError
	if !errors.As(err, &statusErr) {
		return &Error{Op: op, Kind: KindServer, Err: err}
	}

	e := &Error{Op: op, StatusCode: statusErr.StatusCode, Message: statusErr.Message, Err: err}
	switch {
	case statusErr.IsNetwork():
		e.Kind = KindNetwork
		e.Message = ""
	case statusErr.StatusCode == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case statusErr.StatusCode == http.StatusBadRequest:
		e.Kind = KindBadRequest
	case statusErr.StatusCode == http.StatusConflict && op == OpConfirm:
		e.Kind = KindConflict
	default:
		e.Kind = KindServer
	}
	return e
}
