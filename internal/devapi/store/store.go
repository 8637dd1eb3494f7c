// Package store persists the local backend's users and confirmed trips.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/baxperience/baxperience/internal/itinerary"
)

// Repository errors.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrTripNotFound  = errors.New("trip not found")
	ErrDuplicateTrip = errors.New("trip already confirmed with this idempotency key")
)

// DefaultListLimit caps ListTrips when no limit is given.
const DefaultListLimit = 50

// User is a registered traveller.
type User struct {
	ID                string
	Email             string
	PasswordHash      []byte
	Username          string
	FirstName         string
	LastName          string
	BirthDate         string
	Country           string
	City              string
	PreferredLanguage string
	Phone             string
	TravellerType     string
	Gender            string
	Preferences       []string
	CreatedAt         time.Time
}

// Trip is a confirmed itinerary.
type Trip struct {
	ID     string
	UserID string
	// IdempotencyKey is empty when the client sent none.
	IdempotencyKey string
	Itinerary      itinerary.ConfirmationRequest
	CreatedAt      time.Time
}

// ListOptions pages through a user's trips, newest first.
type ListOptions struct {
	Limit  int
	Cursor string
}

// ListResult is one page of trips.
type ListResult struct {
	Items      []*Trip
	NextCursor string
}

// UserRepository persists users. Emails are matched case-insensitively.
type UserRepository interface {
	// CreateUser assigns ID and CreatedAt. Returns ErrEmailTaken when the
	// email is already registered.
	CreateUser(ctx context.Context, u *User) error

	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
}

// TripRepository persists confirmed trips.
type TripRepository interface {
	// CreateTrip assigns ID and CreatedAt. Returns ErrDuplicateTrip when the
	// user already confirmed a trip with the same non-empty idempotency key.
	CreateTrip(ctx context.Context, t *Trip) error

	// TripByUserAndID returns ErrTripNotFound when the trip does not exist
	// or belongs to someone else.
	TripByUserAndID(ctx context.Context, userID, id string) (*Trip, error)

	ListTrips(ctx context.Context, userID string, opts ListOptions) (*ListResult, error)
}

// Store is everything the handlers persist.
type Store interface {
	UserRepository
	TripRepository

	Ping(ctx context.Context) error
}

func listLimit(opts ListOptions) int {
	if opts.Limit <= 0 || opts.Limit > DefaultListLimit {
		return DefaultListLimit
	}
	return opts.Limit
}
