package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store, used when no database is configured
// and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	nextUser int64
	nextTrip int64
	users    map[string]*User
	byEmail  map[string]string
	trips    map[int64]*Trip
	keys     map[string]string
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		trips:   make(map[int64]*Trip),
		keys:    make(map[string]string),
		now:     time.Now,
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// CreateUser stores a copy of u.
func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return ErrEmailTaken
	}

	s.nextUser++
	u.ID = strconv.FormatInt(s.nextUser, 10)
	u.CreatedAt = s.now().UTC()

	s.users[u.ID] = copyUser(u)
	s.byEmail[email] = u.ID
	return nil
}

// UserByEmail looks a user up by email.
func (s *MemoryStore) UserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(s.users[id]), nil
}

// UserByID looks a user up by ID.
func (s *MemoryStore) UserByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

// CreateTrip stores a copy of t.
func (s *MemoryStore) CreateTrip(_ context.Context, t *Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ""
	if t.IdempotencyKey != "" {
		key = t.UserID + "\x00" + t.IdempotencyKey
		if _, ok := s.keys[key]; ok {
			return ErrDuplicateTrip
		}
	}

	s.nextTrip++
	t.ID = strconv.FormatInt(s.nextTrip, 10)
	t.CreatedAt = s.now().UTC()

	s.trips[s.nextTrip] = copyTrip(t)
	if key != "" {
		s.keys[key] = t.ID
	}
	return nil
}

// TripByUserAndID returns a copy of the user's trip.
func (s *MemoryStore) TripByUserAndID(_ context.Context, userID, id string) (*Trip, error) {
	seq, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrTripNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trips[seq]
	if !ok || t.UserID != userID {
		return nil, ErrTripNotFound
	}
	return copyTrip(t), nil
}

// ListTrips returns the user's trips, newest first.
func (s *MemoryStore) ListTrips(_ context.Context, userID string, opts ListOptions) (*ListResult, error) {
	var before int64
	if opts.Cursor != "" {
		c, err := strconv.ParseInt(opts.Cursor, 10, 64)
		if err != nil {
			return &ListResult{}, nil
		}
		before = c
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var seqs []int64
	for seq, t := range s.trips {
		if t.UserID == userID && (before == 0 || seq < before) {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] > seqs[j] })

	limit := listLimit(opts)
	result := &ListResult{}
	for i, seq := range seqs {
		if i == limit {
			result.NextCursor = result.Items[limit-1].ID
			break
		}
		result.Items = append(result.Items, copyTrip(s.trips[seq]))
	}
	return result, nil
}

func copyUser(u *User) *User {
	cp := *u
	cp.PasswordHash = append([]byte(nil), u.PasswordHash...)
	cp.Preferences = append([]string(nil), u.Preferences...)
	return &cp
}

func copyTrip(t *Trip) *Trip {
	cp := *t
	cp.Itinerary.Activities = append(cp.Itinerary.Activities[:0:0], t.Itinerary.Activities...)
	return &cp
}

var _ Store = (*MemoryStore)(nil)
