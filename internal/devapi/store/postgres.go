package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Schema creates the tables used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id                 BIGSERIAL PRIMARY KEY,
	email              TEXT NOT NULL UNIQUE,
	password_hash      BYTEA NOT NULL,
	username           TEXT NOT NULL DEFAULT '',
	first_name         TEXT NOT NULL DEFAULT '',
	last_name          TEXT NOT NULL DEFAULT '',
	birth_date         TEXT NOT NULL DEFAULT '',
	country            TEXT NOT NULL DEFAULT '',
	city               TEXT NOT NULL DEFAULT '',
	preferred_language TEXT NOT NULL DEFAULT '',
	phone              TEXT NOT NULL DEFAULT '',
	traveller_type     TEXT NOT NULL DEFAULT '',
	gender             TEXT NOT NULL DEFAULT '',
	preferences        TEXT[] NOT NULL DEFAULT '{}',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trips (
	id              BIGSERIAL PRIMARY KEY,
	user_id         BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	idempotency_key TEXT,
	itinerary       JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, idempotency_key)
);
`

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const userColumns = `
	id::text, email, password_hash, username, first_name, last_name,
	birth_date, country, city, preferred_language, phone,
	traveller_type, gender, preferences, created_at`

// CreateUser inserts u.
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (
			email, password_hash, username, first_name, last_name,
			birth_date, country, city, preferred_language, phone,
			traveller_type, gender, preferences
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id::text, created_at
	`

	prefs := u.Preferences
	if prefs == nil {
		prefs = []string{}
	}

	err := s.pool.QueryRow(ctx, query,
		strings.ToLower(u.Email),
		u.PasswordHash,
		u.Username,
		u.FirstName,
		u.LastName,
		u.BirthDate,
		u.Country,
		u.City,
		u.PreferredLanguage,
		u.Phone,
		u.TravellerType,
		u.Gender,
		prefs,
	).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

// UserByEmail looks a user up by email.
func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = $1`
	return s.scanUser(ctx, query, strings.ToLower(email))
}

// UserByID looks a user up by ID.
func (s *PostgresStore) UserByID(ctx context.Context, id string) (*User, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrUserNotFound
	}
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(ctx, query, n)
}

func (s *PostgresStore) scanUser(ctx context.Context, query string, args ...interface{}) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.BirthDate,
		&u.Country,
		&u.City,
		&u.PreferredLanguage,
		&u.Phone,
		&u.TravellerType,
		&u.Gender,
		&u.Preferences,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateTrip inserts t.
func (s *PostgresStore) CreateTrip(ctx context.Context, t *Trip) error {
	userID, err := strconv.ParseInt(t.UserID, 10, 64)
	if err != nil {
		return ErrUserNotFound
	}
	payload, err := json.Marshal(t.Itinerary)
	if err != nil {
		return fmt.Errorf("encode itinerary: %w", err)
	}

	var key *string
	if t.IdempotencyKey != "" {
		key = &t.IdempotencyKey
	}

	query := `
		INSERT INTO trips (user_id, idempotency_key, itinerary)
		VALUES ($1, $2, $3::jsonb)
		RETURNING id::text, created_at
	`
	err = s.pool.QueryRow(ctx, query, userID, key, string(payload)).Scan(&t.ID, &t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateTrip
	}
	return err
}

// TripByUserAndID returns the user's trip.
func (s *PostgresStore) TripByUserAndID(ctx context.Context, userID, id string) (*Trip, error) {
	tripID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrTripNotFound
	}
	owner, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, ErrTripNotFound
	}

	query := `
		SELECT id::text, user_id::text, COALESCE(idempotency_key, ''), itinerary, created_at
		FROM trips
		WHERE id = $1 AND user_id = $2
	`
	t, err := scanTrip(s.pool.QueryRow(ctx, query, tripID, owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTripNotFound
	}
	return t, err
}

// ListTrips returns the user's trips, newest first.
func (s *PostgresStore) ListTrips(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	owner, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return &ListResult{}, nil
	}
	var before int64
	if opts.Cursor != "" {
		if before, err = strconv.ParseInt(opts.Cursor, 10, 64); err != nil {
			return &ListResult{}, nil
		}
	}

	limit := listLimit(opts)
	query := `
		SELECT id::text, user_id::text, COALESCE(idempotency_key, ''), itinerary, created_at
		FROM trips
		WHERE user_id = $1 AND ($2::bigint = 0 OR id < $2::bigint)
		ORDER BY id DESC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, owner, before, limit+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{Items: trips}
	if len(trips) > limit {
		result.Items = trips[:limit]
		result.NextCursor = trips[limit-1].ID
	}
	return result, nil
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var (
		t       Trip
		payload []byte
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.IdempotencyKey, &payload, &t.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &t.Itinerary); err != nil {
		return nil, fmt.Errorf("decode itinerary %s: %w", t.ID, err)
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ Store = (*PostgresStore)(nil)
