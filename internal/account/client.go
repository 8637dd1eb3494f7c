package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/baxperience/baxperience/internal/backend"
	"github.com/baxperience/baxperience/internal/session"
)

const (
	loginEndpoint    = "/auth/login"
	registerEndpoint = "/auth/register"
	profileEndpoint  = "/auth/profile"
)

// ClientConfig holds configuration for the account client.
type ClientConfig struct {
	// Backend is the transport to use (required).
	Backend *backend.Client

	// Session receives the token on login and is cleared on logout.
	// If nil, a fresh session is created.
	Session *session.Session

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client manages sign-in, sign-up and the profile.
type Client struct {
	backend *backend.Client
	session *session.Session
	logger  zerolog.Logger
}

// NewClient creates a new account client.
func NewClient(cfg ClientConfig) *Client {
	b := cfg.Backend
	if b == nil {
		b = backend.NewClient(backend.ClientConfig{Logger: cfg.Logger})
	}
	s := cfg.Session
	if s == nil {
		s = session.New()
	}
	return &Client{backend: b, session: s, logger: cfg.Logger}
}

// Session returns the session the client writes to.
func (c *Client) Session() *session.Session {
	return c.session
}

// Login authenticates and starts the session.
func (c *Client) Login(ctx context.Context, email, password string) (*session.User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &FieldError{Field: "password", Message: "Password is required"}
	}

	var resp authResponse
	err := c.backend.Do(ctx, backend.Call{
		Method:   http.MethodPost,
		Endpoint: loginEndpoint,
		Body:     LoginRequest{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, c.mapError("login", err)
	}
	return c.start("login", resp)
}

// Register creates an account and starts the session.
func (c *Client) Register(ctx context.Context, req RegistrationRequest) (*session.User, error) {
	if err := ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := ValidatePreferences(req.Preferences); err != nil {
		return nil, err
	}

	var resp authResponse
	err := c.backend.Do(ctx, backend.Call{
		Method:   http.MethodPost,
		Endpoint: registerEndpoint,
		Body:     req,
	}, &resp)
	if err != nil {
		return nil, c.mapError("register", err)
	}
	return c.start("register", resp)
}

func (c *Client) start(op string, resp authResponse) (*session.User, error) {
	if resp.Token == "" {
		return nil, &Error{Op: op, StatusCode: http.StatusOK, Err: ErrMissingToken}
	}
	user := resp.User.toUser()
	c.session.Start(resp.Token)
	c.session.SetUser(user)

	c.logger.Info().Str("user_id", user.ID).Str("op", op).Msg("session started")
	return user, nil
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	token, ok := c.session.Token()
	if !ok {
		return nil, &Error{Op: "profile", Err: session.ErrNoSession}
	}

	var resp profileResponse
	err := c.backend.Do(ctx, backend.Call{Endpoint: profileEndpoint, Token: token}, &resp)
	if err != nil {
		return nil, c.mapError("profile", err)
	}
	if len(resp.Wrapped) > 0 && string(resp.Wrapped) != "null" {
		var inner profileResponse
		if err := json.Unmarshal(resp.Wrapped, &inner); err != nil {
			return nil, &Error{Op: "profile", StatusCode: http.StatusOK, Err: err}
		}
		resp = inner
	}

	profile := resp.toProfile()
	c.session.SetUser(&profile.User)
	return profile, nil
}

// Logout clears the session. The backend keeps no server-side session.
func (c *Client) Logout() {
	c.session.End()
	c.logger.Info().Msg("session ended")
}

func (c *Client) mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var statusErr *backend.StatusError
	if !errors.As(err, &statusErr) {
		return &Error{Op: op, Err: err}
	}

	e := &Error{Op: op, StatusCode: statusErr.StatusCode, Message: statusErr.Message}
	switch {
	case statusErr.IsNetwork():
		e.Message = ""
		e.Err = fmt.Errorf("%w: %w", ErrUnreachable, err)
	case statusErr.StatusCode == http.StatusUnauthorized && op == "login":
		e.Err = ErrInvalidCredentials
	case statusErr.StatusCode == http.StatusUnauthorized:
		c.session.End()
		e.Err = session.ErrNoSession
	case statusErr.StatusCode == http.StatusConflict:
		e.Err = ErrAccountExists
	case statusErr.StatusCode < http.StatusInternalServerError:
		e.Err = ErrRejected
	default:
		e.Err = err
	}

	if statusErr.IsNetwork() || statusErr.StatusCode >= http.StatusInternalServerError {
		c.logger.Error().Err(err).Str("op", op).Msg("account request failed")
	}
	return e
}
