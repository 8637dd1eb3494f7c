// Package handler implements the local backend's endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/baxperience/baxperience/internal/account"
	"github.com/baxperience/baxperience/internal/devapi/middleware"
	"github.com/baxperience/baxperience/internal/devapi/response"
	"github.com/baxperience/baxperience/internal/devapi/store"
	"github.com/baxperience/baxperience/internal/devapi/token"
)

// AuthHandler serves registration, login and the profile.
type AuthHandler struct {
	users  store.UserRepository
	tokens *token.Service
	cost   int
	log    zerolog.Logger
}

// AuthConfig holds AuthHandler dependencies.
type AuthConfig struct {
	Users  store.UserRepository
	Tokens *token.Service
	// PasswordCost is the bcrypt cost; zero uses bcrypt.DefaultCost.
	PasswordCost int
	Logger       zerolog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(cfg AuthConfig) *AuthHandler {
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	return &AuthHandler{
		users:  cfg.Users,
		tokens: cfg.Tokens,
		cost:   cfg.PasswordCost,
		log:    cfg.Logger,
	}
}

type userBody struct {
	ID        json.Number `json:"id"`
	Email     string      `json:"email"`
	Username  string      `json:"username"`
	FirstName string      `json:"nombre"`
	LastName  string      `json:"apellido"`
}

type authBody struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    userBody `json:"user"`
}

type profileBody struct {
	userBody
	BirthDate         string   `json:"fechaNacimiento,omitempty"`
	Country           string   `json:"paisOrigen,omitempty"`
	City              string   `json:"ciudadOrigen,omitempty"`
	PreferredLanguage string   `json:"idiomaPreferido,omitempty"`
	Phone             string   `json:"telefono,omitempty"`
	TravellerType     string   `json:"tipoViajero,omitempty"`
	Gender            string   `json:"genero,omitempty"`
	Registered        string   `json:"fechaRegistro"`
	Preferences       []string `json:"preferencias"`
}

func newUserBody(u *store.User) userBody {
	return userBody{
		ID:        json.Number(u.ID),
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req account.RegistrationRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, err.Error(), nil)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	for _, err := range []error{
		account.ValidateEmail(req.Email),
		account.ValidatePassword(req.Password),
		account.ValidatePreferences(req.Preferences),
	} {
		var fe *account.FieldError
		if errors.As(err, &fe) {
			response.BadRequest(w, fe.Message, map[string]string{"field": fe.Field})
			return
		}
	}
	if strings.TrimSpace(req.FirstName) == "" {
		response.BadRequest(w, "Name is required", map[string]string{"field": "nombre"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cost)
	if err != nil {
		h.log.Error().Err(err).Msg("hash password")
		response.InternalError(w)
		return
	}

	user := &store.User{
		Email:             req.Email,
		PasswordHash:      hash,
		Username:          req.Username,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		BirthDate:         req.BirthDate,
		Country:           req.Country,
		City:              req.City,
		PreferredLanguage: req.PreferredLanguage,
		Phone:             req.Phone,
		TravellerType:     req.TravellerType,
		Gender:            req.Gender,
		Preferences:       req.Preferences,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			response.Conflict(w, "User already exists")
			return
		}
		h.log.Error().Err(err).Msg("create user")
		response.InternalError(w)
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("user registered")
	h.respondWithToken(w, http.StatusCreated, "User registered successfully", user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req account.LoginRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		response.BadRequest(w, "Email and password are required", nil)
		return
	}

	user, err := h.users.UserByEmail(r.Context(), strings.TrimSpace(req.Email))
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		response.Unauthorized(w, "Invalid credentials")
		return
	case err != nil:
		h.log.Error().Err(err).Msg("look up user")
		response.InternalError(w)
		return
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)) != nil {
		response.Unauthorized(w, "Invalid credentials")
		return
	}

	h.respondWithToken(w, http.StatusOK, "Login successful", user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, message string, user *store.User) {
	tok, _, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("issue token")
		response.InternalError(w)
		return
	}
	response.JSON(w, status, authBody{
		Message: message,
		Token:   tok,
		User:    newUserBody(user),
	})
}

// Profile handles GET /api/auth/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.UserByID(r.Context(), middleware.GetUserID(r.Context()))
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		response.Unauthorized(w, "User no longer exists")
		return
	case err != nil:
		h.log.Error().Err(err).Msg("load profile")
		response.InternalError(w)
		return
	}

	prefs := user.Preferences
	if prefs == nil {
		prefs = []string{}
	}
	response.JSON(w, http.StatusOK, map[string]profileBody{
		"user": {
			userBody:          newUserBody(user),
			BirthDate:         user.BirthDate,
			Country:           user.Country,
			City:              user.City,
			PreferredLanguage: user.PreferredLanguage,
			Phone:             user.Phone,
			TravellerType:     user.TravellerType,
			Gender:            user.Gender,
			Registered:        user.CreatedAt.Format("2006-01-02"),
			Preferences:       prefs,
		},
	})
}
