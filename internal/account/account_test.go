package account_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxperience/baxperience/internal/account"
	"github.com/baxperience/baxperience/internal/backend"
	"github.com/baxperience/baxperience/internal/session"
)

func newClient(url string) *account.Client {
	return account.NewClient(account.ClientConfig{
		Backend: backend.NewClient(backend.ClientConfig{BaseURL: url}),
		Session: session.New(),
	})
}

func TestLogin_StartsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		var req account.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ana@example.com", req.Email)
		_, _ = w.Write([]byte(`{"message":"ok","token":"tok-1","user":{"id":7,"email":"ana@example.com","nombre":"Ana","apellido":"García"}}`))
	}))
	defer server.Close()

	client := newClient(server.URL)
	user, err := client.Login(context.Background(), "ana@example.com", "Secret123")
	require.NoError(t, err)

	assert.Equal(t, "7", user.ID)
	assert.Equal(t, "Ana", user.FirstName)

	token, ok := client.Session().Token()
	assert.True(t, ok)
	assert.Equal(t, "tok-1", token)
	require.NotNil(t, client.Session().User())
	assert.Equal(t, "García", client.Session().User().LastName)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad credentials", http.StatusUnauthorized, `{"error":"Credenciales inválidas"}`, account.ErrInvalidCredentials},
		{"rejected", http.StatusBadRequest, `{"error":"Email requerido"}`, account.ErrRejected},
		{"missing token", http.StatusOK, `{"message":"ok"}`, account.ErrMissingToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newClient(server.URL)
			_, err := client.Login(context.Background(), "ana@example.com", "Secret123")
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, client.Session().IsAuthenticated())

			var accErr *account.Error
			require.ErrorAs(t, err, &accErr)
			assert.NotEmpty(t, accErr.UserMessage())
		})
	}
}

func TestLogin_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newClient(url).Login(context.Background(), "ana@example.com", "Secret123")
	assert.ErrorIs(t, err, account.ErrUnreachable)
}

func TestLogin_InvalidEmailMakesNoRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer server.Close()

	_, err := newClient(server.URL).Login(context.Background(), "not-an-email", "x")
	var fieldErr *account.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "email", fieldErr.Field)
	assert.False(t, called)
}

func TestRegister(t *testing.T) {
	var got account.RegistrationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/register", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"creado","token":"tok-2","user":{"id":"u-9","email":"juan@example.com","nombre":"Juan","apellido":"Sin Apellido"}}`))
	}))
	defer server.Close()

	client := newClient(server.URL)
	req := account.NewRegistration(
		account.BasicInfo{FullName: "Juan", Email: "juan@example.com", Password: "Secret123"},
		account.ProfileInfo{Country: "Argentina"},
		[]string{"museos", "gastronomia"},
	)
	user, err := client.Register(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "u-9", user.ID)
	assert.Equal(t, "juan", got.Username)
	assert.Equal(t, "Sin Apellido", got.LastName)
	assert.Equal(t, []string{"museos", "gastronomia"}, got.Preferences)
	assert.True(t, client.Session().IsAuthenticated())
}

func TestRegister_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"El email ya está registrado"}`))
	}))
	defer server.Close()

	req := account.NewRegistration(account.BasicInfo{FullName: "Juan Pérez", Email: "juan@example.com"}, account.ProfileInfo{}, nil)
	_, err := newClient(server.URL).Register(context.Background(), req)
	assert.ErrorIs(t, err, account.ErrAccountExists)
}

func TestRegister_RejectsNumericPreferences(t *testing.T) {
	req := account.NewRegistration(account.BasicInfo{FullName: "Juan", Email: "juan@example.com"}, account.ProfileInfo{}, []string{"1", "2"})
	_, err := newClient("http://127.0.0.1:1").Register(context.Background(), req)

	var fieldErr *account.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "preferencias", fieldErr.Field)
}

func TestProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			_, _ = w.Write([]byte(`{"token":"tok-3","user":{"id":1,"email":"ana@example.com"}}`))
		case "/api/auth/profile":
			assert.Equal(t, "Bearer tok-3", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"user":{"id":1,"email":"ana@example.com","nombre":"Ana","paisOrigen":"Argentina","preferencias":[1,"museos"]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newClient(server.URL)

	_, err := client.Profile(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)

	_, err = client.Login(context.Background(), "ana@example.com", "Secret123")
	require.NoError(t, err)

	profile, err := client.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.FirstName)
	assert.Equal(t, "Argentina", profile.Country)
	assert.Equal(t, []string{"1", "museos"}, profile.Preferences)
	assert.Equal(t, "Ana", client.Session().User().FirstName)
}

func TestProfile_ExpiredTokenEndsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Token expirado"}`))
	}))
	defer server.Close()

	client := newClient(server.URL)
	client.Session().Start("stale")

	_, err := client.Profile(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.False(t, client.Session().IsAuthenticated())
}

func TestLogout(t *testing.T) {
	client := newClient("http://127.0.0.1:1")
	client.Session().Start("tok")
	client.Logout()
	_, ok := client.Session().Token()
	assert.False(t, ok)
}
