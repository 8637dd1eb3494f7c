package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxperience/baxperience/internal/backend"
	"github.com/baxperience/baxperience/internal/provider/resilience"
)

func TestClient_Do_RequestShape(t *testing.T) {
	var got *http.Request
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"count":3}`))
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL + "/"})

	var out struct {
		OK    bool `json:"ok"`
		Count int  `json:"count"`
	}
	err := client.Do(context.Background(), backend.Call{
		Method:         http.MethodPost,
		Endpoint:       "/itinerary/confirm",
		Token:          "tok-123",
		Body:           map[string]string{"nombre": "Recorrido"},
		IdempotencyKey: "req-1",
	}, &out)
	require.NoError(t, err)

	assert.True(t, out.OK)
	assert.Equal(t, 3, out.Count)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/itinerary/confirm", got.URL.Path)
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer tok-123", got.Header.Get("Authorization"))
	assert.Equal(t, "req-1", got.Header.Get("Idempotency-Key"))
	assert.Len(t, got.Header.Get("X-Request-Id"), 36)
	assert.Equal(t, "Recorrido", gotBody["nombre"])
}

func TestClient_Do_NoTokenNoAuthorization(t *testing.T) {
	var auth, contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	var out map[string]any
	require.NoError(t, client.Do(context.Background(), backend.Call{Endpoint: "health"}, &out))

	assert.Empty(t, auth)
	assert.Empty(t, contentType)
	assert.Nil(t, out, "empty 2xx bodies leave out untouched")
}

func TestClient_Do_StatusErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantDetails bool
	}{
		{"error field", http.StatusUnauthorized, `{"error":"Token inválido"}`, "Token inválido", false},
		{"message field", http.StatusBadRequest, `{"message":"Faltan campos","details":{"campo":"nombre"}}`, "Faltan campos", true},
		{"error wins over message", http.StatusConflict, `{"error":"duplicado","message":"otro"}`, "duplicado", false},
		{"plain text", http.StatusBadGateway, "upstream down", "upstream down", false},
		{"html falls back to status text", http.StatusInternalServerError, "<html>boom</html>", "Internal Server Error", false},
		{"empty body", http.StatusServiceUnavailable, "", "Service Unavailable", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
			err := client.Do(context.Background(), backend.Call{Endpoint: "/x"}, nil)

			var statusErr *backend.StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.wantMessage, statusErr.Message)
			assert.False(t, statusErr.IsNetwork())
			if tt.wantDetails {
				assert.JSONEq(t, `{"campo":"nombre"}`, string(statusErr.Details))
			}
		})
	}
}

func TestClient_Do_ServerErrorNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	err := client.Do(context.Background(), backend.Call{Method: http.MethodPost, Endpoint: "/itinerary/generate", Body: map[string]int{"a": 1}}, nil)

	var statusErr *backend.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: url})
	err := client.Do(context.Background(), backend.Call{Endpoint: "/x"}, nil)

	var statusErr *backend.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 0, statusErr.StatusCode)
	assert.True(t, statusErr.IsNetwork())
	assert.NotNil(t, statusErr.Unwrap())
}

func TestClient_Do_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	err := client.Do(context.Background(), backend.Call{Endpoint: "/slow"}, nil)

	var statusErr *backend.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, statusErr.IsNetwork())
}

func TestClient_Do_CallerCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := client.Do(ctx, backend.Call{Endpoint: "/x"}, nil)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	var statusErr *backend.StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestClient_Do_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":`))
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	var out map[string]any
	err := client.Do(context.Background(), backend.Call{Endpoint: "/x"}, &out)
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestClient_Do_ReportsToRegistry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL, Registry: registry})
	_ = client.Do(context.Background(), backend.Call{Endpoint: "/x"}, nil)

	health, ok := registry.Health(backend.ProviderName)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, health.LastStatus)
	assert.NotNil(t, health.LastFailureAt)
	assert.Nil(t, health.LastSuccessAt)
}

func TestClient_Do_OpenCircuitIsUnavailable(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	for i := 0; i < 3; i++ {
		_ = client.Do(context.Background(), backend.Call{Endpoint: "/x"}, nil)
	}

	err := client.Do(context.Background(), backend.Call{Endpoint: "/x"}, nil)

	var statusErr *backend.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.False(t, statusErr.IsNetwork())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClient_URL(t *testing.T) {
	tests := []struct {
		base, prefix, endpoint, want string
	}{
		{"http://h:3000", "", "/itinerary/generate", "http://h:3000/api/itinerary/generate"},
		{"http://h:3000/", "api/", "auth/login", "http://h:3000/api/auth/login"},
		{"http://h", "/v2", "/x", "http://h/v2/x"},
		{"", "", "/x", backend.DefaultBaseURL + "/api/x"},
	}
	for _, tt := range tests {
		c := backend.NewClient(backend.ClientConfig{BaseURL: tt.base, APIPrefix: tt.prefix})
		assert.Equal(t, tt.want, c.URL(tt.endpoint))
	}
}
