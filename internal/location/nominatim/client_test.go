package nominatim_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxperience/baxperience/internal/location"
	"github.com/baxperience/baxperience/internal/location/nominatim"
	"github.com/baxperience/baxperience/internal/provider/resilience"
)

var obelisco = location.Coordinate{Latitude: -34.603722, Longitude: -58.381592}

func newTestClient(url string) *nominatim.Client {
	return nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:           url,
		RequestsPerSecond: 1000,
		HTTPClient:        resilience.NewClient(resilience.DefaultClientConfig("nominatim-test")),
	})
}

func TestClient_ReverseGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "-34.603722", r.URL.Query().Get("lat"))
		assert.Equal(t, "-58.381592", r.URL.Query().Get("lon"))
		assert.Equal(t, "1", r.URL.Query().Get("addressdetails"))
		assert.Equal(t, "es", r.URL.Query().Get("accept-language"))
		assert.Equal(t, "BAXperience/1.0", r.Header.Get("User-Agent"))

		response := map[string]interface{}{
			"display_name": "Obelisco, Avenida 9 de Julio, San Nicolás, Buenos Aires, Comuna 1, Ciudad Autónoma de Buenos Aires, C1043AAX, Argentina",
			"address": map[string]string{
				"tourism":      "Obelisco",
				"road":         "Avenida 9 de Julio",
				"suburb":       "San Nicolás",
				"city":         "Buenos Aires",
				"state":        "Ciudad Autónoma de Buenos Aires",
				"postcode":     "C1043AAX",
				"country":      "Argentina",
				"country_code": "ar",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	place, err := client.ReverseGeocode(context.Background(), obelisco)
	require.NoError(t, err)

	assert.Equal(t, "Avenida 9 de Julio", place.Road)
	assert.Equal(t, "San Nicolás", place.Suburb)
	assert.Equal(t, "Buenos Aires", place.City)
	assert.Equal(t, "Ciudad Autónoma de Buenos Aires", place.State)
	assert.Equal(t, "ar", place.CountryCode)
	assert.Contains(t, place.DisplayName, "Obelisco")
	assert.Equal(t, "nominatim", client.Name())
}

func TestClient_ReverseGeocode_DisplayNameOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"display_name":"Plaza de Mayo, Buenos Aires, Argentina"}`))
	}))
	defer server.Close()

	place, err := newTestClient(server.URL).ReverseGeocode(context.Background(), obelisco)
	require.NoError(t, err)

	assert.Equal(t, "Plaza de Mayo, Buenos Aires, Argentina", place.DisplayName)
	assert.False(t, place.HasStructuredAddress())
}

func TestClient_ReverseGeocode_UnableToGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer server.Close()

	place, err := newTestClient(server.URL).ReverseGeocode(context.Background(), obelisco)
	require.NoError(t, err)
	assert.True(t, place.IsEmpty())
}

func TestClient_ReverseGeocode_Failures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  int
		wantMalform bool
	}{
		{name: "server error", status: http.StatusServiceUnavailable, body: `{}`, wantStatus: 503},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantStatus: 429},
		{name: "empty body", status: http.StatusOK, body: "", wantMalform: true},
		{name: "html body", status: http.StatusOK, body: "<html><body>Bad Gateway</body></html>", wantMalform: true},
		{name: "invalid json", status: http.StatusOK, body: "{not json", wantMalform: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			place, err := newTestClient(server.URL).ReverseGeocode(context.Background(), obelisco)
			require.Error(t, err)
			assert.Nil(t, place)

			if tt.wantMalform {
				assert.ErrorIs(t, err, location.ErrMalformedResponse)
				return
			}
			var provErr *location.ProviderError
			require.True(t, errors.As(err, &provErr))
			assert.Equal(t, tt.wantStatus, provErr.StatusCode)
		})
	}
}

func TestClient_ReverseGeocode_RateLimited(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []time.Time
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls = append(calls, time.Now())
		mu.Unlock()
		_, _ = w.Write([]byte(`{"display_name":"x"}`))
	}))
	defer server.Close()

	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:           server.URL,
		RequestsPerSecond: 10,
	})

	for i := 0; i < 3; i++ {
		_, err := client.ReverseGeocode(context.Background(), obelisco)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 3)
	assert.GreaterOrEqual(t, calls[2].Sub(calls[0]), 150*time.Millisecond)
}

func TestClient_ReverseGeocode_CancelledWhileWaiting(t *testing.T) {
	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:           "http://127.0.0.1:0",
		RequestsPerSecond: 0.001,
	})

	// First call consumes the only token.
	_, _ = client.ReverseGeocode(context.Background(), obelisco)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.ReverseGeocode(ctx, obelisco)
	assert.Error(t, err)
}

func TestClient_ReverseGeocode_ThroughResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"display_name":"Mountain View, CA, USA","address":{"city":"Mountain View","state":"California","country":"United States","country_code":"us"}}`))
	}))
	defer server.Close()

	resolver := location.NewResolver(location.ResolverConfig{
		Device:   location.StaticProvider{Position: location.Coordinate{Latitude: 37.4219983, Longitude: -122.084}},
		Geocoder: newTestClient(server.URL),
	})

	out := resolver.Resolve(context.Background())
	assert.Equal(t, location.StateGeocodeOutOfRegion, out.State)

	var locErr *location.Error
	require.True(t, errors.As(out.Err, &locErr))
	assert.Equal(t, location.KindOutOfRegion, locErr.Kind)
}
