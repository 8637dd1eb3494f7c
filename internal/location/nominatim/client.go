// Package nominatim implements reverse geocoding against the OpenStreetMap
// Nominatim API.
package nominatim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/baxperience/baxperience/internal/location"
	"github.com/baxperience/baxperience/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies the application, as required by the usage policy.
	DefaultUserAgent = "BAXperience/1.0"

	// DefaultLanguage requests Spanish place names.
	DefaultLanguage = "es"

	maxBodyBytes = 1 << 20
)

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public instance).
	BaseURL string

	// UserAgent is sent with every request (default: DefaultUserAgent).
	UserAgent string

	// Language is the accept-language value (default: "es").
	Language string

	// RequestsPerSecond bounds outgoing calls (default: 1, the public usage policy).
	RequestsPerSecond float64

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Nominatim reverse-geocoding client.
type Client struct {
	baseURL    string
	userAgent  string
	language   string
	limiter    *rate.Limiter
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	language := cfg.Language
	if language == "" {
		language = DefaultLanguage
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		language:   language,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// ReverseGeocode looks up the place at coordinate co.
func (c *Client) ReverseGeocode(ctx context.Context, co location.Coordinate) (*location.Place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(co.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(co.Longitude, 'f', 6, 64))
	q.Set("addressdetails", "1")
	q.Set("accept-language", c.language)
	reqURL := c.baseURL + "/reverse?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &location.ProviderError{Provider: ProviderName, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", location.ErrMalformedResponse)
	}
	if body[0] == '<' {
		return nil, fmt.Errorf("%w: received markup instead of JSON", location.ErrMalformedResponse)
	}

	var rr reverseResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("%w: %w", location.ErrMalformedResponse, err)
	}

	if rr.Error != "" {
		c.logger.Debug().
			Str("coordinate", co.String()).
			Str("reason", rr.Error).
			Msg("nominatim found no place")
		return &location.Place{}, nil
	}

	return rr.toPlace(), nil
}

// reverseResponse is the Nominatim /reverse JSON body.
type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     *struct {
		HouseNumber   string `json:"house_number"`
		Road          string `json:"road"`
		Neighbourhood string `json:"neighbourhood"`
		Suburb        string `json:"suburb"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		Municipality  string `json:"municipality"`
		State         string `json:"state"`
		Province      string `json:"province"`
		Country       string `json:"country"`
		CountryCode   string `json:"country_code"`
	} `json:"address"`
}

func (r *reverseResponse) toPlace() *location.Place {
	p := &location.Place{DisplayName: r.DisplayName}
	if a := r.Address; a != nil {
		p.HouseNumber = a.HouseNumber
		p.Road = a.Road
		p.Neighbourhood = a.Neighbourhood
		p.Suburb = a.Suburb
		p.City = a.City
		p.Town = a.Town
		p.Village = a.Village
		p.Municipality = a.Municipality
		p.State = a.State
		p.Province = a.Province
		p.Country = a.Country
		p.CountryCode = a.CountryCode
	}
	return p
}
