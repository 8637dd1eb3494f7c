// Package backend is the authenticated JSON transport to the BAXperience REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/baxperience/baxperience/internal/provider/resilience"
)

const (
	// ProviderName identifies the backend in the resilience registry.
	ProviderName = "bax-backend"

	// DefaultBaseURL reaches a backend on the host from the Android emulator.
	DefaultBaseURL = "http://10.0.2.2:3000"

	// DefaultAPIPrefix is prepended to every endpoint.
	DefaultAPIPrefix = "/api"

	// DefaultTimeout bounds each call.
	DefaultTimeout = 30 * time.Second

	tracerName   = "github.com/baxperience/baxperience/internal/backend"
	maxBodyBytes = 4 << 20
)

// ErrMalformedResponse is returned when a 2xx body is not the expected JSON.
var ErrMalformedResponse = errors.New("malformed backend response")

// StatusError is a failed backend call. StatusCode 0 means no HTTP response
// was received (transport failure or timeout). An open circuit is reported as
// 503 since it only opens after the backend kept answering 5xx.
type StatusError struct {
	StatusCode int
	Message    string
	Details    json.RawMessage
	Err        error
}

func (e *StatusError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return "backend unreachable: " + e.Err.Error()
		}
		return "backend unreachable"
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether no response was received.
func (e *StatusError) IsNetwork() bool {
	return e.StatusCode == 0
}

// Call describes one backend request.
type Call struct {
	Method   string
	Endpoint string
	// Token is sent as a bearer credential when non-empty.
	Token string
	// Body is JSON-encoded when non-nil.
	Body any
	// IdempotencyKey is sent as the Idempotency-Key header when non-empty.
	IdempotencyKey string
}

// ClientConfig holds configuration for the backend client.
type ClientConfig struct {
	// BaseURL is the server root (default: DefaultBaseURL).
	BaseURL string

	// APIPrefix is prepended to endpoints (default: "/api").
	APIPrefix string

	// Timeout bounds each call (default: 30 seconds).
	Timeout time.Duration

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client without retries.
	HTTPClient *resilience.Client

	// Registry receives the default client's outcomes (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client sends JSON requests to the backend.
type Client struct {
	baseURL    string
	apiPrefix  string
	timeout    time.Duration
	httpClient *resilience.Client
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewClient creates a new backend client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	apiPrefix := cfg.APIPrefix
	if apiPrefix == "" {
		apiPrefix = DefaultAPIPrefix
	}
	apiPrefix = "/" + strings.Trim(apiPrefix, "/")
	if apiPrefix == "/" {
		apiPrefix = ""
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rcfg := resilience.DefaultClientConfig(ProviderName)
		rcfg.Timeout = timeout
		rcfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(rcfg)
	}

	return &Client{
		baseURL:    baseURL,
		apiPrefix:  apiPrefix,
		timeout:    timeout,
		httpClient: httpClient,
		tracer:     otel.Tracer(tracerName),
		logger:     cfg.Logger,
	}
}

// URL returns the absolute URL for endpoint.
func (c *Client) URL(endpoint string) string {
	return c.baseURL + c.apiPrefix + "/" + strings.TrimLeft(endpoint, "/")
}

// Do performs call and decodes a 2xx JSON body into out (when out is non-nil).
//
// Errors are *StatusError for transport failures and non-2xx answers, the
// context error when ctx ends first, and ErrMalformedResponse for 2xx bodies
// that do not decode.
func (c *Client) Do(ctx context.Context, call Call, out any) error {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	url := c.URL(call.Endpoint)
	requestID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, method+" "+call.Endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", url),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	var body io.Reader = http.NoBody
	if call.Body != nil {
		b, err := json.Marshal(call.Body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if call.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", requestID)
	if call.Token != "" {
		req.Header.Set("Authorization", "Bearer "+call.Token)
	}
	if call.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", call.IdempotencyKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Parent cancellation is the caller's decision, not a network fault.
		if parentErr := context.Cause(ctx); parentErr != nil && !errors.Is(parentErr, context.DeadlineExceeded) {
			span.SetStatus(codes.Error, "cancelled")
			return parentErr
		}
		if errors.Is(err, resilience.ErrCircuitOpen) {
			span.SetStatus(codes.Error, "circuit open")
			c.logger.Warn().
				Str("method", method).
				Str("endpoint", call.Endpoint).
				Str("request_id", requestID).
				Msg("backend circuit open, request not sent")
			return &StatusError{
				StatusCode: http.StatusServiceUnavailable,
				Message:    http.StatusText(http.StatusServiceUnavailable),
				Err:        err,
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.Error().
			Err(err).
			Str("method", method).
			Str("endpoint", call.Endpoint).
			Str("request_id", requestID).
			Msg("backend request failed")
		return &StatusError{StatusCode: 0, Message: "network error", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		return &StatusError{StatusCode: 0, Message: "network error", Err: fmt.Errorf("reading response: %w", err)}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	logEvent := c.logger.Debug()
	if resp.StatusCode >= 500 {
		logEvent = c.logger.Warn()
	}
	logEvent.
		Str("method", method).
		Str("endpoint", call.Endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", requestID).
		Msg("backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 500 {
			span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		}
		return newStatusError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// errorBody is the error shape returned by the backend.
type errorBody struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

func newStatusError(status int, raw []byte) *StatusError {
	e := &StatusError{StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		e.Details = eb.Details
		switch {
		case eb.Error != "":
			e.Message = eb.Error
		case eb.Message != "":
			e.Message = eb.Message
		}
	} else if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "<") {
		if len(text) > 200 {
			text = text[:200]
		}
		e.Message = text
	}

	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
