package itinerary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/baxperience/baxperience/internal/backend"
	"github.com/baxperience/baxperience/internal/trip"
)

const (
	generateEndpoint = "/itinerary/generate"
	confirmEndpoint  = "/itinerary/confirm"
)

// ClientConfig holds configuration for the itinerary clients.
type ClientConfig struct {
	// Backend is the transport to use. If nil, a default backend client is created.
	Backend *backend.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

func (cfg ClientConfig) backend() *backend.Client {
	if cfg.Backend != nil {
		return cfg.Backend
	}
	return backend.NewClient(backend.ClientConfig{Logger: cfg.Logger})
}

// GenerationClient requests proposed itineraries.
type GenerationClient struct {
	backend *backend.Client
	logger  zerolog.Logger
}

// NewGenerationClient creates a new generation client.
func NewGenerationClient(cfg ClientConfig) *GenerationClient {
	return &GenerationClient{backend: cfg.backend(), logger: cfg.Logger}
}

// Generate sends req and returns the proposed itinerary with activities in
// server order. An empty token fails with KindUnauthorized without a request.
func (c *GenerationClient) Generate(ctx context.Context, req *trip.GenerationRequest, token string) (*GenerationResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &Error{Op: OpGenerate, Kind: KindUnauthorized, Err: errors.New("no access token")}
	}
	if req == nil {
		return nil, &Error{Op: OpGenerate, Kind: KindBadRequest, Err: errors.New("nil generation request")}
	}

	var resp GenerationResponse
	err := c.backend.Do(ctx, backend.Call{
		Method:   http.MethodPost,
		Endpoint: generateEndpoint,
		Token:    token,
		Body:     req,
	}, &resp)
	if err != nil {
		return nil, c.fail(mapError(OpGenerate, err))
	}

	if resp.Itinerary == nil {
		return nil, c.fail(&Error{Op: OpGenerate, Kind: KindServer, StatusCode: http.StatusOK,
			Err: fmt.Errorf("%w: missing itinerario_propuesto", backend.ErrMalformedResponse)})
	}

	c.logger.Debug().
		Str("request_id", resp.RequestID).
		Int("activities", len(resp.Itinerary.Activities)).
		Msg("itinerary generated")

	return &GenerationResult{
		Message:   resp.Message,
		RequestID: resp.RequestID,
		Itinerary: *resp.Itinerary,
	}, nil
}

func (c *GenerationClient) fail(err error) error {
	logFailure(c.logger, err)
	return err
}

// ConfirmationClient saves proposed itineraries as trips.
//
// Confirm is not idempotent on its own; repeated calls may create duplicate
// trips unless a request ID is supplied and the backend deduplicates on it.
type ConfirmationClient struct {
	backend *backend.Client
	logger  zerolog.Logger
}

// NewConfirmationClient creates a new confirmation client.
func NewConfirmationClient(cfg ClientConfig) *ConfirmationClient {
	return &ConfirmationClient{backend: cfg.backend(), logger: cfg.Logger}
}

// Confirm persists proposed with the trip details in meta.
func (c *ConfirmationClient) Confirm(ctx context.Context, proposed ProposedItinerary, meta TripMeta, token string) (*ConfirmedItinerary, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &Error{Op: OpConfirm, Kind: KindUnauthorized, Err: errors.New("no access token")}
	}

	var resp confirmResponse
	err := c.backend.Do(ctx, backend.Call{
		Method:         http.MethodPost,
		Endpoint:       confirmEndpoint,
		Token:          token,
		Body:           NewConfirmationRequest(proposed, meta),
		IdempotencyKey: meta.RequestID,
	}, &resp)
	if err != nil {
		return nil, c.fail(mapError(OpConfirm, err))
	}

	id := resp.id()
	if id == "" {
		return nil, c.fail(&Error{Op: OpConfirm, Kind: KindServer, StatusCode: http.StatusOK,
			Err: fmt.Errorf("%w: missing itinerary id", backend.ErrMalformedResponse)})
	}

	c.logger.Info().Str("itinerary_id", string(id)).Msg("itinerary confirmed")
	return &ConfirmedItinerary{ID: id, Message: resp.Message}, nil
}

func (c *ConfirmationClient) fail(err error) error {
	logFailure(c.logger, err)
	return err
}

// NewConfirmationRequest builds the confirm body, filling empty meta fields
// from proposed. Activities are copied in order.
func NewConfirmationRequest(proposed ProposedItinerary, meta TripMeta) ConfirmationRequest {
	req := ConfirmationRequest{
		Name:          firstNonEmpty(meta.Name, proposed.Name),
		VisitDate:     firstNonEmpty(meta.VisitDate, proposed.VisitDate),
		StartTime:     firstNonEmpty(meta.StartTime, proposed.StartTime),
		DurationHours: meta.DurationHours,
		Origin:        proposed.Origin,
		PreferredZone: firstNonEmpty(meta.PreferredZone, proposed.PreferredZone),
		TransportMode: meta.TransportMode,
		Activities:    append([]Activity{}, proposed.Activities...),
	}
	if req.DurationHours <= 0 {
		req.DurationHours = proposed.DurationHours
	}
	if meta.Origin != nil {
		req.Origin = *meta.Origin
	}
	if req.TransportMode == "" {
		req.TransportMode = trip.TransportMixed
	}
	req.Description = meta.Description
	if req.Description == "" {
		req.Description = "Itinerary generated for " + req.VisitDate
	}
	return req
}

// logFailure logs technical failures at Error; rejections are Debug.
func logFailure(logger zerolog.Logger, err error) {
	var e *Error
	if !errors.As(err, &e) {
		return
	}
	event := logger.Debug()
	if e.Kind == KindNetwork || e.Kind == KindServer {
		event = logger.Error()
	}
	event.Err(err).Str("op", string(e.Op)).Str("kind", string(e.Kind)).Int("status", e.StatusCode).Msg("itinerary request failed")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
