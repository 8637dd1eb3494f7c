// Package planner runs the trip planning pipeline: resolve the origin, validate
// and build the request, generate a proposed itinerary and confirm it once.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/baxperience/baxperience/internal/itinerary"
	"github.com/baxperience/baxperience/internal/location"
	"github.com/baxperience/baxperience/internal/session"
	"github.com/baxperience/baxperience/internal/trip"
)

const meterName = "github.com/baxperience/baxperience/internal/planner"

// ErrAlreadyConfirmed is returned, together with the stored result, when a
// draft that was already saved is confirmed again.
var ErrAlreadyConfirmed = errors.New("itinerary already confirmed")

// ErrNoOrigin is returned when neither the device nor the base location yields an origin.
var ErrNoOrigin = errors.New("no origin available")

// OriginSource says where an origin came from.
type OriginSource string

const (
	SourceDevice       OriginSource = "device"
	SourceBaseLocation OriginSource = "base_location"
)

// Origin is the starting point used for generation.
type Origin struct {
	Coordinate location.Coordinate
	Address    string
	Source     OriginSource
	// Warning is the non-fatal error that led to a degraded origin, if any.
	Warning error
}

// Draft is a generated itinerary awaiting confirmation. Drafts are not
// modified after Generate returns them.
type Draft struct {
	id      string
	Params  trip.Parameters
	Origin  Origin
	Request trip.GenerationRequest
	Result  itinerary.GenerationResult
}

// ID identifies the draft for confirmation bookkeeping.
func (d *Draft) ID() string {
	return d.id
}

// Config holds the planner's collaborators.
type Config struct {
	Builder      *trip.Builder
	Resolver     *location.Resolver
	Generation   *itinerary.GenerationClient
	Confirmation *itinerary.ConfirmationClient
	Session      *session.Session

	// Meter records outcome counters. If nil, the global meter is used.
	Meter metric.Meter

	Logger zerolog.Logger
}

// Planner orchestrates trip planning. It is safe for concurrent use.
type Planner struct {
	builder      *trip.Builder
	resolver     *location.Resolver
	generation   *itinerary.GenerationClient
	confirmation *itinerary.ConfirmationClient
	session      *session.Session
	logger       zerolog.Logger

	generateTotal metric.Int64Counter
	confirmTotal  metric.Int64Counter

	confirmGroup singleflight.Group
	mu           sync.Mutex
	confirmed    map[string]*itinerary.ConfirmedItinerary
}

// New creates a planner.
func New(cfg Config) (*Planner, error) {
	if cfg.Generation == nil || cfg.Confirmation == nil {
		return nil, errors.New("planner: generation and confirmation clients are required")
	}
	builder := cfg.Builder
	if builder == nil {
		builder = trip.NewBuilder(trip.BuilderConfig{})
	}
	sess := cfg.Session
	if sess == nil {
		sess = session.New()
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	generateTotal, err := meter.Int64Counter(
		"bax.itinerary.generate",
		metric.WithDescription("Itinerary generation attempts by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating generate counter: %w", err)
	}

	confirmTotal, err := meter.Int64Counter(
		"bax.itinerary.confirm",
		metric.WithDescription("Itinerary confirmation attempts by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating confirm counter: %w", err)
	}

	return &Planner{
		builder:       builder,
		resolver:      cfg.Resolver,
		generation:    cfg.Generation,
		confirmation:  cfg.Confirmation,
		session:       sess,
		logger:        cfg.Logger,
		generateTotal: generateTotal,
		confirmTotal:  confirmTotal,
		confirmed:     make(map[string]*itinerary.ConfirmedItinerary),
	}, nil
}

// ResolveOrigin locates the traveller. Permission and fix failures fall back
// to the base location's reference point when it has one; an out-of-region
// position is returned as an error and never replaced.
func (p *Planner) ResolveOrigin(ctx context.Context, params trip.Parameters) (Origin, error) {
	if p.resolver == nil {
		return p.baseOrigin(params, ErrNoOrigin)
	}

	out := p.resolver.Resolve(ctx)
	switch out.State {
	case location.StateGeocodeResolved, location.StateGeocodeError:
		origin := Origin{Coordinate: out.Coordinate, Source: SourceDevice, Warning: out.Err}
		if out.Address != nil {
			origin.Address = out.Address.AddressLine
		}
		return origin, nil
	case location.StateGeocodeOutOfRegion, location.StateCancelled:
		return Origin{}, out.Err
	}

	return p.baseOrigin(params, out.Err)
}

func (p *Planner) baseOrigin(params trip.Parameters, cause error) (Origin, error) {
	c, ok := params.BaseLocation.Centroid()
	if !ok {
		if cause == nil {
			cause = ErrNoOrigin
		}
		return Origin{}, cause
	}
	p.logger.Debug().
		Str("base_location", string(params.BaseLocation)).
		AnErr("cause", cause).
		Msg("using base location as origin")
	return Origin{
		Coordinate: c,
		Address:    params.BaseAddress,
		Source:     SourceBaseLocation,
		Warning:    cause,
	}, nil
}

// Generate validates params, builds the request and asks the backend for a
// proposed itinerary using the session token.
func (p *Planner) Generate(ctx context.Context, params trip.Parameters, origin Origin) (*Draft, error) {
	draft, err := p.generate(ctx, params, origin)
	p.generateTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
	return draft, err
}

func (p *Planner) generate(ctx context.Context, params trip.Parameters, origin Origin) (*Draft, error) {
	req, err := p.builder.Build(params, origin.Coordinate, origin.Address)
	if err != nil {
		return nil, err
	}

	token, err := p.credential(itinerary.OpGenerate)
	if err != nil {
		return nil, err
	}
	result, err := p.generation.Generate(ctx, req, token)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("request_id", result.RequestID).
		Int("activities", len(result.Itinerary.Activities)).
		Msg("itinerary drafted")

	return &Draft{
		id:      uuid.NewString(),
		Params:  params,
		Origin:  origin,
		Request: *req,
		Result:  *result,
	}, nil
}

// Confirm saves draft at most once. Concurrent calls for the same draft share
// one request; once saved, further calls return the stored result with
// ErrAlreadyConfirmed. Empty meta fields default from the draft.
func (p *Planner) Confirm(ctx context.Context, draft *Draft, meta itinerary.TripMeta) (*itinerary.ConfirmedItinerary, error) {
	if draft == nil || draft.id == "" {
		return nil, errors.New("planner: confirm requires a generated draft")
	}

	if done, ok := p.lookupConfirmed(draft.id); ok {
		p.confirmTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(ErrAlreadyConfirmed))))
		return done, ErrAlreadyConfirmed
	}

	token, err := p.credential(itinerary.OpConfirm)
	if err != nil {
		p.confirmTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
		return nil, err
	}

	// The shared request outlives any single caller; each caller stops
	// waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := p.confirmGroup.DoChan(draft.id, func() (any, error) {
		if done, ok := p.lookupConfirmed(draft.id); ok {
			return done, ErrAlreadyConfirmed
		}

		confirmed, err := p.confirmation.Confirm(shared, draft.Result.Itinerary, p.metaFor(draft, meta), token)
		p.confirmTotal.Add(shared, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.confirmed[draft.id] = confirmed
		p.mu.Unlock()
		return confirmed, nil
	})

	select {
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case res := <-ch:
		if res.Val == nil {
			return nil, res.Err
		}
		return res.Val.(*itinerary.ConfirmedItinerary), res.Err
	}
}

// credential returns the session token, or an unauthorized error when the
// session is missing or its token has expired.
func (p *Planner) credential(op itinerary.Op) (string, error) {
	token, ok := p.session.Token()
	if !ok {
		return "", &itinerary.Error{Op: op, Kind: itinerary.KindUnauthorized, Err: session.ErrNoSession}
	}
	if !p.session.IsAuthenticated() {
		return "", &itinerary.Error{Op: op, Kind: itinerary.KindUnauthorized, Err: errors.New("access token expired")}
	}
	return token, nil
}

// Confirmed reports the stored confirmation of draft, if any.
func (p *Planner) Confirmed(draft *Draft) (*itinerary.ConfirmedItinerary, bool) {
	if draft == nil {
		return nil, false
	}
	return p.lookupConfirmed(draft.id)
}

func (p *Planner) lookupConfirmed(id string) (*itinerary.ConfirmedItinerary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.confirmed[id]
	return c, ok
}

func (p *Planner) metaFor(d *Draft, meta itinerary.TripMeta) itinerary.TripMeta {
	if meta.Name == "" {
		meta.Name = strings.TrimSpace(d.Params.TripName)
	}
	if meta.TransportMode == "" {
		meta.TransportMode = d.Params.TransportMode
	}
	if meta.PreferredZone == "" {
		meta.PreferredZone = d.Request.PreferredZone
	}
	if meta.RequestID == "" {
		meta.RequestID = d.Result.RequestID
	}
	return meta
}

// outcome labels err for metrics.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var validation *trip.ValidationError
	var itErr *itinerary.Error
	switch {
	case errors.Is(err, ErrAlreadyConfirmed):
		return "duplicate"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &itErr):
		return strings.ToLower(string(itErr.Kind))
	}
	return "error"
}
