// Package main provides baxplan, a command-line trip planner for Buenos Aires
// that logs in, drafts an itinerary and optionally confirms it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/baxperience/baxperience/internal/account"
	"github.com/baxperience/baxperience/internal/backend"
	"github.com/baxperience/baxperience/internal/config"
	"github.com/baxperience/baxperience/internal/itinerary"
	"github.com/baxperience/baxperience/internal/location"
	"github.com/baxperience/baxperience/internal/location/nominatim"
	"github.com/baxperience/baxperience/internal/location/rediscache"
	"github.com/baxperience/baxperience/internal/planner"
	"github.com/baxperience/baxperience/internal/provider/resilience"
	"github.com/baxperience/baxperience/internal/telemetry"
	"github.com/baxperience/baxperience/internal/trip"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	email     string
	password  string
	name      string
	date      string
	endDate   string
	start     string
	hours     string
	base      string
	address   string
	transport string
	zone      string
	lat       float64
	lon       float64
	confirm   bool
	verbose   bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("baxplan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.email, "email", "", "account email")
	fs.StringVar(&o.password, "password", "", "account password")
	fs.StringVar(&o.name, "name", "", "trip name")
	fs.StringVar(&o.date, "date", "", "visit date, YYYY-MM-DD")
	fs.StringVar(&o.endDate, "end-date", "", "last day of the trip, YYYY-MM-DD (default: -date)")
	fs.StringVar(&o.start, "start", "", "start time, HH:MM")
	fs.StringVar(&o.hours, "hours", "4", "hours available on a single-day trip")
	fs.StringVar(&o.base, "base", string(trip.BaseMicrocentro), "base location: hotel, palermo, recoleta, san_telmo, puerto_madero, microcentro or other")
	fs.StringVar(&o.address, "address", "", "starting address, required for hotel and other")
	fs.StringVar(&o.transport, "transport", string(trip.TransportMixed), "transport mode: walking, public, car, bicycle or mixed")
	fs.StringVar(&o.zone, "zone", "", "preferred neighbourhood code, e.g. palermo")
	fs.Float64Var(&o.lat, "lat", 0, "current latitude; with -lon, used instead of the base location")
	fs.Float64Var(&o.lon, "lon", 0, "current longitude")
	fs.BoolVar(&o.confirm, "confirm", false, "save the generated itinerary")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return o, nil
}

// params converts the flags into trip parameters. Unparseable dates are left
// zero so validation reports them alongside every other field.
func (o *options) params() trip.Parameters {
	start := parseDate(o.date)
	end := start
	if o.endDate != "" {
		end = parseDate(o.endDate)
	}
	return trip.Parameters{
		TripName:      o.name,
		StartDate:     start,
		EndDate:       end,
		BaseLocation:  trip.BaseLocation(o.base),
		BaseAddress:   o.address,
		TransportMode: trip.TransportMode(o.transport),
		PreferredArea: o.zone,
		StartTime:     o.start,
		DurationHours: o.hours,
	}
}

func (o *options) hasPosition() bool {
	return o.lat != 0 || o.lon != 0
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	level := cfg.LogLevel
	if opts.verbose {
		level = zerolog.LevelDebugValue
	}
	log := config.NewLogger(stderr, "baxplan", Version, level)

	if err := plan(ctx, cfg, opts, stdout, log); err != nil {
		log.Debug().Err(err).Msg("planning failed")
		fmt.Fprintln(stderr, "error:", userMessage(err))
		return 1
	}
	return 0
}

func plan(ctx context.Context, cfg *config.Config, opts *options, stdout io.Writer, log zerolog.Logger) error {
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "baxplan",
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	registry := resilience.NewRegistry()
	defer logProviderHealth(log, registry)

	api := backend.NewClient(backend.ClientConfig{
		BaseURL:   cfg.API.BaseURL,
		APIPrefix: cfg.API.Prefix,
		Timeout:   cfg.API.Timeout,
		Registry:  registry,
		Logger:    log,
	})

	accounts := account.NewClient(account.ClientConfig{Backend: api, Logger: log})
	user, err := accounts.Login(ctx, opts.email, opts.password)
	if err != nil {
		return err
	}
	log.Info().Str("user_id", user.ID).Msg("logged in")
	defer accounts.Logout()

	var resolver *location.Resolver
	if opts.hasPosition() {
		resolver, err = newResolver(ctx, cfg, opts, registry, log)
		if err != nil {
			return err
		}
	}

	p, err := planner.New(planner.Config{
		Builder: trip.NewBuilder(trip.BuilderConfig{
			DefaultStartTime: cfg.Trip.DefaultStartTime,
			MaxRequestHours:  cfg.Trip.MaxRequestHours,
			MultiDayHours:    cfg.Trip.MultiDayHours,
		}),
		Resolver:     resolver,
		Generation:   itinerary.NewGenerationClient(itinerary.ClientConfig{Backend: api, Logger: log}),
		Confirmation: itinerary.NewConfirmationClient(itinerary.ClientConfig{Backend: api, Logger: log}),
		Session:      accounts.Session(),
		Meter:        tp.Meter,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	params := opts.params()
	if err := trip.Validate(params); err != nil {
		return err
	}

	origin, err := p.ResolveOrigin(ctx, params)
	if err != nil {
		return err
	}
	if origin.Warning != nil {
		log.Warn().Err(origin.Warning).Str("source", string(origin.Source)).Msg("origin degraded")
	}

	draft, err := p.Generate(ctx, params, origin)
	if err != nil {
		return err
	}
	printItinerary(stdout, draft.Result.Itinerary)

	if !opts.confirm {
		return nil
	}
	confirmed, err := p.Confirm(ctx, draft, itinerary.TripMeta{})
	if err != nil && !errors.Is(err, planner.ErrAlreadyConfirmed) {
		return err
	}
	fmt.Fprintf(stdout, "\nSaved as itinerary %s\n", confirmed.ID)
	return nil
}

func newResolver(ctx context.Context, cfg *config.Config, opts *options, registry *resilience.Registry, log zerolog.Logger) (*location.Resolver, error) {
	var cache location.Cache
	if cfg.Geocoding.RedisURL != "" {
		client, err := rediscache.Connect(ctx, cfg.Geocoding.RedisURL)
		if err != nil {
			return nil, err
		}
		cache = rediscache.New(client, cfg.Geocoding.CacheTTL)
	} else {
		cache = location.NewMemoryCache(cfg.Geocoding.CacheTTL)
	}

	// Reverse lookups are idempotent GETs; retry once.
	httpCfg := resilience.DefaultClientConfig(nominatim.ProviderName)
	httpCfg.MaxRetries = 1
	httpCfg.Registry = registry

	return location.NewResolver(location.ResolverConfig{
		Device: location.StaticProvider{
			Position: location.Coordinate{Latitude: opts.lat, Longitude: opts.lon},
		},
		Geocoder: nominatim.NewClient(nominatim.ClientConfig{
			BaseURL:           cfg.Geocoding.NominatimURL,
			UserAgent:         cfg.Geocoding.UserAgent,
			RequestsPerSecond: cfg.Geocoding.RequestsPerSecond,
			HTTPClient:        resilience.NewClient(httpCfg),
			Logger:            log,
		}),
		Cache: cache,
		FixOptions: location.FixOptions{
			Timeout: cfg.Location.FixTimeout,
			MaxAge:  cfg.Location.FixMaxAge,
		},
		Logger: log,
	}), nil
}

func printItinerary(w io.Writer, it itinerary.ProposedItinerary) {
	fmt.Fprintf(w, "%s\n%s from %s, %dh\n", it.Name, it.VisitDate, it.StartTime, it.DurationHours)
	fmt.Fprintf(w, "Starting at %s\n\n", it.Origin.Label())

	for i, a := range it.Activities {
		fmt.Fprintf(w, "%2d. %s-%s  %s", i+1, a.StartTime, a.EndTime, a.Name)
		if a.Neighborhood != "" {
			fmt.Fprintf(w, " (%s)", a.Neighborhood)
		}
		if c := a.Category(); c != "" {
			fmt.Fprintf(w, " [%s]", c)
		}
		fmt.Fprintln(w)
		if a.Address != "" {
			fmt.Fprintf(w, "    %s\n", a.Address)
		}
	}

	s := it.Summary()
	fmt.Fprintf(w, "\n%d activities in %d neighbourhoods, %.1f km, %s of visits\n",
		s.Activities, s.Neighborhoods, s.DistanceMeters/1000, s.Total)
	if s.Polyline != "" {
		fmt.Fprintf(w, "Route: %s\n", s.Polyline)
	}
}

func logProviderHealth(log zerolog.Logger, registry *resilience.Registry) {
	for _, h := range registry.Snapshot() {
		log.Debug().
			Str("provider", h.Name).
			Str("circuit", h.CircuitState.String()).
			Uint32("requests", h.Counts.Requests).
			Uint32("failures", h.Counts.TotalFailures).
			Int("last_status", h.LastStatus).
			Str("last_error", h.LastError).
			Msg("provider health")
	}
	if names := registry.Degraded(); len(names) > 0 {
		log.Warn().Strs("providers", names).Msg("upstream circuit not closed")
	}
}

// userMessage prefers the error's own user-facing text.
func userMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	case errors.Is(err, planner.ErrNoOrigin):
		return "Could not determine where to start. Pass -lat and -lon, or pick a neighbourhood with -base."
	}
	return err.Error()
}
