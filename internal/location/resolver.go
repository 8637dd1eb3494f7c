package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// Device is the platform location provider (required).
	Device DeviceProvider
	// Geocoder reverse-geocodes fixes (required).
	Geocoder ReverseGeocoder
	// Geofence restricts accepted places (default: CABAGeofence).
	Geofence *Geofence
	// Cache stores geocoding results (optional).
	Cache Cache
	// CacheGridSize is the cache cell size in degrees (default: DefaultCacheGridSize).
	CacheGridSize float64
	// FixOptions are the defaults for AcquireFix (default: DefaultFixOptions).
	FixOptions FixOptions
	// Logger for resolver operations.
	Logger zerolog.Logger
}

// Resolver obtains the user's position and a geofenced address.
type Resolver struct {
	device        DeviceProvider
	geocoder      ReverseGeocoder
	geofence      Geofence
	cache         Cache
	cacheGridSize float64
	fixOptions    FixOptions
	logger        zerolog.Logger
	now           func() time.Time

	mu      sync.Mutex
	lastFix *Fix
}

// Outcome is the terminal result of Resolve.
type Outcome struct {
	State      State
	Coordinate Coordinate
	// Address is set on GeocodeResolved, and holds the coordinate fallback on GeocodeError.
	Address *ResolvedAddress
	Err     error
}

// NewResolver creates a new location resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	geofence := CABAGeofence()
	if cfg.Geofence != nil {
		geofence = *cfg.Geofence
	}

	gridSize := cfg.CacheGridSize
	if gridSize <= 0 {
		gridSize = DefaultCacheGridSize
	}

	fixOptions := cfg.FixOptions
	if fixOptions == (FixOptions{}) {
		fixOptions = DefaultFixOptions()
	}
	fixOptions = fixOptions.withDefaults(DefaultFixOptions())

	return &Resolver{
		device:        cfg.Device,
		geocoder:      cfg.Geocoder,
		geofence:      geofence,
		cache:         cfg.Cache,
		cacheGridSize: gridSize,
		fixOptions:    fixOptions,
		logger:        cfg.Logger,
		now:           time.Now,
	}
}

// FixOptions returns the resolver's default fix options.
func (r *Resolver) FixOptions() FixOptions {
	return r.fixOptions
}

// RequestPermission asks for location access. Denial and provider failures
// both yield false.
func (r *Resolver) RequestPermission(ctx context.Context) bool {
	granted, err := r.device.RequestAuthorization(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("location permission request failed")
		}
		return false
	}
	return granted
}

// AcquireFix obtains the current position within opts.Timeout.
//
// A remembered fix younger than opts.MaxAge is returned without asking the
// device. When ctx itself is cancelled the context error is returned as is and
// nothing is remembered.
func (r *Resolver) AcquireFix(ctx context.Context, opts FixOptions) (Coordinate, error) {
	opts = opts.withDefaults(r.fixOptions)

	if fix, ok := r.recentFix(opts.MaxAge); ok {
		r.logger.Debug().
			Dur("age", r.now().Sub(fix.Timestamp)).
			Msg("reusing recent location fix")
		return fix.Coordinate, nil
	}

	fixCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	type result struct {
		fix Fix
		err error
	}
	done := make(chan result, 1)
	go func() {
		fix, err := r.device.CurrentPosition(fixCtx, opts)
		done <- result{fix: fix, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-fixCtx.Done():
		res.err = fixCtx.Err()
	}

	if err := ctx.Err(); err != nil {
		return Coordinate{}, err
	}

	if res.err != nil {
		switch {
		case errors.Is(res.err, ErrPermissionDenied):
			return Coordinate{}, &Error{Kind: KindPermissionDenied, Op: "acquire fix", Err: res.err}
		case errors.Is(res.err, context.DeadlineExceeded), errors.Is(res.err, ErrFixTimeout):
			r.logger.Error().
				Dur("timeout", opts.Timeout).
				Msg("location fix timed out")
			return Coordinate{}, &Error{Kind: KindTimeout, Op: "acquire fix", Err: ErrFixTimeout}
		default:
			r.logger.Error().Err(res.err).Msg("location provider failed")
			return Coordinate{}, &Error{Kind: KindProvider, Op: "acquire fix", Err: res.err}
		}
	}

	if !res.fix.Coordinate.Valid() {
		r.logger.Error().
			Float64("lat", res.fix.Latitude).
			Float64("lon", res.fix.Longitude).
			Msg("location provider returned invalid coordinates")
		return Coordinate{}, &Error{Kind: KindProvider, Op: "acquire fix", Err: ErrInvalidCoordinates}
	}

	fix := res.fix
	if fix.Timestamp.IsZero() {
		fix.Timestamp = r.now()
	}
	r.mu.Lock()
	r.lastFix = &fix
	r.mu.Unlock()

	return fix.Coordinate, nil
}

func (r *Resolver) recentFix(maxAge time.Duration) (Fix, bool) {
	if maxAge <= 0 {
		return Fix{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastFix == nil || r.now().Sub(r.lastFix.Timestamp) > maxAge {
		return Fix{}, false
	}
	return *r.lastFix, true
}

// ReverseGeocode resolves c into a geofenced address.
//
// Technical failures return the coordinate fallback address together with a
// KindGeocode error. Places outside the geofence return nil and a
// KindOutOfRegion error.
func (r *Resolver) ReverseGeocode(ctx context.Context, c Coordinate) (*ResolvedAddress, error) {
	if !c.Valid() {
		fallback := coordinateAddress(c)
		return &fallback, &Error{Kind: KindGeocode, Op: "reverse geocode", Err: ErrInvalidCoordinates}
	}

	place, err := r.lookup(ctx, c)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Error().
			Err(err).
			Str("provider", r.geocoder.Name()).
			Str("coordinate", c.String()).
			Msg("reverse geocoding failed")
		fallback := coordinateAddress(c)
		return &fallback, &Error{Kind: KindGeocode, Op: "reverse geocode", Err: err}
	}

	if place.IsEmpty() {
		fallback := coordinateAddress(c)
		return &fallback, nil
	}

	if err := r.geofence.Check(place); err != nil {
		r.logger.Debug().
			Str("city", place.Locality()).
			Str("state", place.Region()).
			Str("country", place.Country).
			Msg("location outside geofence")
		return nil, err
	}

	addr := ComposeAddressLine(place, c)
	return &addr, nil
}

func (r *Resolver) lookup(ctx context.Context, c Coordinate) (*Place, error) {
	key := GridKey(c, r.cacheGridSize)

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn().Err(err).Str("cache_key", key).Msg("geocode cache read failed")
		} else if cached != nil {
			r.logger.Debug().Str("cache_key", key).Msg("cache hit for reverse geocode")
			return cached, nil
		}
	}

	place, err := r.geocoder.ReverseGeocode(ctx, c)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && place != nil {
		if err := r.cache.Set(ctx, key, place); err != nil {
			r.logger.Warn().Err(err).Str("cache_key", key).Msg("geocode cache write failed")
		}
	}
	return place, nil
}

// Resolve runs permission, fix and reverse geocoding in order, stopping at the
// first failing stage.
func (r *Resolver) Resolve(ctx context.Context) Outcome {
	state := StateIdle
	advance := func(next State) {
		r.logger.Debug().Str("from", string(state)).Str("to", string(next)).Msg("location state")
		state = next
	}

	advance(StateRequestingPermission)
	if !r.RequestPermission(ctx) {
		if err := ctx.Err(); err != nil {
			advance(StateCancelled)
			return Outcome{State: state, Err: err}
		}
		advance(StateDenied)
		return Outcome{State: state, Err: &Error{Kind: KindPermissionDenied, Op: "request permission", Err: ErrPermissionDenied}}
	}
	advance(StateGranted)

	advance(StateAcquiringFix)
	coord, err := r.AcquireFix(ctx, r.fixOptions)
	if err != nil {
		var locErr *Error
		switch {
		case errors.As(err, &locErr) && locErr.Kind == KindPermissionDenied:
			advance(StateDenied)
		case errors.As(err, &locErr) && locErr.Kind == KindTimeout:
			advance(StateFixTimeout)
		case ctx.Err() != nil:
			advance(StateCancelled)
		default:
			advance(StateFixError)
		}
		return Outcome{State: state, Err: err}
	}
	advance(StateFixObtained)

	advance(StateReverseGeocoding)
	addr, err := r.ReverseGeocode(ctx, coord)
	if err != nil {
		var locErr *Error
		switch {
		case errors.As(err, &locErr) && locErr.Kind == KindOutOfRegion:
			advance(StateGeocodeOutOfRegion)
		case ctx.Err() != nil:
			advance(StateCancelled)
			return Outcome{State: state, Coordinate: coord, Err: err}
		default:
			advance(StateGeocodeError)
		}
		return Outcome{State: state, Coordinate: coord, Address: addr, Err: err}
	}
	advance(StateGeocodeResolved)

	return Outcome{State: state, Coordinate: coord, Address: addr}
}
