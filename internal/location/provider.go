package location

import (
	"context"
	"time"
)

// DeviceProvider is the platform geolocation collaborator.
type DeviceProvider interface {
	// RequestAuthorization asks the user for location access.
	RequestAuthorization(ctx context.Context) (bool, error)
	// CurrentPosition returns a fresh position. Implementations should return
	// ErrPermissionDenied when access is revoked while the request is in flight.
	CurrentPosition(ctx context.Context, opts FixOptions) (Fix, error)
}

// ReverseGeocoder turns a coordinate into a Place.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, c Coordinate) (*Place, error)
	Name() string
}

// StaticProvider is a DeviceProvider reporting a fixed position.
// It backs the CLI and tests where no platform location service exists.
type StaticProvider struct {
	Position Coordinate
	// Denied makes RequestAuthorization refuse access.
	Denied bool
	// Delay simulates fix latency.
	Delay time.Duration
	// Err is returned by CurrentPosition when set.
	Err error
}

// RequestAuthorization implements DeviceProvider.
func (s StaticProvider) RequestAuthorization(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return !s.Denied, nil
}

// CurrentPosition implements DeviceProvider.
func (s StaticProvider) CurrentPosition(ctx context.Context, _ FixOptions) (Fix, error) {
	if s.Denied {
		return Fix{}, ErrPermissionDenied
	}
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Fix{}, ctx.Err()
		case <-timer.C:
		}
	}
	if s.Err != nil {
		return Fix{}, s.Err
	}
	return Fix{Coordinate: s.Position, Timestamp: time.Now()}, nil
}
