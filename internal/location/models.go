// Package location acquires the device position, reverse-geocodes it into a
// human-readable address and enforces the Buenos Aires (CABA) geofence.
package location

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for location operations.
var (
	// ErrPermissionDenied indicates the user refused location access.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrFixTimeout indicates no position was obtained within the fix timeout.
	ErrFixTimeout = errors.New("location fix timed out")
	// ErrProviderUnavailable indicates the device location provider failed.
	ErrProviderUnavailable = errors.New("location provider unavailable")
	// ErrOutOfRegion indicates the position resolved outside the accepted region.
	ErrOutOfRegion = errors.New("location outside Buenos Aires (CABA)")
	// ErrMalformedResponse indicates the geocoding provider returned an unusable body.
	ErrMalformedResponse = errors.New("malformed geocoding response")
	// ErrInvalidCoordinates indicates latitude or longitude are out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Coordinate is a WGS84 position.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String formats the coordinate as "lat, lon" with six decimals.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Latitude, c.Longitude)
}

// Valid reports whether the coordinate is within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Fix is a position reported by a device provider.
type Fix struct {
	Coordinate
	// AccuracyMeters is the reported horizontal accuracy (0 if unknown).
	AccuracyMeters float64
	// Timestamp is when the position was measured.
	Timestamp time.Time
}

// FixOptions controls a single position request.
type FixOptions struct {
	// Timeout bounds the whole acquisition. Default: 15 seconds.
	Timeout time.Duration
	// MaxAge is the oldest remembered fix that may be reused. Default: 10 seconds.
	MaxAge time.Duration
	// HighAccuracy asks the provider for GPS-grade positioning.
	HighAccuracy bool
}

// DefaultFixOptions returns the options used by the mobile client.
func DefaultFixOptions() FixOptions {
	return FixOptions{
		Timeout:      15 * time.Second,
		MaxAge:       10 * time.Second,
		HighAccuracy: true,
	}
}

func (o FixOptions) withDefaults(base FixOptions) FixOptions {
	if o.Timeout <= 0 {
		o.Timeout = base.Timeout
	}
	if o.MaxAge < 0 {
		o.MaxAge = 0
	}
	return o
}

// Place is a provider-neutral reverse-geocoding result.
type Place struct {
	DisplayName   string `json:"display_name,omitempty"`
	HouseNumber   string `json:"house_number,omitempty"`
	Road          string `json:"road,omitempty"`
	Neighbourhood string `json:"neighbourhood,omitempty"`
	Suburb        string `json:"suburb,omitempty"`
	City          string `json:"city,omitempty"`
	Town          string `json:"town,omitempty"`
	Village       string `json:"village,omitempty"`
	Municipality  string `json:"municipality,omitempty"`
	State         string `json:"state,omitempty"`
	Province      string `json:"province,omitempty"`
	Country       string `json:"country,omitempty"`
	CountryCode   string `json:"country_code,omitempty"`
}

// HasStructuredAddress reports whether any address component is present.
func (p *Place) HasStructuredAddress() bool {
	return firstNonEmpty(
		p.HouseNumber, p.Road, p.Neighbourhood, p.Suburb,
		p.City, p.Town, p.Village, p.Municipality,
		p.State, p.Province, p.Country, p.CountryCode,
	) != ""
}

// IsEmpty reports whether the place carries neither a display name nor address parts.
func (p *Place) IsEmpty() bool {
	return p == nil || (p.DisplayName == "" && !p.HasStructuredAddress())
}

// Locality returns the city-level name (city, town or municipality).
func (p *Place) Locality() string {
	return firstNonEmpty(p.City, p.Town, p.Municipality)
}

// Region returns the state-level name (state or province).
func (p *Place) Region() string {
	return firstNonEmpty(p.State, p.Province)
}

// AddressSource tells which part of the geocoding result produced an address line.
type AddressSource string

const (
	SourceStructured  AddressSource = "structured"
	SourceDisplayName AddressSource = "display_name"
	SourceCoordinates AddressSource = "coordinates"
)

// ResolvedAddress is a human-readable address derived from a coordinate.
type ResolvedAddress struct {
	AddressLine    string
	RawDisplayName string
	Source         AddressSource
}

// State is a step of a single location resolution.
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateDenied               State = "denied"
	StateGranted              State = "granted"
	StateAcquiringFix         State = "acquiring_fix"
	StateFixTimeout           State = "fix_timeout"
	StateFixError             State = "fix_error"
	StateFixObtained          State = "fix_obtained"
	StateReverseGeocoding     State = "reverse_geocoding"
	StateGeocodeError         State = "geocode_error"
	StateGeocodeOutOfRegion   State = "geocode_out_of_region"
	StateGeocodeResolved      State = "geocode_resolved"
	StateCancelled            State = "cancelled"
)

// Terminal reports whether no further transition follows this state.
func (s State) Terminal() bool {
	switch s {
	case StateDenied, StateFixTimeout, StateFixError,
		StateGeocodeError, StateGeocodeOutOfRegion, StateGeocodeResolved,
		StateCancelled:
		return true
	default:
		return false
	}
}

// Kind classifies location failures.
type Kind string

const (
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	KindTimeout          Kind = "TIMEOUT"
	KindProvider         Kind = "PROVIDER_ERROR"
	KindOutOfRegion      Kind = "OUT_OF_REGION"
	KindGeocode          Kind = "GEOCODE_ERROR"
)

// Error describes a failed location operation.
type Error struct {
	Kind Kind
	Op   string
	// Detected holds "city, state, country" for out-of-region rejections.
	Detected string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + string(e.Kind)
	if e.Detected != "" {
		msg += " (" + e.Detected + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTechnical reports whether the failure is a fault worth logging, as opposed
// to a permission refusal or a business-rule rejection.
func (e *Error) IsTechnical() bool {
	switch e.Kind {
	case KindTimeout, KindProvider, KindGeocode:
		return true
	default:
		return false
	}
}

// UserMessage returns the text shown to the user for this failure.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindPermissionDenied:
		return "Location permission is required to automatically fill your address."
	case KindTimeout:
		return "Getting your location took too long. Please try again or enter your address manually."
	case KindProvider:
		return "Could not get your current location. Please make sure location services are enabled."
	case KindOutOfRegion:
		return "Your current location is not in Buenos Aires City (CABA). " +
			"This feature is only available for users within CABA.\n\nPlease enter your address manually."
	case KindGeocode:
		return "Could not get address from your location. Please enter the address manually."
	default:
		return "An error occurred while getting your location."
	}
}

// ProviderError is a non-2xx answer from a geocoding provider.
type ProviderError struct {
	Provider   string
	StatusCode int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Provider, e.StatusCode)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
