// Package trip validates user-entered trip parameters and turns them into
// itinerary generation requests.
package trip

import (
	"time"

	"github.com/baxperience/baxperience/internal/location"
)

// BaseLocation is where the traveller starts each day.
type BaseLocation string

const (
	BaseHotel        BaseLocation = "hotel"
	BasePalermo      BaseLocation = "palermo"
	BaseRecoleta     BaseLocation = "recoleta"
	BaseSanTelmo     BaseLocation = "san_telmo"
	BasePuertoMadero BaseLocation = "puerto_madero"
	BaseMicrocentro  BaseLocation = "microcentro"
	BaseOther        BaseLocation = "other"
)

// baseCentroids are reference points for the neighbourhood base locations.
var baseCentroids = map[BaseLocation]location.Coordinate{
	BasePalermo:      {Latitude: -34.5875, Longitude: -58.4250},
	BaseRecoleta:     {Latitude: -34.5875, Longitude: -58.3974},
	BaseSanTelmo:     {Latitude: -34.6212, Longitude: -58.3731},
	BasePuertoMadero: {Latitude: -34.6118, Longitude: -58.3636},
	BaseMicrocentro:  {Latitude: -34.6037, Longitude: -58.3816},
}

// Valid reports whether b is a known base location.
func (b BaseLocation) Valid() bool {
	switch b {
	case BaseHotel, BasePalermo, BaseRecoleta, BaseSanTelmo, BasePuertoMadero, BaseMicrocentro, BaseOther:
		return true
	default:
		return false
	}
}

// RequiresAddress reports whether the user must type an explicit address.
func (b BaseLocation) RequiresAddress() bool {
	return b == BaseHotel || b == BaseOther
}

// Centroid returns a reference coordinate for neighbourhood base locations.
// Hotel and other have none.
func (b BaseLocation) Centroid() (location.Coordinate, bool) {
	c, ok := baseCentroids[b]
	return c, ok
}

// TransportMode is the preferred way of moving between activities.
type TransportMode string

const (
	TransportWalking TransportMode = "walking"
	TransportPublic  TransportMode = "public"
	TransportCar     TransportMode = "car"
	TransportBicycle TransportMode = "bicycle"
	TransportMixed   TransportMode = "mixed"
)

// Valid reports whether m is a known transport mode.
func (m TransportMode) Valid() bool {
	switch m {
	case TransportWalking, TransportPublic, TransportCar, TransportBicycle, TransportMixed:
		return true
	default:
		return false
	}
}

// Parameters are the trip fields entered by the user.
// A zero StartDate or EndDate means the date was not chosen.
type Parameters struct {
	TripName      string
	StartDate     time.Time
	EndDate       time.Time
	BaseLocation  BaseLocation
	BaseAddress   string
	TransportMode TransportMode
	// PreferredArea is a neighbourhood code, or "all"/"" for no preference.
	PreferredArea string
	// DurationHours is the raw form value; it must parse as an integer on single-day trips.
	DurationHours string
	// StartTime is HH:MM; empty uses the builder default.
	StartTime string
	// Preferences are catalog slugs (optional).
	Preferences []string
}

// IsSingleDay reports whether the trip starts and ends on the same calendar
// day. Each date is read in its own location. Absent dates yield false.
func IsSingleDay(p Parameters) bool {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return false
	}
	sy, sm, sd := p.StartDate.Date()
	ey, em, ed := p.EndDate.Date()
	return sy == ey && sm == em && sd == ed
}

// GenerationRequest is the body of the itinerary generation call.
type GenerationRequest struct {
	Name            string  `json:"name"`
	VisitDate       string  `json:"fecha_visita"`
	StartTime       string  `json:"hora_inicio"`
	DurationHours   int     `json:"duracion_horas"`
	OriginLatitude  float64 `json:"latitud_origen"`
	OriginLongitude float64 `json:"longitud_origen"`
	PreferredZone   string  `json:"zona_preferida,omitempty"`
	OriginAddress   string  `json:"ubicacion_direccion,omitempty"`
}

// Origin returns the request's origin coordinate.
func (r *GenerationRequest) Origin() location.Coordinate {
	return location.Coordinate{Latitude: r.OriginLatitude, Longitude: r.OriginLongitude}
}
