package itinerary

import (
	"time"

	"github.com/baxperience/baxperience/pkg/polyline"
)

// Category returns tipo, falling back to categoria.
func (a Activity) Category() string {
	return firstNonEmpty(a.Type, a.CategoryName)
}

// HasLocation reports whether the activity carries coordinates.
func (a Activity) HasLocation() bool {
	return a.Latitude != 0 || a.Longitude != 0
}

// Duration returns duracion_minutos, else the span between hora_inicio and
// hora_fin, else DefaultActivityDuration minutes.
func (a Activity) Duration() time.Duration {
	if a.DurationMinutes > 0 {
		return time.Duration(a.DurationMinutes) * time.Minute
	}
	start, err1 := time.Parse("15:04", a.StartTime)
	end, err2 := time.Parse("15:04", a.EndTime)
	if err1 == nil && err2 == nil && end.After(start) {
		return end.Sub(start)
	}
	return DefaultActivityDuration * time.Minute
}

// Label returns the origin address or DefaultOriginLabel.
func (o Origin) Label() string {
	return firstNonEmpty(o.Address, DefaultOriginLabel)
}

// Path returns the origin followed by every located activity, in order.
func (p ProposedItinerary) Path() []polyline.Coordinate {
	path := make([]polyline.Coordinate, 0, len(p.Activities)+1)
	if p.Origin.Latitude != 0 || p.Origin.Longitude != 0 {
		path = append(path, polyline.Coordinate{Lat: p.Origin.Latitude, Lon: p.Origin.Longitude})
	}
	for _, a := range p.Activities {
		if a.HasLocation() {
			path = append(path, polyline.Coordinate{Lat: a.Latitude, Lon: a.Longitude})
		}
	}
	return path
}

// Summary is the overview shown above an itinerary.
type Summary struct {
	Activities     int
	Neighborhoods  int
	Polyline       string
	DistanceMeters float64
	Total          time.Duration
}

// Summary computes the itinerary overview.
func (p ProposedItinerary) Summary() Summary {
	path := p.Path()

	barrios := make(map[string]struct{})
	var total time.Duration
	for _, a := range p.Activities {
		if a.Neighborhood != "" {
			barrios[a.Neighborhood] = struct{}{}
		}
		total += a.Duration()
	}

	return Summary{
		Activities:     len(p.Activities),
		Neighborhoods:  len(barrios),
		Polyline:       polyline.Encode(path),
		DistanceMeters: polyline.Length(path),
		Total:          total,
	}
}
