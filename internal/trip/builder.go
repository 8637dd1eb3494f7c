package trip

import (
	"strings"

	"github.com/baxperience/baxperience/internal/location"
)

// BuilderConfig holds configuration for the request Builder.
type BuilderConfig struct {
	// DefaultStartTime is used when Parameters.StartTime is empty (default: "09:00").
	DefaultStartTime string

	// MaxRequestHours is the largest duracion_horas the backend accepts (default: 12).
	MaxRequestHours int

	// MultiDayHours is the duration requested for multi-day trips, which are
	// generated for their first day only (default: 8).
	MultiDayHours int
}

// Builder turns validated Parameters into GenerationRequests.
type Builder struct {
	defaultStartTime string
	maxRequestHours  int
	multiDayHours    int
}

// NewBuilder creates a new request builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	startTime, ok := normalizeClock(cfg.DefaultStartTime)
	if !ok {
		startTime = "09:00"
	}

	maxHours := cfg.MaxRequestHours
	if maxHours <= 0 {
		maxHours = 12
	}
	if maxHours > MaxDurationHours {
		maxHours = MaxDurationHours
	}

	multiDay := cfg.MultiDayHours
	if multiDay <= 0 {
		multiDay = 8
	}

	return &Builder{
		defaultStartTime: startTime,
		maxRequestHours:  maxHours,
		multiDayHours:    multiDay,
	}
}

// MaxRequestHours returns the duration cap applied to requests.
func (b *Builder) MaxRequestHours() int {
	return b.maxRequestHours
}

// Build validates p and derives the generation request.
//
// originAddress takes precedence over p.BaseAddress for ubicacion_direccion.
func (b *Builder) Build(p Parameters, origin location.Coordinate, originAddress string) (*GenerationRequest, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	startTime := b.defaultStartTime
	if p.StartTime != "" {
		startTime, _ = normalizeClock(p.StartTime)
	}

	hours := b.multiDayHours
	if IsSingleDay(p) {
		hours, _ = parseDuration(p.DurationHours)
	}
	if hours > b.maxRequestHours {
		hours = b.maxRequestHours
	}

	req := &GenerationRequest{
		Name:            strings.TrimSpace(p.TripName),
		VisitDate:       p.StartDate.Format("2006-01-02"),
		StartTime:       startTime,
		DurationHours:   hours,
		OriginLatitude:  origin.Latitude,
		OriginLongitude: origin.Longitude,
	}

	if p.PreferredArea != "" && p.PreferredArea != NoZonePreference {
		req.PreferredZone = p.PreferredArea
	}

	req.OriginAddress = strings.TrimSpace(originAddress)
	if req.OriginAddress == "" {
		req.OriginAddress = strings.TrimSpace(p.BaseAddress)
	}

	return req, nil
}
