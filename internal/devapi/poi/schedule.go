package poi

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/baxperience/baxperience/internal/itinerary"
	"github.com/baxperience/baxperience/internal/trip"
	"github.com/baxperience/baxperience/pkg/polyline"
)

// Scheduling limits.
const (
	MinHours      = 1
	MaxHours      = 12
	TransferGap   = 15 * time.Minute
	MaxActivities = 8
)

const clock = "15:04"

// ErrNothingFits is returned when no place fits the time window.
var ErrNothingFits = errors.New("no activity fits the requested window")

// Schedule builds a proposed itinerary for req. Places in the preferred zone
// come first, then places matching the traveller's preferences, then the
// rest by distance from the origin. Activities run back to back from the
// start time with a transfer gap and never end after the window closes. The
// window is cut at 23:59 so a day's plan never runs past midnight.
func (c *Catalog) Schedule(req trip.GenerationRequest, preferences []string) (*itinerary.ProposedItinerary, error) {
	start, err := time.Parse(clock, req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("hora_inicio %q: %w", req.StartTime, err)
	}
	if req.DurationHours < MinHours || req.DurationHours > MaxHours {
		return nil, fmt.Errorf("duracion_horas %d outside %d-%d", req.DurationHours, MinHours, MaxHours)
	}
	end := start.Add(time.Duration(req.DurationHours) * time.Hour)
	if last := lastMinute(start); end.After(last) {
		end = last
	}

	var activities []itinerary.Activity
	cursor := start
	for _, p := range c.rank(req, preferences) {
		if len(activities) == MaxActivities {
			break
		}
		finish := cursor.Add(time.Duration(p.DurationMinutes) * time.Minute)
		if finish.After(end) {
			continue
		}
		activities = append(activities, activity(p, cursor, finish))
		cursor = finish.Add(TransferGap)
	}
	if len(activities) == 0 {
		return nil, ErrNothingFits
	}

	return &itinerary.ProposedItinerary{
		Name:          req.Name,
		VisitDate:     req.VisitDate,
		StartTime:     req.StartTime,
		DurationHours: req.DurationHours,
		Origin: itinerary.Origin{
			Latitude:  req.OriginLatitude,
			Longitude: req.OriginLongitude,
			Address:   req.OriginAddress,
		},
		PreferredZone: req.PreferredZone,
		Activities:    activities,
		PreferencesUsed: itinerary.PreferencesUsed{
			Categories: append([]string(nil), preferences...),
			Zone:       req.PreferredZone,
		},
	}, nil
}

func lastMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, t.Location())
}

func (c *Catalog) rank(req trip.GenerationRequest, preferences []string) []POI {
	origin := polyline.Coordinate{Lat: req.OriginLatitude, Lon: req.OriginLongitude}
	liked := make(map[string]bool, len(preferences))
	for _, p := range preferences {
		liked[p] = true
	}

	type scored struct {
		poi      POI
		inZone   bool
		liked    bool
		distance float64
	}
	ranked := make([]scored, 0, len(c.pois))
	for _, p := range c.pois {
		ranked = append(ranked, scored{
			poi:      p,
			inZone:   req.PreferredZone != "" && p.Zone == req.PreferredZone,
			liked:    liked[p.Category],
			distance: polyline.Distance(origin, p.coordinate()),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.inZone != b.inZone {
			return a.inZone
		}
		if a.liked != b.liked {
			return a.liked
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.poi.ID < b.poi.ID
	})

	out := make([]POI, len(ranked))
	for i, s := range ranked {
		out[i] = s.poi
	}
	return out
}

func activity(p POI, start, finish time.Time) itinerary.Activity {
	a := itinerary.Activity{
		ID:              itinerary.ID(fmt.Sprint(p.ID)),
		Name:            p.Name,
		Type:            p.Type,
		CategoryName:    p.CategoryName,
		StartTime:       start.Format(clock),
		EndTime:         finish.Format(clock),
		DurationMinutes: p.DurationMinutes,
		Neighborhood:    trip.ZoneLabel(p.Zone),
		Latitude:        p.Latitude,
		Longitude:       p.Longitude,
		Address:         p.Address,
		Description:     p.Description,
	}
	free, rating := p.Free, p.Rating
	a.Free = &free
	a.AverageRating = &rating
	if !p.Free {
		price := p.Price
		a.EstimatedPrice = &price
	}
	return a
}
