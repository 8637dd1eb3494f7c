package poi

import (
	"errors"
	"testing"
	"time"

	"github.com/baxperience/baxperience/internal/trip"
)

func request(zone string, hours int) trip.GenerationRequest {
	return trip.GenerationRequest{
		Name:            "Weekend",
		VisitDate:       "2025-03-10",
		StartTime:       "09:00",
		DurationHours:   hours,
		OriginLatitude:  -34.6037,
		OriginLongitude: -58.3816,
		PreferredZone:   zone,
		OriginAddress:   "Av. Corrientes 1234, San Nicolas",
	}
}

func TestSchedule_PrefersZoneAndStaysInWindow(t *testing.T) {
	it, err := DefaultCatalog().Schedule(request("recoleta", 4), nil)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(it.Activities) < 2 {
		t.Fatalf("got %d activities, want at least 2", len(it.Activities))
	}
	if it.Activities[0].Neighborhood != "Recoleta" {
		t.Fatalf("first activity in %q, want Recoleta", it.Activities[0].Neighborhood)
	}

	windowEnd, _ := time.Parse(clock, "13:00")
	prevEnd, _ := time.Parse(clock, "09:00")
	for i, a := range it.Activities {
		start, err := time.Parse(clock, a.StartTime)
		if err != nil {
			t.Fatalf("activity %d start %q: %v", i, a.StartTime, err)
		}
		end, _ := time.Parse(clock, a.EndTime)
		if start.Before(prevEnd) {
			t.Fatalf("activity %d starts %s before previous end %s", i, a.StartTime, prevEnd.Format(clock))
		}
		if end.After(windowEnd) {
			t.Fatalf("activity %d ends %s after window", i, a.EndTime)
		}
		if got := int(end.Sub(start).Minutes()); got != a.DurationMinutes {
			t.Fatalf("activity %d spans %d minutes, declares %d", i, got, a.DurationMinutes)
		}
		prevEnd = end
	}

	if it.Name != "Weekend" || it.VisitDate != "2025-03-10" || it.Origin.Address == "" {
		t.Fatalf("header not copied from request: %+v", it)
	}
	if it.PreferencesUsed.Zone != "recoleta" {
		t.Fatalf("PreferencesUsed.Zone = %q", it.PreferencesUsed.Zone)
	}
}

func TestSchedule_PreferencesBeforeDistance(t *testing.T) {
	it, err := DefaultCatalog().Schedule(request("", 2), []string{"gastronomia"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if it.Activities[0].CategoryName != "Gastronomía" {
		t.Fatalf("first activity category = %q, want Gastronomía", it.Activities[0].CategoryName)
	}
}

func TestSchedule_NoZoneStartsNearOrigin(t *testing.T) {
	it, err := DefaultCatalog().Schedule(request("", 1), nil)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	// The origin is the Obelisco itself.
	if it.Activities[0].Name != "Obelisco" {
		t.Fatalf("first activity = %q, want Obelisco", it.Activities[0].Name)
	}
}

func TestSchedule_PaidPlacesCarryPrice(t *testing.T) {
	it, err := NewCatalog(defaultPOIs[1:2]).Schedule(request("", 2), nil)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	a := it.Activities[0]
	if a.Free == nil || *a.Free || a.EstimatedPrice == nil || *a.EstimatedPrice != 14000 {
		t.Fatalf("paid activity = %+v", a)
	}
	if string(a.ID) != "2" {
		t.Fatalf("ID = %q, want 2", a.ID)
	}
}

func TestSchedule_WindowStopsAtMidnight(t *testing.T) {
	req := request("", 12)
	req.StartTime = "20:00"

	it, err := DefaultCatalog().Schedule(req, nil)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	for i, a := range it.Activities {
		if a.StartTime < "20:00" || a.EndTime > "23:59" || a.EndTime <= a.StartTime {
			t.Fatalf("activity %d runs %s-%s outside 20:00-23:59", i, a.StartTime, a.EndTime)
		}
	}

	late := request("", 2)
	late.StartTime = "23:30"
	if _, err := NewCatalog(defaultPOIs[:1]).Schedule(late, nil); !errors.Is(err, ErrNothingFits) {
		t.Fatalf("err = %v, want ErrNothingFits", err)
	}
}

func TestSchedule_Rejects(t *testing.T) {
	long := POI{ID: 99, Name: "Long", Category: "museos", DurationMinutes: 120}

	tests := []struct {
		name    string
		catalog *Catalog
		req     trip.GenerationRequest
		want    error
	}{
		{"zero hours", DefaultCatalog(), request("", 0), nil},
		{"too many hours", DefaultCatalog(), request("", 13), nil},
		{"bad start", DefaultCatalog(), func() trip.GenerationRequest { r := request("", 2); r.StartTime = "9am"; return r }(), nil},
		{"nothing fits", NewCatalog([]POI{long}), request("", 1), ErrNothingFits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.catalog.Schedule(tt.req, nil)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
