package itinerary

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxperience/baxperience/pkg/polyline"
)

func TestID_JSON(t *testing.T) {
	var a struct {
		ID ID `json:"id"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"id": 42}`), &a))
	assert.Equal(t, ID("42"), a.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id": "poi-9"}`), &a))
	assert.Equal(t, ID("poi-9"), a.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id": null}`), &a))
	assert.Equal(t, ID(""), a.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"id": true}`), &a))

	b, err := json.Marshal(ID("42"))
	require.NoError(t, err)
	assert.Equal(t, `42`, string(b))

	b, err = json.Marshal(ID("poi-9"))
	require.NoError(t, err)
	assert.Equal(t, `"poi-9"`, string(b))
}

func TestActivity_Category(t *testing.T) {
	assert.Equal(t, "museo", Activity{Type: "museo", CategoryName: "cultura"}.Category())
	assert.Equal(t, "cultura", Activity{CategoryName: "cultura"}.Category())
	assert.Empty(t, Activity{}.Category())
}

func TestActivity_Duration(t *testing.T) {
	tests := []struct {
		name string
		a    Activity
		want time.Duration
	}{
		{"explicit minutes", Activity{DurationMinutes: 45, StartTime: "10:00", EndTime: "12:00"}, 45 * time.Minute},
		{"time window", Activity{StartTime: "10:00", EndTime: "11:30"}, 90 * time.Minute},
		{"inverted window", Activity{StartTime: "12:00", EndTime: "11:00"}, 120 * time.Minute},
		{"malformed window", Activity{StartTime: "10am", EndTime: "11:00"}, 120 * time.Minute},
		{"nothing", Activity{}, 120 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Duration())
		})
	}
}

func TestOrigin_Label(t *testing.T) {
	assert.Equal(t, "Av. Alvear 1891", Origin{Address: "Av. Alvear 1891"}.Label())
	assert.Equal(t, "Buenos Aires, CABA", Origin{Latitude: -34.6}.Label())
}

func TestProposedItinerary_Summary(t *testing.T) {
	p := ProposedItinerary{
		Origin: Origin{Latitude: -34.6037, Longitude: -58.3816},
		Activities: []Activity{
			{Name: "Bellas Artes", Neighborhood: "Recoleta", Latitude: -34.5843, Longitude: -58.3926, DurationMinutes: 90},
			{Name: "Sin ubicación", Neighborhood: "Recoleta"},
			{Name: "Tortoni", Neighborhood: "Monserrat", Latitude: -34.6087, Longitude: -58.3786, DurationMinutes: 60},
		},
	}

	path := p.Path()
	require.Len(t, path, 3)
	assert.Equal(t, polyline.Coordinate{Lat: -34.6037, Lon: -58.3816}, path[0])
	assert.Equal(t, polyline.Coordinate{Lat: -34.6087, Lon: -58.3786}, path[2])

	s := p.Summary()
	assert.Equal(t, 3, s.Activities)
	assert.Equal(t, 2, s.Neighborhoods)
	assert.Equal(t, polyline.Encode(path), s.Polyline)
	assert.InDelta(t, polyline.Length(path), s.DistanceMeters, 1e-9)
	assert.Equal(t, (90+120+60)*time.Minute, s.Total)

	decoded, err := polyline.Decode(s.Polyline)
	require.NoError(t, err)
	assert.Len(t, decoded, 3)
}

func TestProposedItinerary_EmptySummary(t *testing.T) {
	s := ProposedItinerary{}.Summary()
	assert.Zero(t, s.Activities)
	assert.Empty(t, s.Polyline)
	assert.Zero(t, s.DistanceMeters)
}
