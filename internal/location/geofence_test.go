package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCABAGeofence_Contains(t *testing.T) {
	tests := []struct {
		name  string
		place *Place
		want  bool
	}{
		{
			name:  "country code and city",
			place: &Place{CountryCode: "ar", City: "Ciudad Autónoma de Buenos Aires"},
			want:  true,
		},
		{
			name:  "emulator default location",
			place: &Place{CountryCode: "us", City: "Mountain View", State: "California", Country: "United States"},
			want:  false,
		},
		{
			name:  "country name with state",
			place: &Place{Country: "Argentina", State: "Ciudad Autónoma de Buenos Aires"},
			want:  true,
		},
		{
			name:  "accents and case ignored",
			place: &Place{Country: "ARGENTINA", City: "CIUDAD AUTONOMA DE BUENOS AIRES"},
			want:  true,
		},
		{
			name:  "town used when city absent",
			place: &Place{CountryCode: "AR", Town: "CABA"},
			want:  true,
		},
		{
			name:  "province used when state absent",
			place: &Place{CountryCode: "ar", Province: "Buenos Aires"},
			want:  true,
		},
		{
			name:  "region only in display name",
			place: &Place{CountryCode: "ar", City: "Comuna 1", DisplayName: "Obelisco, San Nicolás, Buenos Aires, Argentina"},
			want:  true,
		},
		{
			name:  "argentina outside region",
			place: &Place{Country: "Argentina", CountryCode: "ar", City: "Córdoba", State: "Córdoba"},
			want:  false,
		},
		{
			name:  "region name in another country",
			place: &Place{Country: "Uruguay", CountryCode: "uy", City: "Buenos Aires"},
			want:  false,
		},
		{
			name:  "display name only",
			place: &Place{DisplayName: "Obelisco, Avenida 9 de Julio, San Nicolás, Ciudad Autónoma de Buenos Aires, Argentina"},
			want:  true,
		},
		{
			name:  "display name only without country",
			place: &Place{DisplayName: "Buenos Aires"},
			want:  false,
		},
		{
			name:  "nil place",
			place: nil,
			want:  false,
		},
	}

	fence := CABAGeofence()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fence.Contains(tt.place))
		})
	}
}

func TestGeofence_CheckReportsDetectedPlace(t *testing.T) {
	err := CABAGeofence().Check(&Place{
		CountryCode: "us",
		Country:     "United States",
		City:        "Mountain View",
		State:       "California",
	})

	var locErr *Error
	if assert.ErrorAs(t, err, &locErr) {
		assert.Equal(t, KindOutOfRegion, locErr.Kind)
		assert.Equal(t, "Mountain View, California, United States", locErr.Detected)
		assert.False(t, locErr.IsTechnical())
	}
	assert.ErrorIs(t, err, ErrOutOfRegion)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "ciudad autonoma de buenos aires", fold("  Ciudad Autónoma de Buenos Aires "))
	assert.Equal(t, "", fold(""))
}

func TestComposeAddressLine(t *testing.T) {
	coord := Coordinate{Latitude: -34.603722, Longitude: -58.381592}

	tests := []struct {
		name       string
		place      *Place
		wantLine   string
		wantSource AddressSource
	}{
		{
			name: "full structured address",
			place: &Place{
				HouseNumber:   "1234",
				Road:          "Avenida Corrientes",
				Neighbourhood: "San Nicolás",
				City:          "Buenos Aires",
			},
			wantLine:   "1234 Avenida Corrientes, San Nicolás, Buenos Aires",
			wantSource: SourceStructured,
		},
		{
			name:       "road without number uses suburb and town",
			place:      &Place{Road: "Defensa", Suburb: "San Telmo", Town: "CABA"},
			wantLine:   "Defensa, San Telmo, CABA",
			wantSource: SourceStructured,
		},
		{
			name:       "house number alone is dropped",
			place:      &Place{HouseNumber: "10", Village: "Palermo"},
			wantLine:   "Palermo",
			wantSource: SourceStructured,
		},
		{
			name:       "only display name",
			place:      &Place{DisplayName: "Obelisco, Buenos Aires, Argentina"},
			wantLine:   "Obelisco, Buenos Aires, Argentina",
			wantSource: SourceDisplayName,
		},
		{
			name:       "country parts only fall back to display name",
			place:      &Place{DisplayName: "Argentina", Country: "Argentina", CountryCode: "ar"},
			wantLine:   "Argentina",
			wantSource: SourceDisplayName,
		},
		{
			name:       "nothing usable",
			place:      &Place{},
			wantLine:   "-34.603722, -58.381592",
			wantSource: SourceCoordinates,
		},
		{
			name:       "nil place",
			place:      nil,
			wantLine:   "-34.603722, -58.381592",
			wantSource: SourceCoordinates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComposeAddressLine(tt.place, coord)
			assert.Equal(t, tt.wantLine, got.AddressLine)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestError_UserMessagesDistinct(t *testing.T) {
	kinds := []Kind{KindPermissionDenied, KindTimeout, KindProvider, KindOutOfRegion, KindGeocode}
	seen := make(map[string]Kind)
	for _, k := range kinds {
		msg := (&Error{Kind: k}).UserMessage()
		if prev, ok := seen[msg]; ok {
			t.Fatalf("kinds %s and %s share message %q", prev, k, msg)
		}
		seen[msg] = k
	}
	assert.Contains(t, (&Error{Kind: KindOutOfRegion}).UserMessage(), "CABA")
}
