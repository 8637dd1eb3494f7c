package location

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Geofence accepts places whose country and city/state match configured terms.
// Matching is case- and accent-insensitive substring matching.
type Geofence struct {
	// Name identifies the region in logs.
	Name string
	// CountryNames are substrings accepted in the country name.
	CountryNames []string
	// CountryCodes are accepted ISO 3166-1 alpha-2 codes.
	CountryCodes []string
	// RegionTerms are substrings accepted in the city, state or display name.
	RegionTerms []string
}

// CABAGeofence returns the Ciudad Autónoma de Buenos Aires geofence.
func CABAGeofence() Geofence {
	return Geofence{
		Name:         "CABA",
		CountryNames: []string{"argentina", "arg"},
		CountryCodes: []string{"ar"},
		RegionTerms:  []string{"buenos aires", "ciudad autónoma", "caba"},
	}
}

// Contains reports whether the place lies inside the geofence.
func (g Geofence) Contains(p *Place) bool {
	if p == nil {
		return false
	}
	return g.inCountry(p) && g.inRegion(p)
}

// Check returns an OutOfRegion error when the place lies outside the geofence.
func (g Geofence) Check(p *Place) error {
	if g.Contains(p) {
		return nil
	}
	var detected string
	if p != nil {
		detected = p.Locality() + ", " + p.Region() + ", " + p.Country
	}
	return &Error{
		Kind:     KindOutOfRegion,
		Op:       "geofence " + g.Name,
		Detected: detected,
		Err:      ErrOutOfRegion,
	}
}

func (g Geofence) inCountry(p *Place) bool {
	country := fold(p.Country)
	code := fold(p.CountryCode)

	// Without any country field the display name is the only evidence.
	if country == "" && code == "" {
		display := fold(p.DisplayName)
		for _, name := range g.CountryNames {
			if len(name) > 3 && strings.Contains(display, fold(name)) {
				return true
			}
		}
		return false
	}

	for _, name := range g.CountryNames {
		if country != "" && strings.Contains(country, fold(name)) {
			return true
		}
	}
	for _, c := range g.CountryCodes {
		if code == fold(c) {
			return true
		}
	}
	return false
}

func (g Geofence) inRegion(p *Place) bool {
	fields := []string{fold(p.Locality()), fold(p.Region()), fold(p.DisplayName)}
	for _, term := range g.RegionTerms {
		t := fold(term)
		for _, f := range fields {
			if f != "" && strings.Contains(f, t) {
				return true
			}
		}
	}
	return false
}

// fold lowercases s and strips diacritics so "Autónoma" matches "autonoma".
func fold(s string) string {
	if s == "" {
		return ""
	}
	// Chained transformers keep state; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
