package trip

import "sort"

// NoZonePreference is the sentinel for "anywhere in CABA".
const NoZonePreference = "all"

// Zone is a CABA neighbourhood the itinerary can focus on.
type Zone struct {
	Code  string
	Label string
}

var zones = []Zone{
	{"agronomia", "Agronomia"},
	{"almagro", "Almagro"},
	{"balvanera", "Balvanera"},
	{"barracas", "Barracas"},
	{"belgrano", "Belgrano"},
	{"boedo", "Boedo"},
	{"caballito", "Caballito"},
	{"chacarita", "Chacarita"},
	{"coghlan", "Coghlan"},
	{"colegiales", "Colegiales"},
	{"constitucion", "Constitucion"},
	{"flores", "Flores"},
	{"floresta", "Floresta"},
	{"la_boca", "La Boca"},
	{"liniers", "Liniers"},
	{"mataderos", "Mataderos"},
	{"monte_castro", "Monte Castro"},
	{"monserrat", "Monserrat"},
	{"nueva_pompeya", "Nueva Pompeya"},
	{"nunez", "Nuñez"},
	{"palermo", "Palermo"},
	{"parque_avellaneda", "Parque Avellaneda"},
	{"parque_chacabuco", "Parque Chacabuco"},
	{"parque_chas", "Parque Chas"},
	{"parque_patricios", "Parque Patricios"},
	{"paternal", "Paternal"},
	{"puerto_madero", "Puerto Madero"},
	{"recoleta", "Recoleta"},
	{"retiro", "Retiro"},
	{"saavedra", "Saavedra"},
	{"san_cristobal", "San Cristobal"},
	{"san_nicolas", "San Nicolas"},
	{"san_telmo", "San Telmo"},
	{"versalles", "Versalles"},
	{"villa_crespo", "Villa Crespo"},
	{"villa_del_parque", "Villa Del Parque"},
	{"villa_devoto", "Villa Devoto"},
	{"villa_lugano", "Villa Lugano"},
	{"villa_luro", "Villa Luro"},
	{"villa_ortuzar", "Villa Ortuzar"},
	{"villa_pueyrredon", "Villa Pueyrredon"},
	{"villa_riachuelo", "Villa Riachuelo"},
	{"villa_santa_rita", "Villa Santa Rita"},
	{"villa_soldati", "Villa Soldati"},
	{"villa_urquiza", "Villa Urquiza"},
}

var zoneIndex = func() map[string]Zone {
	m := make(map[string]Zone, len(zones))
	for _, z := range zones {
		m[z.Code] = z
	}
	return m
}()

// Zones returns the neighbourhood catalog in display order.
func Zones() []Zone {
	out := make([]Zone, len(zones))
	copy(out, zones)
	return out
}

// IsKnownZone reports whether code is a catalog neighbourhood.
func IsKnownZone(code string) bool {
	_, ok := zoneIndex[code]
	return ok
}

// ZoneLabel returns the display name for code, or code itself if unknown.
func ZoneLabel(code string) string {
	if z, ok := zoneIndex[code]; ok {
		return z.Label
	}
	return code
}

// Preference is a category of places the traveller is interested in.
// Slugs are the only identifier scheme; numeric IDs are not accepted.
type Preference struct {
	Slug  string
	Label string
}

var preferences = []Preference{
	{"museos", "Museums"},
	{"gastronomia", "Gastronomy"},
	{"monumentos", "Monuments"},
	{"lugares_historicos", "Historical Places"},
	{"entretenimiento", "Entertainment"},
	{"eventos", "Events"},
}

// Preferences returns the preference catalog ordered by slug.
func Preferences() []Preference {
	out := make([]Preference, len(preferences))
	copy(out, preferences)
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// IsKnownPreference reports whether slug is in the preference catalog.
func IsKnownPreference(slug string) bool {
	for _, p := range preferences {
		if p.Slug == slug {
			return true
		}
	}
	return false
}
