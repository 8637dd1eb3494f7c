package location

import "strings"

// ComposeAddressLine builds the address shown to the user.
//
// Preference order: "{house_number} {road}" or "{road}", then the neighbourhood
// or suburb, then the city, town or village, joined by ", ". Without structured
// parts the provider display name is used, and without that the coordinate.
func ComposeAddressLine(p *Place, c Coordinate) ResolvedAddress {
	if p.IsEmpty() {
		return coordinateAddress(c)
	}

	var parts []string
	switch {
	case p.HouseNumber != "" && p.Road != "":
		parts = append(parts, p.HouseNumber+" "+p.Road)
	case p.Road != "":
		parts = append(parts, p.Road)
	}
	if area := firstNonEmpty(p.Neighbourhood, p.Suburb); area != "" {
		parts = append(parts, area)
	}
	if city := firstNonEmpty(p.City, p.Town, p.Village); city != "" {
		parts = append(parts, city)
	}

	if len(parts) > 0 {
		return ResolvedAddress{
			AddressLine:    strings.Join(parts, ", "),
			RawDisplayName: p.DisplayName,
			Source:         SourceStructured,
		}
	}
	if p.DisplayName != "" {
		return ResolvedAddress{
			AddressLine:    p.DisplayName,
			RawDisplayName: p.DisplayName,
			Source:         SourceDisplayName,
		}
	}
	return coordinateAddress(c)
}

func coordinateAddress(c Coordinate) ResolvedAddress {
	return ResolvedAddress{
		AddressLine: c.String(),
		Source:      SourceCoordinates,
	}
}
