// Package itinerary talks to the itinerary endpoints of the BAXperience backend:
// generating a proposed itinerary and confirming it as a saved trip.
package itinerary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/baxperience/baxperience/internal/trip"
)

// DefaultActivityDuration is shown when an activity carries no duration.
const DefaultActivityDuration = 120

// DefaultOriginLabel is shown when the origin has no address.
const DefaultOriginLabel = "Buenos Aires, CABA"

// ID is a backend identifier that may arrive as a JSON number or string.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("itinerary: id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes integer-looking IDs back as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Activity is one scheduled stop of a proposed itinerary.
type Activity struct {
	ID              ID       `json:"id"`
	Name            string   `json:"nombre"`
	Type            string   `json:"tipo,omitempty"`
	CategoryName    string   `json:"categoria,omitempty"`
	Subcategory     string   `json:"subcategoria,omitempty"`
	StartTime       string   `json:"hora_inicio,omitempty"`
	EndTime         string   `json:"hora_fin,omitempty"`
	DurationMinutes int      `json:"duracion_minutos,omitempty"`
	Neighborhood    string   `json:"barrio,omitempty"`
	Latitude        float64  `json:"latitud,omitempty"`
	Longitude       float64  `json:"longitud,omitempty"`
	Free            *bool    `json:"es_gratuito,omitempty"`
	AverageRating   *float64 `json:"valoracion_promedio,omitempty"`
	Address         string   `json:"direccion,omitempty"`
	Description     string   `json:"descripcion,omitempty"`
	EstimatedPrice  *float64 `json:"precio_estimado,omitempty"`
}

// Origin is where the itinerary starts.
type Origin struct {
	Latitude  float64 `json:"latitud"`
	Longitude float64 `json:"longitud"`
	Address   string  `json:"direccion,omitempty"`
}

// PreferencesUsed echoes what the generator took into account.
type PreferencesUsed struct {
	Categories []string `json:"categorias,omitempty"`
	Zone       string   `json:"zona,omitempty"`
}

// Metadata describes the generation run.
type Metadata struct {
	ProcessingTimeSeconds *float64 `json:"processing_time_seconds,omitempty"`
	Timestamp             string   `json:"timestamp,omitempty"`
}

// ProposedItinerary is a generated draft that has not been saved.
type ProposedItinerary struct {
	Name            string          `json:"nombre"`
	VisitDate       string          `json:"fecha_visita"`
	StartTime       string          `json:"hora_inicio"`
	DurationHours   int             `json:"duracion_horas"`
	Origin          Origin          `json:"ubicacion_origen"`
	PreferredZone   string          `json:"zona_preferida,omitempty"`
	Activities      []Activity      `json:"actividades"`
	PreferencesUsed PreferencesUsed `json:"preferencias_usadas"`
	Metadata        Metadata        `json:"metadata"`
}

// GenerationResponse is the body returned by the generate endpoint.
type GenerationResponse struct {
	Message   string             `json:"message"`
	RequestID string             `json:"request_id"`
	Itinerary *ProposedItinerary `json:"itinerario_propuesto"`
}

// GenerationResult is a successful generation.
type GenerationResult struct {
	Message   string
	RequestID string
	Itinerary ProposedItinerary
}

// TripMeta carries the trip details sent along with a confirmation.
// Empty fields default to the proposed itinerary's values.
type TripMeta struct {
	Name          string
	Description   string
	VisitDate     string
	StartTime     string
	DurationHours int
	Origin        *Origin
	PreferredZone string
	TransportMode trip.TransportMode
	// RequestID is forwarded as the Idempotency-Key header.
	RequestID string
}

// ConfirmationRequest is the body sent to the confirm endpoint.
type ConfirmationRequest struct {
	Name          string             `json:"nombre"`
	Description   string             `json:"descripcion"`
	VisitDate     string             `json:"fecha_visita"`
	StartTime     string             `json:"hora_inicio"`
	DurationHours int                `json:"duracion_horas"`
	Origin        Origin             `json:"ubicacion_origen"`
	PreferredZone string             `json:"zona_preferida,omitempty"`
	TransportMode trip.TransportMode `json:"modo_transporte_preferido"`
	Activities    []Activity         `json:"actividades"`
}

// ConfirmedItinerary is a saved trip.
type ConfirmedItinerary struct {
	ID      ID
	Message string
}

// confirmResponse accepts the id under any of the names the backend uses.
type confirmResponse struct {
	Message     string `json:"message"`
	ItineraryID ID     `json:"itinerario_id"`
	ID          ID     `json:"id"`
	Itinerary   *struct {
		ID ID `json:"id"`
	} `json:"itinerario"`
}

func (r *confirmResponse) id() ID {
	switch {
	case r.ItineraryID != "":
		return r.ItineraryID
	case r.ID != "":
		return r.ID
	case r.Itinerary != nil:
		return r.Itinerary.ID
	}
	return ""
}
