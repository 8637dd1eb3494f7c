package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baxperience/baxperience/internal/devapi/middleware"
	"github.com/baxperience/baxperience/internal/devapi/poi"
	"github.com/baxperience/baxperience/internal/devapi/response"
	"github.com/baxperience/baxperience/internal/devapi/store"
	"github.com/baxperience/baxperience/internal/itinerary"
	"github.com/baxperience/baxperience/internal/trip"
)

// HeaderIdempotencyKey deduplicates confirmations.
const HeaderIdempotencyKey = "Idempotency-Key"

// ItineraryHandler generates, confirms and lists itineraries.
type ItineraryHandler struct {
	users   store.UserRepository
	trips   store.TripRepository
	catalog *poi.Catalog
	now     func() time.Time
	log     zerolog.Logger
}

// ItineraryConfig holds ItineraryHandler dependencies.
type ItineraryConfig struct {
	Users   store.UserRepository
	Trips   store.TripRepository
	Catalog *poi.Catalog
	Now     func() time.Time
	Logger  zerolog.Logger
}

// NewItineraryHandler creates an ItineraryHandler.
func NewItineraryHandler(cfg ItineraryConfig) *ItineraryHandler {
	if cfg.Catalog == nil {
		cfg.Catalog = poi.DefaultCatalog()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ItineraryHandler{
		users:   cfg.Users,
		trips:   cfg.Trips,
		catalog: cfg.Catalog,
		now:     cfg.Now,
		log:     cfg.Logger,
	}
}

// generateBody uses pointers to tell missing fields from zero values.
type generateBody struct {
	Name            *string  `json:"name"`
	VisitDate       *string  `json:"fecha_visita"`
	StartTime       *string  `json:"hora_inicio"`
	DurationHours   *int     `json:"duracion_horas"`
	OriginLatitude  *float64 `json:"latitud_origen"`
	OriginLongitude *float64 `json:"longitud_origen"`
	PreferredZone   string   `json:"zona_preferida"`
	OriginAddress   string   `json:"ubicacion_direccion"`
}

func (b generateBody) missing() []string {
	var fields []string
	if b.Name == nil || strings.TrimSpace(*b.Name) == "" {
		fields = append(fields, "name")
	}
	if b.VisitDate == nil || *b.VisitDate == "" {
		fields = append(fields, "fecha_visita")
	}
	if b.StartTime == nil || *b.StartTime == "" {
		fields = append(fields, "hora_inicio")
	}
	if b.DurationHours == nil {
		fields = append(fields, "duracion_horas")
	}
	if b.OriginLatitude == nil {
		fields = append(fields, "latitud_origen")
	}
	if b.OriginLongitude == nil {
		fields = append(fields, "longitud_origen")
	}
	return fields
}

type generateResponse struct {
	Message   string                       `json:"message"`
	RequestID string                       `json:"request_id"`
	Itinerary *itinerary.ProposedItinerary `json:"itinerario_propuesto"`
}

// Generate handles POST /api/itinerary/generate.
func (h *ItineraryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	started := h.now()

	var body generateBody
	if err := response.Decode(w, r, &body); err != nil {
		response.BadRequest(w, err.Error(), nil)
		return
	}
	if missing := body.missing(); len(missing) > 0 {
		response.BadRequest(w, "Missing required fields: "+strings.Join(missing, ", "), map[string][]string{"missing": missing})
		return
	}

	req := trip.GenerationRequest{
		Name:            strings.TrimSpace(*body.Name),
		VisitDate:       *body.VisitDate,
		StartTime:       *body.StartTime,
		DurationHours:   *body.DurationHours,
		OriginLatitude:  *body.OriginLatitude,
		OriginLongitude: *body.OriginLongitude,
		PreferredZone:   body.PreferredZone,
		OriginAddress:   body.OriginAddress,
	}
	if msg := validateGeneration(req); msg != "" {
		response.BadRequest(w, msg, nil)
		return
	}

	var prefs []string
	if user, err := h.users.UserByID(r.Context(), middleware.GetUserID(r.Context())); err == nil {
		prefs = user.Preferences
	} else if !errors.Is(err, store.ErrUserNotFound) {
		h.log.Error().Err(err).Msg("load preferences")
		response.InternalError(w)
		return
	}

	proposed, err := h.catalog.Schedule(req, prefs)
	if err != nil {
		if errors.Is(err, poi.ErrNothingFits) {
			response.Error(w, http.StatusUnprocessableEntity, "No activities fit the requested time window")
			return
		}
		response.BadRequest(w, err.Error(), nil)
		return
	}

	now := h.now()
	elapsed := now.Sub(started).Seconds()
	proposed.Metadata = itinerary.Metadata{
		ProcessingTimeSeconds: &elapsed,
		Timestamp:             now.UTC().Format(time.RFC3339),
	}

	requestID := uuid.NewString()
	h.log.Debug().
		Str("request_id", requestID).
		Int("activities", len(proposed.Activities)).
		Str("zone", req.PreferredZone).
		Msg("itinerary generated")

	response.JSON(w, http.StatusOK, generateResponse{
		Message:   "Itinerary generated successfully",
		RequestID: requestID,
		Itinerary: proposed,
	})
}

func validateGeneration(req trip.GenerationRequest) string {
	if req.DurationHours < poi.MinHours || req.DurationHours > poi.MaxHours {
		return fmt.Sprintf("duracion_horas must be between %d and %d", poi.MinHours, poi.MaxHours)
	}
	if _, err := time.Parse("2006-01-02", req.VisitDate); err != nil {
		return "fecha_visita must be YYYY-MM-DD"
	}
	if _, err := time.Parse("15:04", req.StartTime); err != nil {
		return "hora_inicio must be HH:MM"
	}
	if req.OriginLatitude < -90 || req.OriginLatitude > 90 || req.OriginLongitude < -180 || req.OriginLongitude > 180 {
		return "latitud_origen/longitud_origen out of range"
	}
	if req.PreferredZone != "" && !trip.IsKnownZone(req.PreferredZone) {
		return "Unknown zona_preferida: " + req.PreferredZone
	}
	return ""
}

type confirmResponse struct {
	Message     string      `json:"message"`
	ItineraryID json.Number `json:"itinerario_id"`
}

// Confirm handles POST /api/itinerary/confirm. A repeated Idempotency-Key
// from the same user is a conflict.
func (h *ItineraryHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req itinerary.ConfirmationRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, err.Error(), nil)
		return
	}

	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "nombre")
	}
	if req.VisitDate == "" {
		missing = append(missing, "fecha_visita")
	}
	if req.StartTime == "" {
		missing = append(missing, "hora_inicio")
	}
	if req.DurationHours <= 0 {
		missing = append(missing, "duracion_horas")
	}
	if len(req.Activities) == 0 {
		missing = append(missing, "actividades")
	}
	if len(missing) > 0 {
		response.BadRequest(w, "Missing required fields: "+strings.Join(missing, ", "), map[string][]string{"missing": missing})
		return
	}
	if req.TransportMode != "" && !req.TransportMode.Valid() {
		response.BadRequest(w, "Unknown modo_transporte_preferido: "+string(req.TransportMode), nil)
		return
	}

	t := &store.Trip{
		UserID:         middleware.GetUserID(r.Context()),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)),
		Itinerary:      req,
	}
	if err := h.trips.CreateTrip(r.Context(), t); err != nil {
		if errors.Is(err, store.ErrDuplicateTrip) {
			response.Conflict(w, "Itinerary already confirmed")
			return
		}
		h.log.Error().Err(err).Msg("store trip")
		response.InternalError(w)
		return
	}

	h.log.Info().Str("trip_id", t.ID).Str("user_id", t.UserID).Msg("itinerary confirmed")
	response.JSON(w, http.StatusCreated, confirmResponse{
		Message:     "Itinerary confirmed successfully",
		ItineraryID: json.Number(t.ID),
	})
}

type tripBody struct {
	ID json.Number `json:"id"`
	itinerary.ConfirmationRequest
	CreatedAt time.Time `json:"created_at"`
}

type listBody struct {
	Itineraries []tripBody `json:"itinerarios"`
	NextCursor  string     `json:"next_cursor,omitempty"`
}

func newTripBody(t *store.Trip) tripBody {
	return tripBody{
		ID:                  json.Number(t.ID),
		ConfirmationRequest: t.Itinerary,
		CreatedAt:           t.CreatedAt,
	}
}

// List handles GET /api/itinerary.
func (h *ItineraryHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{Cursor: r.URL.Query().Get("cursor")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			response.BadRequest(w, "limit must be a positive integer", nil)
			return
		}
		opts.Limit = limit
	}

	page, err := h.trips.ListTrips(r.Context(), middleware.GetUserID(r.Context()), opts)
	if err != nil {
		h.log.Error().Err(err).Msg("list trips")
		response.InternalError(w)
		return
	}

	body := listBody{Itineraries: make([]tripBody, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, t := range page.Items {
		body.Itineraries = append(body.Itineraries, newTripBody(t))
	}
	response.JSON(w, http.StatusOK, body)
}

// Get handles GET /api/itinerary/{id}.
func (h *ItineraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.trips.TripByUserAndID(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrTripNotFound):
		response.NotFound(w, "Itinerary not found")
		return
	case err != nil:
		h.log.Error().Err(err).Msg("get trip")
		response.InternalError(w)
		return
	}
	response.JSON(w, http.StatusOK, newTripBody(t))
}
