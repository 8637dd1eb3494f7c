package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/baxperience/baxperience/internal/devapi/response"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler serves the health check.
type OpsHandler struct {
	version string
	store   Pinger
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(version string, store Pinger) *OpsHandler {
	return &OpsHandler{version: version, store: store}
}

type healthBody struct {
	Status  string    `json:"status"`
	Time    time.Time `json:"time"`
	Version string    `json:"version,omitempty"`
	Store   string    `json:"store"`
}

// Health handles GET /api/health.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := healthBody{Status: "ok", Time: time.Now().UTC(), Version: h.version, Store: "ok"}
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		body.Status, body.Store = "degraded", "unavailable"
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, body)
}
