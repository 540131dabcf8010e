package handler

import (
	"net/http"

	"eventsms/internal/service"
)

// HealthReporter reports dependency status
type HealthReporter interface {
	CheckHealth() (*service.HealthStatus, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	healthService HealthReporter
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(healthService HealthReporter) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
	}
}

// HandleHealth handles GET requests to the /health endpoint
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthStatus, err := h.healthService.CheckHealth()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to perform health check")
		return
	}

	var status int
	switch healthStatus.Status {
	case service.StatusHealthy:
		status = http.StatusOK
	case service.StatusDegraded, service.StatusUnhealthy:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	WriteJSON(w, status, healthStatus)
}
