package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventsms/internal/middleware"
)

// Handlers groups everything the API router serves
type Handlers struct {
	Commands *CommandHandler
	SMS      *SMSHandler
	Status   *StatusHandler
	Events   *EventHandler
	Health   *HealthHandler
}

// NewRouter wires the API routes and middleware
func NewRouter(h Handlers) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.RequestID, middleware.Metrics)

	router.HandleFunc("/health", h.Health.HandleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/commands", h.Commands.Submit).Methods(http.MethodPost)

	if h.SMS != nil {
		api.HandleFunc("/sms/inbound", h.SMS.Inbound).Methods(http.MethodPost)
	}
	if h.Status != nil {
		api.HandleFunc("/sms/status", h.Status.Callback).Methods(http.MethodPost)
	}

	events := api.PathPrefix("/events/{code}").Subrouter()
	events.HandleFunc("", h.Events.GetByCode).Methods(http.MethodGet)
	events.HandleFunc("/stats", h.Events.Stats).Methods(http.MethodGet)
	events.HandleFunc("/messages", h.Events.Messages).Methods(http.MethodGet)
	events.HandleFunc("/messages/upcoming", h.Events.Upcoming).Methods(http.MethodGet)
	events.HandleFunc("/messages/failed", h.Events.Failed).Methods(http.MethodGet)
	events.HandleFunc("/commands", h.Events.Commands).Methods(http.MethodGet)

	return router
}
