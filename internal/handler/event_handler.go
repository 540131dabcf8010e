package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"eventsms/internal/models"
	"eventsms/internal/service"
)

// EventHandler serves the admin UI's read endpoints
type EventHandler struct {
	eventService *service.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// MessageListResponse is one page of message history
type MessageListResponse struct {
	Data       []*models.ScheduledMessage `json:"data"`
	Pagination *service.PaginationInfo    `json:"pagination"`
}

// CommandListResponse is one page of the audit log
type CommandListResponse struct {
	Data       []*models.SMSCommand    `json:"data"`
	Pagination *service.PaginationInfo `json:"pagination"`
}

// GetByCode handles GET /api/events/{code}
func (h *EventHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	detail, err := h.eventService.GetDetail(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteOK(w, detail)
}

// Stats handles GET /api/events/{code}/stats
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.eventService.GetStats(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteOK(w, stats)
}

// Messages handles GET /api/events/{code}/messages
func (h *EventHandler) Messages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, perPage := pagination(r)

	messages, info, err := h.eventService.ListMessages(r.Context(), mux.Vars(r)["code"], query.Get("status"), page, perPage)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	if messages == nil {
		messages = []*models.ScheduledMessage{}
	}
	WriteOK(w, MessageListResponse{Data: messages, Pagination: info})
}

// Upcoming handles GET /api/events/{code}/messages/upcoming
func (h *EventHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	messages, err := h.eventService.Upcoming(r.Context(), mux.Vars(r)["code"], queryInt(r, "limit", 20))
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	if messages == nil {
		messages = []*models.ScheduledMessage{}
	}
	WriteOK(w, messages)
}

// Failed handles GET /api/events/{code}/messages/failed
func (h *EventHandler) Failed(w http.ResponseWriter, r *http.Request) {
	messages, err := h.eventService.Failed(r.Context(), mux.Vars(r)["code"], queryInt(r, "limit", 20))
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	if messages == nil {
		messages = []*models.ScheduledMessage{}
	}
	WriteOK(w, messages)
}

// Commands handles GET /api/events/{code}/commands
func (h *EventHandler) Commands(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	commands, info, err := h.eventService.ListCommands(r.Context(), mux.Vars(r)["code"], page, perPage)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	if commands == nil {
		commands = []*models.SMSCommand{}
	}
	WriteOK(w, CommandListResponse{Data: commands, Pagination: info})
}

// pagination reads page and per_page, defaulting to 1 and 20 with
// per_page capped at 100.
func pagination(r *http.Request) (page, perPage int) {
	page = queryInt(r, "page", 1)
	perPage = queryInt(r, "per_page", 20)
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func queryInt(r *http.Request, key string, def int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}
