package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"eventsms/internal/logger"
	"eventsms/internal/models"
	"eventsms/internal/service"
	"eventsms/internal/sms"
)

// StatusHandler receives provider delivery reports and queues them for
// the worker.
type StatusHandler struct {
	sink      service.CallbackSink
	validator *sms.SignatureValidator
}

// NewStatusHandler creates a new status callback handler
func NewStatusHandler(sink service.CallbackSink, validator *sms.SignatureValidator) *StatusHandler {
	return &StatusHandler{sink: sink, validator: validator}
}

// Callback handles POST /api/sms/status
func (h *StatusHandler) Callback(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	cb, err := h.decode(r)
	if err != nil {
		WriteValidationError(w, err.Error())
		return
	}
	if cb == nil {
		WriteError(w, http.StatusForbidden, "FORBIDDEN", "invalid signature")
		return
	}

	if cb.ProviderMessageID == "" {
		WriteValidationError(w, "provider message id is required")
		return
	}

	if _, terminal := cb.Outcome(); !terminal {
		WriteNoContent(w)
		return
	}

	if err := h.sink.PublishCallback(r.Context(), cb); err != nil {
		// the provider retries on 5xx
		log.Error("Failed to queue delivery callback",
			zap.String("provider_message_id", cb.ProviderMessageID),
			zap.Error(err),
		)
		WriteError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "delivery callback could not be queued")
		return
	}

	WriteNoContent(w)
}

// maxCallbackBody bounds a JSON callback body
const maxCallbackBody = 64 << 10

// decode reads a JSON or Twilio form callback. It returns nil, nil when
// the callback fails signature validation.
func (h *StatusHandler) decode(r *http.Request) (*models.DeliveryCallback, error) {
	cb := &models.DeliveryCallback{ReceivedAt: time.Now().UTC()}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil {
			return nil, errors.New("invalid request body")
		}
		if h.validator != nil && !h.validator.ValidBody(publicURL(r), body, r.Header.Get("X-Twilio-Signature")) {
			return nil, nil
		}
		if err := json.Unmarshal(body, cb); err != nil {
			return nil, errors.New("invalid JSON format")
		}
		cb.ProviderMessageID = strings.TrimSpace(cb.ProviderMessageID)
		return cb, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errors.New("invalid form body")
	}
	if !verifySignature(h.validator, r) {
		return nil, nil
	}

	cb.ProviderMessageID = strings.TrimSpace(r.PostForm.Get("MessageSid"))
	cb.Status = r.PostForm.Get("MessageStatus")
	cb.ErrorCode = r.PostForm.Get("ErrorCode")
	cb.ErrorMessage = r.PostForm.Get("ErrorMessage")
	return cb, nil
}
