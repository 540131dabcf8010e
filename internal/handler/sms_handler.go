package handler

import (
	"net/http"

	"go.uber.org/zap"

	"eventsms/internal/logger"
	"eventsms/internal/metrics"
	"eventsms/internal/middleware"
	"eventsms/internal/service"
	"eventsms/internal/sms"
)

const (
	replyUnauthorized = "This number is not authorized to send event commands."
	replyRateLimited  = "Too many commands, please wait a minute and try again."
	replyUnrecorded   = "Your command could not be processed, please retry."
)

// SMSHandler receives operator commands sent by SMS
type SMSHandler struct {
	executor  CommandRunner
	allowlist *sms.Allowlist
	limiter   *middleware.RateLimiter
	validator *sms.SignatureValidator
}

// NewSMSHandler creates the inbound webhook handler. validator may be nil
// to skip provider signature checks.
func NewSMSHandler(executor CommandRunner, allowlist *sms.Allowlist, limiter *middleware.RateLimiter, validator *sms.SignatureValidator) *SMSHandler {
	return &SMSHandler{
		executor:  executor,
		allowlist: allowlist,
		limiter:   limiter,
		validator: validator,
	}
}

// Inbound handles POST /api/sms/inbound
func (h *SMSHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		WriteValidationError(w, "invalid form body")
		return
	}

	if !verifySignature(h.validator, r) {
		log.Warn("Rejected inbound SMS with bad signature")
		WriteError(w, http.StatusForbidden, "FORBIDDEN", "invalid signature")
		return
	}

	phone, admin, ok := h.allowlist.Lookup(r.PostForm.Get("From"))
	if !ok {
		// no audit row for strangers
		log.Warn("Inbound SMS from unknown sender", zap.String("from", r.PostForm.Get("From")))
		h.reply(w, replyUnauthorized)
		return
	}

	if !h.limiter.Allow(phone) {
		metrics.SMSRateLimitedTotal.Inc()
		log.Warn("Inbound SMS rate limited", zap.String("from", phone))
		h.reply(w, replyRateLimited)
		return
	}

	result, err := h.executor.Execute(r.Context(), service.Submission{
		AdminPhone: phone,
		Text:       r.PostForm.Get("Body"),
	})
	if err != nil {
		log.Error("Command could not be recorded", zap.String("from", phone), zap.Error(err))
		h.reply(w, replyUnrecorded)
		return
	}

	log.Info("Inbound SMS command handled",
		zap.String("admin", admin),
		zap.String("from", phone),
		zap.Bool("success", result.Success),
	)
	h.reply(w, result.Reply)
}

func (h *SMSHandler) reply(w http.ResponseWriter, text string) {
	body, err := sms.Reply(text)
	if err != nil {
		logger.Log.Error("Failed to render TwiML reply", zap.Error(err))
		WriteInternalError(w)
		return
	}
	WriteTwiML(w, body)
}

// verifySignature checks the provider signature over the public URL and
// form fields. A nil validator accepts everything.
func verifySignature(v *sms.SignatureValidator, r *http.Request) bool {
	if v == nil {
		return true
	}

	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.Valid(publicURL(r), params, r.Header.Get("X-Twilio-Signature"))
}

func publicURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
