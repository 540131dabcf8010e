package models

import (
	"strings"
	"time"
)

// DeliveryCallback is a provider's report on one recipient delivery
type DeliveryCallback struct {
	ProviderMessageID string    `json:"provider_message_id"`
	Status            string    `json:"status"`
	ErrorCode         string    `json:"error_code,omitempty"`
	ErrorMessage      string    `json:"error,omitempty"`
	ReceivedAt        time.Time `json:"received_at"`
}

// Outcome maps the provider status onto a terminal delivery status.
// ok is false for intermediate statuses such as queued or sending.
func (c *DeliveryCallback) Outcome() (status DeliveryStatus, ok bool) {
	switch strings.ToLower(strings.TrimSpace(c.Status)) {
	case "delivered", "read":
		return DeliveryStatusDelivered, true
	case "undelivered", "failed", "canceled":
		return DeliveryStatusFailed, true
	}
	return "", false
}

// Reason returns a human-readable failure detail, if any
func (c *DeliveryCallback) Reason() *string {
	var reason string
	switch {
	case c.ErrorMessage != "" && c.ErrorCode != "":
		reason = c.ErrorCode + ": " + c.ErrorMessage
	case c.ErrorMessage != "":
		reason = c.ErrorMessage
	case c.ErrorCode != "":
		reason = "provider error " + c.ErrorCode
	default:
		return nil
	}
	return &reason
}
