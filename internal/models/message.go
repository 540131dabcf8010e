package models

import "time"

// MessageStatus represents valid scheduled message statuses
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
)

// CanTransitionTo encodes the delivery state machine:
// pending -> sent -> {delivered, failed} and pending -> failed.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	switch s {
	case MessageStatusPending:
		return next == MessageStatusSent || next == MessageStatusFailed
	case MessageStatusSent:
		return next == MessageStatusDelivered || next == MessageStatusFailed
	}
	return false
}

// Message types and categories assigned by this subsystem
const (
	MessageTypeAnnouncement = "announcement"
	MessageCategoryOperator = "operator"
)

// ScheduledMessage is one outbound message scoped to an event audience
type ScheduledMessage struct {
	ID              int           `json:"id" db:"id"`
	EventID         int           `json:"event_id" db:"event_id"`
	MessageType     string        `json:"message_type" db:"message_type"`
	MessageCategory string        `json:"message_category" db:"message_category"`
	Content         string        `json:"content" db:"content"`
	Audience        Audience      `json:"audience" db:"audience"`
	ScheduledTime   time.Time     `json:"scheduled_time" db:"scheduled_time"`
	ActualSendTime  *time.Time    `json:"actual_send_time,omitempty" db:"actual_send_time"`
	Status          MessageStatus `json:"status" db:"status"`
	ErrorMessage    *string       `json:"error_message,omitempty" db:"error_message"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// IsShiftable reports whether the scheduled time may still be changed
func (m *ScheduledMessage) IsShiftable() bool {
	return m.Status == MessageStatusPending && m.ActualSendTime == nil
}

// IsDue reports whether the message should be handed to the transport
func (m *ScheduledMessage) IsDue(now time.Time) bool {
	return m.IsShiftable() && !m.ScheduledTime.After(now)
}

// DeliveryStatus is the per-recipient transport outcome
type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// MessageDelivery records one recipient of a sent message
type MessageDelivery struct {
	ID                int            `json:"id" db:"id"`
	MessageID         int            `json:"message_id" db:"message_id"`
	AttendeeID        int            `json:"attendee_id" db:"attendee_id"`
	Phone             string         `json:"phone" db:"phone"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty" db:"provider_message_id"`
	Status            DeliveryStatus `json:"status" db:"status"`
	ErrorMessage      *string        `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// DeliveryTally counts a message's deliveries by status
type DeliveryTally struct {
	Sent      int
	Delivered int
	Failed    int
}

// Resolve returns the message status implied by the tally once no
// delivery is still waiting on the provider. ok is false while any are.
func (t DeliveryTally) Resolve() (status MessageStatus, ok bool) {
	if t.Sent > 0 {
		return MessageStatusSent, false
	}
	if t.Delivered > 0 {
		return MessageStatusDelivered, true
	}
	return MessageStatusFailed, true
}
