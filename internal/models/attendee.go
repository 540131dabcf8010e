package models

import (
	"strings"
	"time"
)

// Attendee represents a registered attendee of an event
type Attendee struct {
	ID          int        `json:"id" db:"id"`
	EventID     int        `json:"event_id" db:"event_id"`
	Name        *string    `json:"name,omitempty" db:"name"`
	Phone       string     `json:"phone" db:"phone"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty" db:"checked_in_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// IsCheckedIn reports whether the attendee has a recorded check-in
func (a *Attendee) IsCheckedIn() bool {
	return a.CheckedInAt != nil
}

// Audience is the recipient filter token used by MSG commands
type Audience string

const (
	AudienceAll       Audience = "all"
	AudienceCheckedIn Audience = "checkedin"
	AudiencePending   Audience = "pending"
)

// ParseAudience matches a token case-insensitively
func ParseAudience(token string) (Audience, bool) {
	switch Audience(strings.ToLower(token)) {
	case AudienceAll:
		return AudienceAll, true
	case AudienceCheckedIn:
		return AudienceCheckedIn, true
	case AudiencePending:
		return AudiencePending, true
	}
	return "", false
}

// Matches reports whether the attendee belongs to the audience
func (a Audience) Matches(attendee *Attendee) bool {
	switch a {
	case AudienceAll:
		return true
	case AudienceCheckedIn:
		return attendee.IsCheckedIn()
	case AudiencePending:
		return !attendee.IsCheckedIn()
	}
	return false
}

// Valid reports whether a is one of the known audience tokens
func (a Audience) Valid() bool {
	switch a {
	case AudienceAll, AudienceCheckedIn, AudiencePending:
		return true
	}
	return false
}
