package models

import "time"

// Event represents a live occasion whose code prefixes operator commands
type Event struct {
	ID        int       `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	EventDate time.Time `json:"event_date" db:"event_date"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EventDetail is the full event view consumed by the admin UI
type EventDetail struct {
	Event
	Stats          EventStats          `json:"stats"`
	LastActivity   *time.Time          `json:"last_activity,omitempty"`
	Upcoming       []*ScheduledMessage `json:"upcoming"`
	RecentCommands []*SMSCommand       `json:"recent_commands"`
}
