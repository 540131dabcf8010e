package models

import (
	"encoding/json"
	"time"
)

// CommandType represents a recognized command verb
type CommandType string

const (
	CommandDelay   CommandType = "DELAY"
	CommandMessage CommandType = "MSG"
	CommandStatus  CommandType = "STATUS"
	// CommandUnknown is recorded for text that failed to parse
	CommandUnknown CommandType = "UNKNOWN"
)

// WebAdminIdentity marks commands issued from the admin UI without a phone
const WebAdminIdentity = "web-admin"

// MaxAdminIdentityLength is the width of sms_commands.admin_phone
const MaxAdminIdentityLength = 32

// SMSCommand is the append-only audit record of one submitted command
type SMSCommand struct {
	ID           int             `json:"id" db:"id"`
	AdminPhone   string          `json:"admin_phone" db:"admin_phone"`
	EventCode    string          `json:"event_code" db:"event_code"`
	RawCommand   string          `json:"raw_command" db:"raw_command"`
	CommandType  CommandType     `json:"command_type" db:"command_type"`
	ParsedParams json.RawMessage `json:"parsed_params,omitempty" db:"parsed_params"`
	Executed     bool            `json:"executed" db:"executed"`
	Success      bool            `json:"success" db:"success"`
	ResponseText string          `json:"response_text" db:"response_text"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
