// Package command parses operator command text of the form
// "EVENT_CODE VERB ARGS...". Parsing is pure: no I/O, no clock.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"eventsms/internal/models"
)

// MaxDelayMinutes bounds the magnitude of a DELAY offset (one year)
const MaxDelayMinutes = 525600

// MaxEventCodeLength matches the width of the event code columns
const MaxEventCodeLength = 32

// Parse failure reasons reported back to the operator
const (
	ReasonUnrecognized = "unrecognized command"
	ReasonMinutes      = "minutes must be a positive integer"
	ReasonAudience     = "unknown audience token"
	ReasonEmptyBody    = "message text is required"
	ReasonRange        = "minutes out of range"
	ReasonStatusArgs   = "STATUS takes no arguments"
	ReasonCodeLength   = "event code is too long"
)

// ErrInvalidArgument is wrapped by parse errors for a recognized verb
// with a bad argument.
var ErrInvalidArgument = errors.New("invalid argument")

// ParseError is a malformed command. EventCode and Type are filled in as
// far as parsing got before failing.
type ParseError struct {
	EventCode string
	Type      models.CommandType
	Reason    string
}

func (e *ParseError) Error() string {
	return e.Reason
}

// Unwrap exposes ErrInvalidArgument when the verb itself was recognized
func (e *ParseError) Unwrap() error {
	if e.Type != models.CommandUnknown {
		return ErrInvalidArgument
	}
	return nil
}

// Command is a validated operator command
type Command struct {
	EventCode string
	Type      models.CommandType
	Minutes   int
	Audience  models.Audience
	Body      string
	Raw       string
}

// Params are the typed arguments as recorded in the audit log and
// accepted by the command submission endpoint.
type Params struct {
	Minutes  *int   `json:"minutes,omitempty"`
	Audience string `json:"audience,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Params returns the command's arguments
func (c *Command) Params() Params {
	switch c.Type {
	case models.CommandDelay:
		minutes := c.Minutes
		return Params{Minutes: &minutes}
	case models.CommandMessage:
		return Params{Audience: string(c.Audience), Message: c.Body}
	}
	return Params{}
}

// ParamsJSON returns the arguments encoded for the audit log, or nil
// when the command carries none.
func (c *Command) ParamsJSON() json.RawMessage {
	if c.Type == models.CommandStatus {
		return nil
	}
	b, err := json.Marshal(c.Params())
	if err != nil {
		return nil
	}
	return b
}

// Parse turns raw command text into a Command. Verb and audience tokens
// are case-insensitive; the MSG body is kept as typed, trailing
// whitespace included.
func Parse(raw string) (*Command, error) {
	text := strings.TrimLeftFunc(raw, unicode.IsSpace)

	code, rest := nextToken(text)
	if code == "" || !validEventCode(code) {
		return nil, &ParseError{Type: models.CommandUnknown, Reason: ReasonUnrecognized}
	}
	if utf8.RuneCountInString(code) > MaxEventCodeLength {
		return nil, &ParseError{Type: models.CommandUnknown, Reason: ReasonCodeLength}
	}
	code = strings.ToUpper(code)

	verb, rest := nextToken(rest)
	cmd := &Command{EventCode: code, Raw: strings.TrimRightFunc(text, unicode.IsSpace)}

	fail := func(t models.CommandType, reason string) (*Command, error) {
		return nil, &ParseError{EventCode: code, Type: t, Reason: reason}
	}

	switch models.CommandType(strings.ToUpper(verb)) {
	case models.CommandDelay:
		cmd.Type = models.CommandDelay
		arg, extra := nextToken(rest)
		if arg == "" || extra != "" {
			return fail(cmd.Type, ReasonMinutes)
		}
		minutes, err := strconv.Atoi(arg)
		if err != nil {
			return fail(cmd.Type, ReasonMinutes)
		}
		if minutes > MaxDelayMinutes || minutes < -MaxDelayMinutes {
			return fail(cmd.Type, ReasonRange)
		}
		cmd.Minutes = minutes

	case models.CommandMessage:
		cmd.Type = models.CommandMessage
		token, body := nextToken(rest)
		audience, ok := models.ParseAudience(token)
		if !ok {
			return fail(cmd.Type, ReasonAudience)
		}
		if body == "" {
			return fail(cmd.Type, ReasonEmptyBody)
		}
		cmd.Audience = audience
		cmd.Body = body

	case models.CommandStatus:
		cmd.Type = models.CommandStatus
		if rest != "" {
			return fail(cmd.Type, ReasonStatusArgs)
		}

	default:
		return fail(models.CommandUnknown, ReasonUnrecognized)
	}

	return cmd, nil
}

// Compose builds command text from a verb and typed arguments
func Compose(eventCode string, verb models.CommandType, params Params) (string, error) {
	eventCode = strings.TrimSpace(eventCode)
	if eventCode == "" {
		return "", fmt.Errorf("event code is required")
	}

	switch models.CommandType(strings.ToUpper(string(verb))) {
	case models.CommandDelay:
		if params.Minutes == nil {
			return "", fmt.Errorf("minutes is required for DELAY")
		}
		return fmt.Sprintf("%s DELAY %d", eventCode, *params.Minutes), nil
	case models.CommandMessage:
		return fmt.Sprintf("%s MSG %s %s", eventCode, params.Audience, params.Message), nil
	case models.CommandStatus:
		return eventCode + " STATUS", nil
	}
	return "", fmt.Errorf("unknown command type %q", verb)
}

// WithEventCode prefixes text with code unless it already starts with it
func WithEventCode(code, text string) string {
	text = strings.TrimSpace(text)
	code = strings.TrimSpace(code)
	if code == "" {
		return text
	}

	first, _ := nextToken(text)
	if strings.EqualFold(first, code) {
		return text
	}
	return code + " " + text
}

// nextToken splits off the first whitespace-delimited token. rest starts
// at the following non-space character and is otherwise untouched.
func nextToken(s string) (token, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := strings.IndexFunc(s, unicode.IsSpace)
	if end < 0 {
		return s, ""
	}
	return s[:end], strings.TrimLeftFunc(s[end:], unicode.IsSpace)
}

func validEventCode(code string) bool {
	for _, r := range code {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
