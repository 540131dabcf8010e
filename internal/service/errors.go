package service

import "fmt"

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// BusinessLogicError represents a business logic error
type BusinessLogicError struct {
	Message string
}

func (e *BusinessLogicError) Error() string {
	return fmt.Sprintf("business logic error: %s", e.Message)
}

// ConflictError represents a conflict error (e.g. a command already running)
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict with %s: %s", e.Resource, e.Message)
}

// EventNotFoundError is returned when a command names no active event
type EventNotFoundError struct {
	Code string
}

func (e *EventNotFoundError) Error() string {
	return fmt.Sprintf("Event %s not found or not active", e.Code)
}

// InvalidArgumentError is a well-formed command with an unusable argument
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return e.Message
}

// TransportError is a send attempt rejected by the SMS provider
type TransportError struct {
	Phone  string
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport rejected %s: %s", e.Phone, e.Reason)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
