package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventsms/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")
	// ErrStaleTransition is returned when a guarded status update matched no row
	ErrStaleTransition = errors.New("status precondition no longer holds")
)

// EventRepository defines read access to events
type EventRepository interface {
	GetByCode(ctx context.Context, code string) (*models.Event, error)
	GetActiveByCode(ctx context.Context, code string) (*models.Event, error)
	LastActivity(ctx context.Context, event *models.Event) (*time.Time, error)
}

// AttendeeRepository resolves live attendee state
type AttendeeRepository interface {
	ListByAudience(ctx context.Context, eventID int, audience models.Audience) ([]*models.Attendee, error)
	CountByAudience(ctx context.Context, eventID int, audience models.Audience) (int, error)
}

// MessageRepository defines scheduled message data access operations
type MessageRepository interface {
	Create(ctx context.Context, message *models.ScheduledMessage) error
	GetByID(ctx context.Context, id int) (*models.ScheduledMessage, error)
	ShiftPending(ctx context.Context, eventID int, minutes int, now time.Time, clampTo time.Time) ([]ShiftedMessage, error)
	CountShiftable(ctx context.Context, eventID int) (int, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledMessage, error)
	Claim(ctx context.Context, id int, now time.Time) (bool, error)
	TransitionStatus(ctx context.Context, id int, from, to models.MessageStatus, errorMessage *string) error
	FailStale(ctx context.Context, claimedBefore time.Time, reason string) (int, error)
	List(ctx context.Context, filters MessageFilters) ([]*models.ScheduledMessage, int, error)
	ListUpcoming(ctx context.Context, eventID int, limit int) ([]*models.ScheduledMessage, error)
	ListFailed(ctx context.Context, eventID int, limit int) ([]*models.ScheduledMessage, error)
	Stats(ctx context.Context, eventID int) (models.EventStats, error)
}

// ShiftedMessage reports one row moved by a delay recalculation
type ShiftedMessage struct {
	ID        int
	Previous  time.Time
	Scheduled time.Time
}

// MessageFilters defines filters for listing message history
type MessageFilters struct {
	EventID  int
	Status   *models.MessageStatus
	Page     int
	PageSize int
}

// DeliveryRepository defines per-recipient delivery data access operations
type DeliveryRepository interface {
	Create(ctx context.Context, delivery *models.MessageDelivery) error
	GetByProviderID(ctx context.Context, providerMessageID string) (*models.MessageDelivery, error)
	Resolve(ctx context.Context, id int, status models.DeliveryStatus, errorMessage *string) (bool, error)
	Tally(ctx context.Context, messageID int) (models.DeliveryTally, error)
	ListByMessage(ctx context.Context, messageID int) ([]*models.MessageDelivery, error)
}

// CommandRepository defines the append-only audit log
type CommandRepository interface {
	Create(ctx context.Context, command *models.SMSCommand) error
	List(ctx context.Context, filters CommandFilters) ([]*models.SMSCommand, int, error)
}

// CommandFilters defines filters for listing audit rows
type CommandFilters struct {
	EventCode string
	Page      int
	PageSize  int
}

// Tx exposes the repositories that take part in a unit of work
type Tx interface {
	Messages() MessageRepository
	Commands() CommandRepository
}

// Transactor runs fn inside a single database transaction
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// DB is a wrapper around *sql.DB to allow passing in transaction
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// pageBounds normalizes page/page size into LIMIT and OFFSET
func pageBounds(page, pageSize int) (limit, offset int) {
	limit = pageSize
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset = (page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
