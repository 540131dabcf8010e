package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventsms/internal/models"
)

type eventRepository struct {
	db DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db DB) EventRepository {
	return &eventRepository{db: db}
}

// GetByCode retrieves an event by its command code, active or not
func (r *eventRepository) GetByCode(ctx context.Context, code string) (*models.Event, error) {
	return r.get(ctx, `
		SELECT id, code, name, event_date, is_active, created_at
		FROM events
		WHERE UPPER(code) = UPPER($1)
	`, code)
}

// GetActiveByCode retrieves an active event by its command code
func (r *eventRepository) GetActiveByCode(ctx context.Context, code string) (*models.Event, error) {
	return r.get(ctx, `
		SELECT id, code, name, event_date, is_active, created_at
		FROM events
		WHERE UPPER(code) = UPPER($1) AND is_active = TRUE
	`, code)
}

func (r *eventRepository) get(ctx context.Context, query, code string) (*models.Event, error) {
	event := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&event.ID,
		&event.Code,
		&event.Name,
		&event.EventDate,
		&event.IsActive,
		&event.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// LastActivity returns the most recent command or message change for the event
func (r *eventRepository) LastActivity(ctx context.Context, event *models.Event) (*time.Time, error) {
	query := `
		SELECT GREATEST(
			(SELECT MAX(created_at) FROM sms_commands WHERE UPPER(event_code) = UPPER($2)),
			(SELECT MAX(updated_at) FROM scheduled_messages WHERE event_id = $1)
		)
	`

	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, event.ID, event.Code).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to get last activity: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}

	t := last.Time
	return &t, nil
}
