package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventsms/internal/models"
)

const messageColumns = `id, event_id, message_type, message_category, content, audience,
	scheduled_time, actual_send_time, status, error_message, created_at, updated_at`

type messageRepository struct {
	db DB
}

// NewMessageRepository creates a new scheduled message repository
func NewMessageRepository(db DB) MessageRepository {
	return &messageRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.ScheduledMessage, error) {
	message := &models.ScheduledMessage{}
	err := row.Scan(
		&message.ID,
		&message.EventID,
		&message.MessageType,
		&message.MessageCategory,
		&message.Content,
		&message.Audience,
		&message.ScheduledTime,
		&message.ActualSendTime,
		&message.Status,
		&message.ErrorMessage,
		&message.CreatedAt,
		&message.UpdatedAt,
	)
	return message, err
}

// Create inserts a new pending message
func (r *messageRepository) Create(ctx context.Context, message *models.ScheduledMessage) error {
	query := `
		INSERT INTO scheduled_messages (event_id, message_type, message_category, content, audience, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	if message.Status == "" {
		message.Status = models.MessageStatusPending
	}

	err := r.db.QueryRowContext(
		ctx,
		query,
		message.EventID,
		message.MessageType,
		message.MessageCategory,
		message.Content,
		message.Audience,
		message.ScheduledTime,
		message.Status,
	).Scan(&message.ID, &message.CreatedAt, &message.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByID retrieves a message by ID
func (r *messageRepository) GetByID(ctx context.Context, id int) (*models.ScheduledMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM scheduled_messages WHERE id = $1`

	message, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return message, nil
}

// ShiftPending moves every shiftable message of the event by minutes in
// one statement. Rows whose shifted time would land before now are set to
// clampTo instead, but only for negative offsets.
func (r *messageRepository) ShiftPending(ctx context.Context, eventID int, minutes int, now time.Time, clampTo time.Time) ([]ShiftedMessage, error) {
	query := `
		WITH target AS (
			SELECT id, scheduled_time AS old_time
			FROM scheduled_messages
			WHERE event_id = $1 AND status = 'pending' AND actual_send_time IS NULL
			FOR UPDATE
		)
		UPDATE scheduled_messages m
		SET scheduled_time = CASE
				WHEN $2::int < 0 AND t.old_time + ($2::int * INTERVAL '1 minute') < $3::timestamptz THEN $4::timestamptz
				ELSE t.old_time + ($2::int * INTERVAL '1 minute')
			END,
			updated_at = CURRENT_TIMESTAMP
		FROM target t
		WHERE m.id = t.id AND m.status = 'pending' AND m.actual_send_time IS NULL
		RETURNING m.id, t.old_time, m.scheduled_time
	`

	rows, err := r.db.QueryContext(ctx, query, eventID, minutes, now, clampTo)
	if err != nil {
		return nil, fmt.Errorf("failed to shift pending messages: %w", err)
	}
	defer rows.Close()

	shifted := []ShiftedMessage{}
	for rows.Next() {
		var s ShiftedMessage
		if err := rows.Scan(&s.ID, &s.Previous, &s.Scheduled); err != nil {
			return nil, fmt.Errorf("failed to scan shifted message: %w", err)
		}
		shifted = append(shifted, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shifted messages: %w", err)
	}

	return shifted, nil
}

// CountShiftable counts messages a delay would currently move
func (r *messageRepository) CountShiftable(ctx context.Context, eventID int) (int, error) {
	query := `
		SELECT COUNT(*) FROM scheduled_messages
		WHERE event_id = $1 AND status = 'pending' AND actual_send_time IS NULL
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending messages: %w", err)
	}
	return count, nil
}

// ListDue retrieves unclaimed pending messages whose time has come
func (r *messageRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledMessage, error) {
	query := `SELECT ` + messageColumns + `
		FROM scheduled_messages
		WHERE status = 'pending' AND actual_send_time IS NULL AND scheduled_time <= $1
		ORDER BY scheduled_time ASC, id ASC
		LIMIT $2
	`

	return r.list(ctx, "due messages", query, now, limit)
}

// Claim marks a due message as handed to the transport. It reports false
// when another worker claimed it first or a delay moved it out of range.
func (r *messageRepository) Claim(ctx context.Context, id int, now time.Time) (bool, error) {
	query := `
		UPDATE scheduled_messages
		SET actual_send_time = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'pending' AND actual_send_time IS NULL AND scheduled_time <= $2
	`

	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// TransitionStatus moves a message from one status to the next, guarded on
// the current status so concurrent writers cannot skip a step.
func (r *messageRepository) TransitionStatus(ctx context.Context, id int, from, to models.MessageStatus, errorMessage *string) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("invalid message transition %s -> %s", from, to)
	}

	query := `
		UPDATE scheduled_messages
		SET status = $3, error_message = COALESCE($4, error_message), updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, to, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("message %d %s -> %s: %w", id, from, to, ErrStaleTransition)
	}

	return nil
}

// FailStale fails messages claimed before the cutoff that never left pending
func (r *messageRepository) FailStale(ctx context.Context, claimedBefore time.Time, reason string) (int, error) {
	query := `
		UPDATE scheduled_messages
		SET status = 'failed', error_message = $2, updated_at = CURRENT_TIMESTAMP
		WHERE status = 'pending' AND actual_send_time IS NOT NULL AND actual_send_time < $1
	`

	result, err := r.db.ExecContext(ctx, query, claimedBefore, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale messages: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// List retrieves an event's messages with filters and pagination
func (r *messageRepository) List(ctx context.Context, filters MessageFilters) ([]*models.ScheduledMessage, int, error) {
	where := "WHERE event_id = $1"
	args := []interface{}{filters.EventID}

	if filters.Status != nil {
		args = append(args, *filters.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM scheduled_messages " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	limit, offset := pageBounds(filters.Page, filters.PageSize)
	args = append(args, limit, offset)
	query := `SELECT ` + messageColumns + ` FROM scheduled_messages ` + where +
		fmt.Sprintf(" ORDER BY scheduled_time DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	messages, err := r.list(ctx, "messages", query, args...)
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// ListUpcoming retrieves the next pending messages for an event
func (r *messageRepository) ListUpcoming(ctx context.Context, eventID int, limit int) ([]*models.ScheduledMessage, error) {
	query := `SELECT ` + messageColumns + `
		FROM scheduled_messages
		WHERE event_id = $1 AND status = 'pending'
		ORDER BY scheduled_time ASC, id ASC
		LIMIT $2
	`

	return r.list(ctx, "upcoming messages", query, eventID, limit)
}

// ListFailed retrieves the most recent failed messages for an event
func (r *messageRepository) ListFailed(ctx context.Context, eventID int, limit int) ([]*models.ScheduledMessage, error) {
	query := `SELECT ` + messageColumns + `
		FROM scheduled_messages
		WHERE event_id = $1 AND status = 'failed'
		ORDER BY updated_at DESC, id DESC
		LIMIT $2
	`

	return r.list(ctx, "failed messages", query, eventID, limit)
}

// Stats counts an event's messages by status
func (r *messageRepository) Stats(ctx context.Context, eventID int) (models.EventStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'sent') AS sent,
			COUNT(*) FILTER (WHERE status = 'delivered') AS delivered,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM scheduled_messages
		WHERE event_id = $1
	`

	var stats models.EventStats
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Sent,
		&stats.Delivered,
		&stats.Failed,
	)
	if err != nil {
		return stats, fmt.Errorf("failed to get message stats: %w", err)
	}

	stats.ComputeDeliveryRate()
	return stats, nil
}

func (r *messageRepository) list(ctx context.Context, what, query string, args ...interface{}) ([]*models.ScheduledMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	defer rows.Close()

	messages := []*models.ScheduledMessage{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", what, err)
	}

	return messages, nil
}
