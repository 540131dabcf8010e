package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventsms/internal/models"
)

type deliveryRepository struct {
	db DB
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

// Create records one recipient's send outcome
func (r *deliveryRepository) Create(ctx context.Context, delivery *models.MessageDelivery) error {
	query := `
		INSERT INTO message_deliveries (message_id, attendee_id, phone, provider_message_id, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		delivery.MessageID,
		delivery.AttendeeID,
		delivery.Phone,
		delivery.ProviderMessageID,
		delivery.Status,
		delivery.ErrorMessage,
	).Scan(&delivery.ID, &delivery.CreatedAt, &delivery.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}

	return nil
}

// GetByProviderID retrieves a delivery by the transport's message id
func (r *deliveryRepository) GetByProviderID(ctx context.Context, providerMessageID string) (*models.MessageDelivery, error) {
	query := `
		SELECT id, message_id, attendee_id, phone, provider_message_id, status, error_message, created_at, updated_at
		FROM message_deliveries
		WHERE provider_message_id = $1
	`

	delivery := &models.MessageDelivery{}
	err := r.db.QueryRowContext(ctx, query, providerMessageID).Scan(
		&delivery.ID,
		&delivery.MessageID,
		&delivery.AttendeeID,
		&delivery.Phone,
		&delivery.ProviderMessageID,
		&delivery.Status,
		&delivery.ErrorMessage,
		&delivery.CreatedAt,
		&delivery.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delivery %q: %w", providerMessageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	return delivery, nil
}

// Resolve records the final outcome of a delivery still marked sent.
// It reports false when the delivery was already resolved.
func (r *deliveryRepository) Resolve(ctx context.Context, id int, status models.DeliveryStatus, errorMessage *string) (bool, error) {
	if status == models.DeliveryStatusSent {
		return false, fmt.Errorf("cannot resolve delivery to %s", status)
	}

	query := `
		UPDATE message_deliveries
		SET status = $2, error_message = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'sent'
	`

	result, err := r.db.ExecContext(ctx, query, id, status, errorMessage)
	if err != nil {
		return false, fmt.Errorf("failed to resolve delivery: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// Tally counts a message's deliveries by status
func (r *deliveryRepository) Tally(ctx context.Context, messageID int) (models.DeliveryTally, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'delivered'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM message_deliveries
		WHERE message_id = $1
	`

	var tally models.DeliveryTally
	if err := r.db.QueryRowContext(ctx, query, messageID).Scan(&tally.Sent, &tally.Delivered, &tally.Failed); err != nil {
		return tally, fmt.Errorf("failed to tally deliveries: %w", err)
	}
	return tally, nil
}

// ListByMessage retrieves all deliveries of a message
func (r *deliveryRepository) ListByMessage(ctx context.Context, messageID int) ([]*models.MessageDelivery, error) {
	query := `
		SELECT id, message_id, attendee_id, phone, provider_message_id, status, error_message, created_at, updated_at
		FROM message_deliveries
		WHERE message_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := []*models.MessageDelivery{}
	for rows.Next() {
		d := &models.MessageDelivery{}
		err := rows.Scan(
			&d.ID,
			&d.MessageID,
			&d.AttendeeID,
			&d.Phone,
			&d.ProviderMessageID,
			&d.Status,
			&d.ErrorMessage,
			&d.CreatedAt,
			&d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deliveries: %w", err)
	}

	return deliveries, nil
}
