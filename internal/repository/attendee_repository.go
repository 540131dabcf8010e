package repository

import (
	"context"
	"fmt"

	"eventsms/internal/models"
)

type attendeeRepository struct {
	db DB
}

// NewAttendeeRepository creates a new attendee repository
func NewAttendeeRepository(db DB) AttendeeRepository {
	return &attendeeRepository{db: db}
}

// audienceClause maps an audience token to its check-in predicate
func audienceClause(audience models.Audience) (string, error) {
	switch audience {
	case models.AudienceAll:
		return "", nil
	case models.AudienceCheckedIn:
		return " AND checked_in_at IS NOT NULL", nil
	case models.AudiencePending:
		return " AND checked_in_at IS NULL", nil
	}
	return "", fmt.Errorf("unknown audience %q", audience)
}

// ListByAudience returns the attendees currently matching the audience
func (r *attendeeRepository) ListByAudience(ctx context.Context, eventID int, audience models.Audience) ([]*models.Attendee, error) {
	clause, err := audienceClause(audience)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, event_id, name, phone, checked_in_at, created_at
		FROM attendees
		WHERE event_id = $1` + clause + `
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	defer rows.Close()

	attendees := []*models.Attendee{}
	for rows.Next() {
		attendee := &models.Attendee{}
		err := rows.Scan(
			&attendee.ID,
			&attendee.EventID,
			&attendee.Name,
			&attendee.Phone,
			&attendee.CheckedInAt,
			&attendee.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		attendees = append(attendees, attendee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendees: %w", err)
	}

	return attendees, nil
}

// CountByAudience counts the attendees currently matching the audience
func (r *attendeeRepository) CountByAudience(ctx context.Context, eventID int, audience models.Audience) (int, error) {
	clause, err := audienceClause(audience)
	if err != nil {
		return 0, err
	}

	var count int
	query := `SELECT COUNT(*) FROM attendees WHERE event_id = $1` + clause
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attendees: %w", err)
	}
	return count, nil
}
