package service

import (
	"context"
	"fmt"

	"eventsms/internal/models"
	"eventsms/internal/repository"
)

// AudienceResolver maps an audience token to the event's current
// attendees. It holds no state, so results always reflect live check-ins.
type AudienceResolver struct {
	attendees repository.AttendeeRepository
}

// NewAudienceResolver creates a new audience resolver
func NewAudienceResolver(attendees repository.AttendeeRepository) *AudienceResolver {
	return &AudienceResolver{attendees: attendees}
}

// Resolve returns the recipients currently matching audience
func (r *AudienceResolver) Resolve(ctx context.Context, eventID int, audience models.Audience) ([]*models.Attendee, error) {
	if !audience.Valid() {
		return nil, &InvalidArgumentError{Message: fmt.Sprintf("unknown audience token %q", audience)}
	}
	return r.attendees.ListByAudience(ctx, eventID, audience)
}

// Count returns how many recipients currently match audience
func (r *AudienceResolver) Count(ctx context.Context, eventID int, audience models.Audience) (int, error) {
	if !audience.Valid() {
		return 0, &InvalidArgumentError{Message: fmt.Sprintf("unknown audience token %q", audience)}
	}
	return r.attendees.CountByAudience(ctx, eventID, audience)
}
