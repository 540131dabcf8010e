package service

import (
	"context"

	"eventsms/internal/models"
	"eventsms/internal/repository"
)

// StatsAggregator computes event statistics on demand. Nothing is cached.
type StatsAggregator struct {
	messages repository.MessageRepository
}

// NewStatsAggregator creates a new stats aggregator
func NewStatsAggregator(messages repository.MessageRepository) *StatsAggregator {
	return &StatsAggregator{messages: messages}
}

// Snapshot returns the event's current per-status counts and delivery rate
func (s *StatsAggregator) Snapshot(ctx context.Context, eventID int) (models.EventStats, error) {
	stats, err := s.messages.Stats(ctx, eventID)
	if err != nil {
		return stats, err
	}
	stats.ComputeDeliveryRate()
	return stats, nil
}
