package service

import (
	"context"
	"errors"
	"fmt"

	"eventsms/internal/models"
	"eventsms/internal/repository"
)

const (
	detailUpcomingLimit = 10
	detailCommandLimit  = 10
)

// EventService serves the admin read views of an event
type EventService struct {
	events   repository.EventRepository
	messages repository.MessageRepository
	commands repository.CommandRepository
	stats    *StatsAggregator
}

// NewEventService creates a new event service
func NewEventService(
	events repository.EventRepository,
	messages repository.MessageRepository,
	commands repository.CommandRepository,
	stats *StatsAggregator,
) *EventService {
	return &EventService{
		events:   events,
		messages: messages,
		commands: commands,
		stats:    stats,
	}
}

// PaginationInfo represents pagination metadata
type PaginationInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

func newPagination(page, pageSize, total int) *PaginationInfo {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page <= 0 {
		page = 1
	}
	return &PaginationInfo{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}

// GetEvent looks an event up by code, active or not
func (s *EventService) GetEvent(ctx context.Context, code string) (*models.Event, error) {
	event, err := s.events.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "event", ID: code}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// GetDetail assembles the full event view including last activity
func (s *EventService) GetDetail(ctx context.Context, code string) (*models.EventDetail, error) {
	event, err := s.GetEvent(ctx, code)
	if err != nil {
		return nil, err
	}

	stats, err := s.stats.Snapshot(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	last, err := s.events.LastActivity(ctx, event)
	if err != nil {
		return nil, err
	}

	upcoming, err := s.messages.ListUpcoming(ctx, event.ID, detailUpcomingLimit)
	if err != nil {
		return nil, err
	}

	recent, _, err := s.commands.List(ctx, repository.CommandFilters{
		EventCode: event.Code,
		Page:      1,
		PageSize:  detailCommandLimit,
	})
	if err != nil {
		return nil, err
	}

	return &models.EventDetail{
		Event:          *event,
		Stats:          stats,
		LastActivity:   last,
		Upcoming:       upcoming,
		RecentCommands: recent,
	}, nil
}

// GetStats returns the event's current statistics
func (s *EventService) GetStats(ctx context.Context, code string) (*models.EventStats, error) {
	event, err := s.GetEvent(ctx, code)
	if err != nil {
		return nil, err
	}

	stats, err := s.stats.Snapshot(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

// ListMessages returns one page of the event's message history
func (s *EventService) ListMessages(ctx context.Context, code string, status string, page, pageSize int) ([]*models.ScheduledMessage, *PaginationInfo, error) {
	event, err := s.GetEvent(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	filters := repository.MessageFilters{EventID: event.ID, Page: page, PageSize: pageSize}
	if status != "" {
		st := models.MessageStatus(status)
		switch st {
		case models.MessageStatusPending, models.MessageStatusSent, models.MessageStatusDelivered, models.MessageStatusFailed:
		default:
			return nil, nil, &ValidationError{Message: fmt.Sprintf("unknown status %q", status)}
		}
		filters.Status = &st
	}

	messages, total, err := s.messages.List(ctx, filters)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, newPagination(page, pageSize, total), nil
}

// Upcoming returns the next pending messages in send order
func (s *EventService) Upcoming(ctx context.Context, code string, limit int) ([]*models.ScheduledMessage, error) {
	event, err := s.GetEvent(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.messages.ListUpcoming(ctx, event.ID, clampLimit(limit))
}

// Failed returns the most recent failed messages
func (s *EventService) Failed(ctx context.Context, code string, limit int) ([]*models.ScheduledMessage, error) {
	event, err := s.GetEvent(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.messages.ListFailed(ctx, event.ID, clampLimit(limit))
}

// ListCommands returns one page of the event's audit log
func (s *EventService) ListCommands(ctx context.Context, code string, page, pageSize int) ([]*models.SMSCommand, *PaginationInfo, error) {
	event, err := s.GetEvent(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	commands, total, err := s.commands.List(ctx, repository.CommandFilters{
		EventCode: event.Code,
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list commands: %w", err)
	}

	return commands, newPagination(page, pageSize, total), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
