package service

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"eventsms/internal/lock"
	"eventsms/internal/models"
	"eventsms/internal/repository"
)

// harness wires the services over one memStore with a controllable clock
type harness struct {
	store     *memStore
	exec      *CommandExecutor
	delivery  *DeliveryService
	events    *EventService
	transport *fakeTransport
	event     *models.Event
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newMemStore()
	h := &harness{
		store:     store,
		transport: newFakeTransport(),
		now:       time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }

	audience := NewAudienceResolver(memAttendees{store})
	delay := NewDelayRecalculator()
	delay.now = clock
	stats := NewStatsAggregator(memMessages{store})

	h.exec = NewCommandExecutor(
		memEvents{store},
		memCommands{store},
		memTransactor{store},
		audience,
		delay,
		stats,
		lock.NewLocalLocker(),
		zap.NewNop(),
	)
	h.exec.now = clock

	h.delivery = NewDeliveryService(
		memMessages{store},
		memDeliveries{store},
		audience,
		h.transport,
		100,
		15*time.Minute,
		zap.NewNop(),
	)
	h.delivery.now = clock

	h.events = NewEventService(memEvents{store}, memMessages{store}, memCommands{store}, stats)
	h.event = store.addEvent("EXPO25", true)
	return h
}

func repositoryFilters(eventID int, status *models.MessageStatus) repository.MessageFilters {
	return repository.MessageFilters{EventID: eventID, Status: status, Page: 1, PageSize: 20}
}
