package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"eventsms/internal/models"
	"eventsms/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres repositories. It
// applies the same guards as the SQL statements.
type memStore struct {
	mu         sync.Mutex
	nextID     int
	events     map[string]*models.Event
	attendees  []*models.Attendee
	messages   map[int]*models.ScheduledMessage
	deliveries map[int]*models.MessageDelivery
	commands   []*models.SMSCommand

	shiftErr    error
	commandErr  error
	deliveryErr error
}

func newMemStore() *memStore {
	return &memStore{
		events:     map[string]*models.Event{},
		messages:   map[int]*models.ScheduledMessage{},
		deliveries: map[int]*models.MessageDelivery{},
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) addEvent(code string, active bool) *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &models.Event{ID: s.id(), Code: code, Name: code, IsActive: active, EventDate: time.Now()}
	s.events[strings.ToUpper(code)] = e
	return e
}

func (s *memStore) addAttendee(eventID int, phone string, checkedIn bool) *models.Attendee {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &models.Attendee{ID: s.id(), EventID: eventID, Phone: phone}
	if checkedIn {
		now := time.Now()
		a.CheckedInAt = &now
	}
	s.attendees = append(s.attendees, a)
	return a
}

func (s *memStore) checkIn(attendeeID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendees {
		if a.ID == attendeeID {
			now := time.Now()
			a.CheckedInAt = &now
		}
	}
}

func (s *memStore) addMessage(eventID int, at time.Time, status models.MessageStatus) *models.ScheduledMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &models.ScheduledMessage{
		ID: s.id(), EventID: eventID, MessageType: "reminder", MessageCategory: "agenda",
		Content: "hello", Audience: models.AudienceAll, ScheduledTime: at, Status: status,
	}
	if status != models.MessageStatusPending {
		sent := at
		m.ActualSendTime = &sent
	}
	s.messages[m.ID] = m
	return m
}

func (s *memStore) message(id int) models.ScheduledMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.messages[id]
}

func (s *memStore) auditRows() []*models.SMSCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.SMSCommand(nil), s.commands...)
}

func (s *memStore) snapshot() (map[int]models.ScheduledMessage, int) {
	out := make(map[int]models.ScheduledMessage, len(s.messages))
	for id, m := range s.messages {
		out[id] = *m
	}
	return out, len(s.commands)
}

func (s *memStore) restore(messages map[int]models.ScheduledMessage, commands int) {
	s.messages = make(map[int]*models.ScheduledMessage, len(messages))
	for id, m := range messages {
		m := m
		s.messages[id] = &m
	}
	s.commands = s.commands[:commands]
}

// repositories

type memEvents struct{ *memStore }
type memAttendees struct{ *memStore }
type memMessages struct{ *memStore }
type memDeliveries struct{ *memStore }
type memCommands struct{ *memStore }

func (r memEvents) GetByCode(_ context.Context, code string) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[strings.ToUpper(code)]
	if !ok {
		return nil, fmt.Errorf("event %q: %w", code, repository.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (r memEvents) GetActiveByCode(ctx context.Context, code string) (*models.Event, error) {
	e, err := r.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, fmt.Errorf("event %q: %w", code, repository.ErrNotFound)
	}
	return e, nil
}

func (r memEvents) LastActivity(_ context.Context, event *models.Event) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *time.Time
	for _, c := range r.commands {
		if strings.EqualFold(c.EventCode, event.Code) && (last == nil || c.CreatedAt.After(*last)) {
			t := c.CreatedAt
			last = &t
		}
	}
	return last, nil
}

func (r memAttendees) ListByAudience(_ context.Context, eventID int, audience models.Audience) ([]*models.Attendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Attendee
	for _, a := range r.attendees {
		if a.EventID == eventID && audience.Matches(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memAttendees) CountByAudience(ctx context.Context, eventID int, audience models.Audience) (int, error) {
	list, err := r.ListByAudience(ctx, eventID, audience)
	return len(list), err
}

func (r memMessages) Create(_ context.Context, m *models.ScheduledMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.id()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	r.messages[m.ID] = &cp
	return nil
}

func (r memMessages) GetByID(_ context.Context, id int) (*models.ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r memMessages) ShiftPending(_ context.Context, eventID int, minutes int, now time.Time, _ time.Time) ([]repository.ShiftedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shiftErr != nil {
		return nil, r.shiftErr
	}
	var out []repository.ShiftedMessage
	for _, id := range r.sortedIDs() {
		m := r.messages[id]
		if m.EventID != eventID || !m.IsShiftable() {
			continue
		}
		prev := m.ScheduledTime
		m.ScheduledTime, _ = shiftTime(prev, minutes, now)
		out = append(out, repository.ShiftedMessage{ID: m.ID, Previous: prev, Scheduled: m.ScheduledTime})
	}
	return out, nil
}

func (r memMessages) CountShiftable(_ context.Context, eventID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.EventID == eventID && m.IsShiftable() {
			n++
		}
	}
	return n, nil
}

func (r memMessages) ListDue(_ context.Context, now time.Time, limit int) ([]*models.ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduledMessage
	for _, id := range r.sortedIDs() {
		m := r.messages[id]
		if m.IsDue(now) && len(out) < limit {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memMessages) Claim(_ context.Context, id int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || !m.IsDue(now) {
		return false, nil
	}
	t := now
	m.ActualSendTime = &t
	return true, nil
}

func (r memMessages) TransitionStatus(_ context.Context, id int, from, to models.MessageStatus, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("invalid message transition %s -> %s", from, to)
	}
	m, ok := r.messages[id]
	if !ok || m.Status != from {
		return repository.ErrStaleTransition
	}
	m.Status = to
	if errorMessage != nil {
		m.ErrorMessage = errorMessage
	}
	return nil
}

func (r memMessages) FailStale(_ context.Context, claimedBefore time.Time, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Status == models.MessageStatusPending && m.ActualSendTime != nil && m.ActualSendTime.Before(claimedBefore) {
			m.Status = models.MessageStatusFailed
			reason := reason
			m.ErrorMessage = &reason
			n++
		}
	}
	return n, nil
}

func (r memMessages) List(_ context.Context, f repository.MessageFilters) ([]*models.ScheduledMessage, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduledMessage
	for _, id := range r.sortedIDs() {
		m := r.messages[id]
		if m.EventID == f.EventID && (f.Status == nil || m.Status == *f.Status) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (r memMessages) ListUpcoming(_ context.Context, eventID int, limit int) ([]*models.ScheduledMessage, error) {
	status := models.MessageStatusPending
	list, _, err := r.List(context.Background(), repository.MessageFilters{EventID: eventID, Status: &status})
	sort.Slice(list, func(i, j int) bool { return list[i].ScheduledTime.Before(list[j].ScheduledTime) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, err
}

func (r memMessages) ListFailed(_ context.Context, eventID int, limit int) ([]*models.ScheduledMessage, error) {
	status := models.MessageStatusFailed
	list, _, err := r.List(context.Background(), repository.MessageFilters{EventID: eventID, Status: &status})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, err
}

func (r memMessages) Stats(_ context.Context, eventID int) (models.EventStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s models.EventStats
	for _, m := range r.messages {
		if m.EventID != eventID {
			continue
		}
		s.Total++
		switch m.Status {
		case models.MessageStatusPending:
			s.Pending++
		case models.MessageStatusSent:
			s.Sent++
		case models.MessageStatusDelivered:
			s.Delivered++
		case models.MessageStatusFailed:
			s.Failed++
		}
	}
	s.ComputeDeliveryRate()
	return s, nil
}

func (s *memStore) sortedIDs() []int {
	ids := make([]int, 0, len(s.messages))
	for id := range s.messages {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (r memDeliveries) Create(_ context.Context, d *models.MessageDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deliveryErr != nil {
		return r.deliveryErr
	}
	d.ID = r.id()
	cp := *d
	r.deliveries[d.ID] = &cp
	return nil
}

func (r memDeliveries) GetByProviderID(_ context.Context, providerID string) (*models.MessageDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deliveries {
		if d.ProviderMessageID != nil && *d.ProviderMessageID == providerID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("delivery %q: %w", providerID, repository.ErrNotFound)
}

func (r memDeliveries) Resolve(_ context.Context, id int, status models.DeliveryStatus, errorMessage *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok || d.Status != models.DeliveryStatusSent {
		return false, nil
	}
	d.Status = status
	d.ErrorMessage = errorMessage
	return true, nil
}

func (r memDeliveries) Tally(_ context.Context, messageID int) (models.DeliveryTally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t models.DeliveryTally
	for _, d := range r.deliveries {
		if d.MessageID != messageID {
			continue
		}
		switch d.Status {
		case models.DeliveryStatusSent:
			t.Sent++
		case models.DeliveryStatusDelivered:
			t.Delivered++
		case models.DeliveryStatusFailed:
			t.Failed++
		}
	}
	return t, nil
}

func (r memDeliveries) ListByMessage(_ context.Context, messageID int) ([]*models.MessageDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.MessageDelivery
	for _, d := range r.deliveries {
		if d.MessageID == messageID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memCommands) Create(_ context.Context, c *models.SMSCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commandErr != nil {
		return r.commandErr
	}
	// mirror the VARCHAR(32) columns
	if utf8.RuneCountInString(c.AdminPhone) > 32 || utf8.RuneCountInString(c.EventCode) > 32 {
		return errors.New("pq: value too long for type character varying(32)")
	}
	c.ID = r.id()
	c.CreatedAt = time.Now()
	cp := *c
	r.commands = append(r.commands, &cp)
	return nil
}

func (r memCommands) List(_ context.Context, f repository.CommandFilters) ([]*models.SMSCommand, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SMSCommand
	for i := len(r.commands) - 1; i >= 0; i-- {
		c := r.commands[i]
		if f.EventCode == "" || strings.EqualFold(c.EventCode, f.EventCode) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

// transactions

type memTx struct{ *memStore }

func (t memTx) Messages() repository.MessageRepository { return memMessages{t.memStore} }
func (t memTx) Commands() repository.CommandRepository { return memCommands{t.memStore} }

type memTransactor struct{ *memStore }

func (t memTransactor) WithinTx(_ context.Context, fn func(tx repository.Tx) error) error {
	t.mu.Lock()
	messages, commands := t.snapshot()
	t.mu.Unlock()

	if err := fn(memTx{t.memStore}); err != nil {
		t.mu.Lock()
		t.restore(messages, commands)
		t.mu.Unlock()
		return err
	}
	return nil
}

// fakeTransport accepts every send except numbers listed in reject
type fakeTransport struct {
	mu     sync.Mutex
	reject map[string]bool
	sent   []string
	seq    int

	beforeSend func(to string)
}

func newFakeTransport(reject ...string) *fakeTransport {
	t := &fakeTransport{reject: map[string]bool{}}
	for _, p := range reject {
		t.reject[p] = true
	}
	return t
}

func (t *fakeTransport) Send(_ context.Context, to, _ string) (string, error) {
	if t.beforeSend != nil {
		t.beforeSend(to)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reject[to] {
		return "", &TransportError{Phone: to, Reason: "invalid phone number", Err: errors.New("rejected")}
	}
	t.seq++
	t.sent = append(t.sent, to)
	return fmt.Sprintf("SM%04d", t.seq), nil
}

func (t *fakeTransport) recipients() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}
