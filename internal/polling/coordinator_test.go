package polling

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCoordinator() (*Coordinator, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.Now)), clock
}

func at(t time.Time) *time.Time { return &t }

func TestCoordinator_StartsIdle(t *testing.T) {
	c, _ := newTestCoordinator()
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, c.ExpiresAt().IsZero())
}

func TestCoordinator_TouchActivatesForOneWindow(t *testing.T) {
	c, clock := newTestCoordinator()

	c.Touch()
	assert.Equal(t, StateActive, c.State())
	assert.Equal(t, clock.Now().Add(DefaultWindow), c.ExpiresAt())

	clock.Advance(DefaultWindow - time.Second)
	assert.Equal(t, StateActive, c.State())

	clock.Advance(time.Second)
	assert.Equal(t, StateIdle, c.State())
}

func TestCoordinator_TouchRestartsWindow(t *testing.T) {
	c, clock := newTestCoordinator()

	c.Touch()
	clock.Advance(8 * time.Minute)
	c.Touch()
	clock.Advance(8 * time.Minute)
	assert.Equal(t, StateActive, c.State())
}

func TestCoordinator_RecentActivityActivates(t *testing.T) {
	c, clock := newTestCoordinator()

	assert.False(t, c.ObserveActivity(nil))
	assert.False(t, c.ObserveActivity(at(clock.Now().Add(-11*time.Minute))), "too old")
	assert.Equal(t, StateIdle, c.State())

	assert.True(t, c.ObserveActivity(at(clock.Now().Add(-2*time.Minute))))
	assert.Equal(t, StateActive, c.State())
}

func TestCoordinator_SameActivityDoesNotReopenWindow(t *testing.T) {
	c, clock := newTestCoordinator()
	last := clock.Now().Add(-time.Minute)

	assert.True(t, c.ObserveActivity(&last))
	clock.Advance(DefaultWindow)
	assert.Equal(t, StateIdle, c.State())

	// polling the same detail again must not restart the refresh loop
	assert.False(t, c.ObserveActivity(&last))
	assert.Equal(t, StateIdle, c.State())
}

func TestCoordinator_ActivityDuringWindowIsAbsorbed(t *testing.T) {
	c, clock := newTestCoordinator()

	c.Touch()
	clock.Advance(5 * time.Minute)
	during := clock.Now()
	assert.False(t, c.ObserveActivity(&during), "already active")

	clock.Advance(5 * time.Minute)
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.ObserveActivity(&during))

	clock.Advance(time.Minute)
	assert.True(t, c.ObserveActivity(at(clock.Now())), "new activity is a new trigger")
}

func TestCoordinator_Watch(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	c := New(WithClock(clock.Now), WithInterval(5*time.Millisecond))

	var fetches atomic.Int64
	fetch := func(context.Context) (*time.Time, error) {
		fetches.Add(1)
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, fetch) }()

	// idle: one initial load, then nothing
	assert.Eventually(t, func() bool { return fetches.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), fetches.Load())

	// active: refreshes every interval
	c.Touch()
	assert.Eventually(t, func() bool { return fetches.Load() >= 4 }, time.Second, time.Millisecond)

	// window over: back to on-demand
	clock.Advance(DefaultWindow)
	time.Sleep(20 * time.Millisecond)
	settled := fetches.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, fetches.Load())

	c.Refresh()
	assert.Eventually(t, func() bool { return fetches.Load() == settled+1 }, time.Second, time.Millisecond)
	assert.Equal(t, StateIdle, c.State())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
