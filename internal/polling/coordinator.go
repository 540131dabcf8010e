package polling

import (
	"context"
	"sync"
	"time"
)

// State is the refresh mode of an admin view
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

const (
	DefaultWindow   = 10 * time.Minute
	DefaultInterval = 10 * time.Second
)

// Fetcher reloads the event view and returns its last activity time
type Fetcher func(ctx context.Context) (lastActivity *time.Time, err error)

// Coordinator decides when an admin view refreshes itself. It is active
// for one window after a trigger and idle otherwise; while idle the view
// refreshes only on request.
type Coordinator struct {
	window   time.Duration
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	state     State
	expiresAt time.Time
	// newest activity already accounted for by a window
	seen time.Time

	wake chan struct{}
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithWindow sets how long a trigger keeps the view active
func WithWindow(d time.Duration) Option {
	return func(c *Coordinator) { c.window = d }
}

// WithInterval sets the refresh period while active
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.interval = d }
}

func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		window:   DefaultWindow,
		interval: DefaultInterval,
		now:      time.Now,
		state:    StateIdle,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current mode, expiring the window if it has run out
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// ExpiresAt returns when the active window ends, or zero when idle
func (c *Coordinator) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked() == StateIdle {
		return time.Time{}
	}
	return c.expiresAt
}

func (c *Coordinator) stateLocked() State {
	if c.state == StateActive && !c.now().Before(c.expiresAt) {
		c.state = StateIdle
		c.expiresAt = time.Time{}
	}
	return c.state
}

// Touch records an operator-initiated mutation. It always starts a fresh
// window.
func (c *Coordinator) Touch() {
	c.mu.Lock()
	now := c.now()
	c.activateLocked(now)
	if now.After(c.seen) {
		c.seen = now
	}
	c.mu.Unlock()

	c.signal()
}

// ObserveActivity feeds the last activity time reported by the server.
// Activity inside the recent window activates an idle view, once per
// distinct activity: the same timestamp seen again after the window has
// closed does not reopen it. It reports whether the view was activated.
func (c *Coordinator) ObserveActivity(last *time.Time) bool {
	if last == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !last.After(c.seen) {
		return false
	}
	c.seen = *last

	if c.stateLocked() == StateActive {
		// absorbed by the open window
		return false
	}
	if now.Sub(*last) >= c.window {
		return false
	}

	c.activateLocked(now)
	return true
}

// Refresh asks a running Watch for one reload without changing state
func (c *Coordinator) Refresh() {
	c.signal()
}

func (c *Coordinator) activateLocked(now time.Time) {
	c.state = StateActive
	c.expiresAt = now.Add(c.window)
}

func (c *Coordinator) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Watch reloads the view immediately, then every interval while active.
// While idle it waits for Touch or Refresh. It returns when ctx is done.
// Fetch errors are left to the fetcher to report; the loop keeps going.
func (c *Coordinator) Watch(ctx context.Context, fetch Fetcher) error {
	for {
		if last, err := fetch(ctx); err == nil {
			c.ObserveActivity(last)
		}

		var tick <-chan time.Time
		if c.State() == StateActive {
			timer := time.NewTimer(c.interval)
			tick = timer.C
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-tick:
			case <-c.wake:
				timer.Stop()
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}
	}
}
