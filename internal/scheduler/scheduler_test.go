package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eventsms/internal/service"
)

func TestNew_InvalidArgs(t *testing.T) {
	t.Parallel()

	s, err := New(0, func(context.Context) {}, nil)
	assert.Error(t, err)
	assert.Nil(t, s)

	s, err = New(100*time.Millisecond, nil, nil)
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestScheduler_StartStop(t *testing.T) {
	var calls atomic.Int64

	s, err := New(10*time.Millisecond, func(context.Context) {
		calls.Add(1)
	}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, s.IsRunning())
	assert.True(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.Start(), "already running")

	// there is an immediate tick on Start
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	assert.True(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.False(t, s.Stop(), "already stopped")

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no ticks after Stop")

	// restartable
	assert.True(t, s.Start())
	assert.True(t, s.Stop())
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	var calls atomic.Int64

	s, err := New(5*time.Millisecond, func(context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	}, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

type runnerFunc func(ctx context.Context) (*service.PassResult, error)

func (f runnerFunc) RunPass(ctx context.Context) (*service.PassResult, error) {
	return f(ctx)
}

func TestDeliveryTick(t *testing.T) {
	t.Run("pass survives cancellation once started", func(t *testing.T) {
		var sawCancel bool
		tick := DeliveryTick(runnerFunc(func(ctx context.Context) (*service.PassResult, error) {
			sawCancel = ctx.Err() != nil
			return &service.PassResult{Due: 1, Claimed: 1, Sent: 1}, nil
		}), zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		tick(ctx)
		cancel()
		assert.False(t, sawCancel)
	})

	t.Run("no pass after stop", func(t *testing.T) {
		var ran bool
		tick := DeliveryTick(runnerFunc(func(ctx context.Context) (*service.PassResult, error) {
			ran = true
			return &service.PassResult{}, nil
		}), zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		tick(ctx)
		assert.False(t, ran)
	})

	t.Run("errors are logged not raised", func(t *testing.T) {
		tick := DeliveryTick(runnerFunc(func(ctx context.Context) (*service.PassResult, error) {
			return nil, errors.New("db down")
		}), zap.NewNop())

		assert.NotPanics(t, func() { tick(context.Background()) })
	})
}
