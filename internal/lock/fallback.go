package lock

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// FallbackLocker uses primary, switching to secondary for a call when
// primary cannot be reached. A timeout on primary is returned as is.
type FallbackLocker struct {
	primary   Locker
	secondary Locker
	log       *zap.Logger
}

// NewFallbackLocker creates a locker that degrades from primary to secondary
func NewFallbackLocker(primary, secondary Locker, log *zap.Logger) *FallbackLocker {
	return &FallbackLocker{primary: primary, secondary: secondary, log: log}
}

func (f *FallbackLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := f.primary.Lock(ctx, key)
	if err == nil || errors.Is(err, ErrTimeout) {
		return unlock, err
	}

	f.log.Warn("Lock backend unavailable, using in-process lock", zap.String("key", key), zap.Error(err))
	return f.secondary.Lock(ctx, key)
}
