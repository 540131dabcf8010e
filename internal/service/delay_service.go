package service

import (
	"context"
	"time"

	"eventsms/internal/repository"
)

// DelayResult reports a delay recalculation
type DelayResult struct {
	Minutes   int
	Shifted   int
	Clamped   int
	ClampedTo time.Time
	Moves     []repository.ShiftedMessage
}

// DelayRecalculator shifts an event's pending schedule
type DelayRecalculator struct {
	now func() time.Time
}

// NewDelayRecalculator creates a new delay recalculator
func NewDelayRecalculator() *DelayRecalculator {
	return &DelayRecalculator{now: time.Now}
}

// shiftTime applies a minute offset to a scheduled time. A negative
// offset that would land before now yields now + 1 minute instead. It is
// the same rule as the CASE in ShiftPending.
func shiftTime(scheduled time.Time, minutes int, now time.Time) (time.Time, bool) {
	shifted := scheduled.Add(time.Duration(minutes) * time.Minute)
	if minutes < 0 && shifted.Before(now) {
		return now.Add(time.Minute), true
	}
	return shifted, false
}

// Shift moves every pending, unclaimed message of the event by minutes.
// messages may be bound to a transaction. A zero offset changes nothing
// and reports the current pending count.
func (d *DelayRecalculator) Shift(ctx context.Context, messages repository.MessageRepository, eventID int, minutes int) (*DelayResult, error) {
	result := &DelayResult{Minutes: minutes}

	if minutes == 0 {
		count, err := messages.CountShiftable(ctx, eventID)
		if err != nil {
			return nil, err
		}
		result.Shifted = count
		return result, nil
	}

	now := d.now()
	clampTo := now.Add(time.Minute)

	moves, err := messages.ShiftPending(ctx, eventID, minutes, now, clampTo)
	if err != nil {
		return nil, err
	}

	for _, m := range moves {
		if _, clamped := shiftTime(m.Previous, minutes, now); clamped {
			result.Clamped++
		}
	}

	result.Shifted = len(moves)
	result.Moves = moves
	if result.Clamped > 0 {
		result.ClampedTo = clampTo
	}
	return result, nil
}
