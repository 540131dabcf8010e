package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsms/internal/models"
)

func TestShiftPending_ReturnsMovedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clampTo := now.Add(time.Minute)

	rows := sqlmock.NewRows([]string{"id", "old_time", "scheduled_time"}).
		AddRow(1, now.Add(time.Hour), now.Add(time.Hour+15*time.Minute)).
		AddRow(2, now.Add(2*time.Hour), now.Add(2*time.Hour+15*time.Minute))

	mock.ExpectQuery(`WITH target AS .* FOR UPDATE .* UPDATE scheduled_messages m`).
		WithArgs(7, 15, now, clampTo).
		WillReturnRows(rows)

	shifted, err := repo.ShiftPending(context.Background(), 7, 15, now, clampTo)
	require.NoError(t, err)
	require.Len(t, shifted, 2)
	assert.Equal(t, 1, shifted[0].ID)
	assert.Equal(t, 15*time.Minute, shifted[0].Scheduled.Sub(shifted[0].Previous))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim(t *testing.T) {
	now := time.Now()

	t.Run("wins", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE scheduled_messages\s+SET actual_send_time`).
			WithArgs(5, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := NewMessageRepository(db).Claim(context.Background(), 5, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("lost race", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE scheduled_messages\s+SET actual_send_time`).
			WithArgs(5, now).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := NewMessageRepository(db).Claim(context.Background(), 5, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestTransitionStatus(t *testing.T) {
	t.Run("rejects transition outside the state machine", func(t *testing.T) {
		db, mock := newMockDB(t)
		err := NewMessageRepository(db).TransitionStatus(context.Background(), 1, models.MessageStatusDelivered, models.MessageStatusPending, nil)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale precondition", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE scheduled_messages`).
			WithArgs(1, models.MessageStatusPending, models.MessageStatusSent, nil).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewMessageRepository(db).TransitionStatus(context.Background(), 1, models.MessageStatusPending, models.MessageStatusSent, nil)
		assert.True(t, errors.Is(err, ErrStaleTransition))
	})

	t.Run("applies", func(t *testing.T) {
		db, mock := newMockDB(t)
		reason := "transport rejected all recipients"
		mock.ExpectExec(`UPDATE scheduled_messages`).
			WithArgs(1, models.MessageStatusPending, models.MessageStatusFailed, &reason).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewMessageRepository(db).TransitionStatus(context.Background(), 1, models.MessageStatusPending, models.MessageStatusFailed, &reason)
		assert.NoError(t, err)
	})
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT .* FROM scheduled_messages WHERE id = \$1`).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewMessageRepository(db).GetByID(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStats_ComputesDeliveryRate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`COUNT\(\*\) FILTER`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "sent", "delivered", "failed"}).
			AddRow(10, 2, 2, 3, 3))

	stats, err := NewMessageRepository(db).Stats(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.InDelta(t, 0.5, stats.DeliveryRate, 0.0001)
}

func TestList_StatusFilterAndPagination(t *testing.T) {
	db, mock := newMockDB(t)
	status := models.MessageStatusFailed
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scheduled_messages WHERE event_id = \$1 AND status = \$2`).
		WithArgs(1, status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	cols := []string{"id", "event_id", "message_type", "message_category", "content", "audience",
		"scheduled_time", "actual_send_time", "status", "error_message", "created_at", "updated_at"}
	mock.ExpectQuery(`LIMIT \$3 OFFSET \$4`).
		WithArgs(1, status, 20, 20).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(9, 1, "announcement", "operator", "hi", "all", now, now, "failed", "boom", now, now))

	messages, total, err := NewMessageRepository(db).List(context.Background(), MessageFilters{
		EventID: 1, Status: &status, Page: 2, PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	require.Len(t, messages, 1)
	assert.Equal(t, models.AudienceAll, messages[0].Audience)
	assert.Equal(t, models.MessageStatusFailed, messages[0].Status)
	require.NotNil(t, messages[0].ErrorMessage)
	assert.Equal(t, "boom", *messages[0].ErrorMessage)
}

func TestPageBounds(t *testing.T) {
	limit, offset := pageBounds(0, 0)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	limit, offset = pageBounds(3, 500)
	assert.Equal(t, 100, limit)
	assert.Equal(t, 200, offset)
}

// Integration: requires TEST_DATABASE_URL with migrations applied
func TestShiftPending_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	var eventID int
	err := db.QueryRowContext(ctx, `
		INSERT INTO events (code, name, event_date) VALUES ('ITEST', 'Integration', NOW())
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`).Scan(&eventID)
	require.NoError(t, err)
	defer db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, eventID)

	repo := NewMessageRepository(db)
	now := time.Now().UTC().Truncate(time.Second)
	soon := &models.ScheduledMessage{EventID: eventID, MessageType: "announcement", MessageCategory: "operator",
		Content: "doors open", Audience: models.AudienceAll, ScheduledTime: now.Add(30 * time.Minute)}
	require.NoError(t, repo.Create(ctx, soon))

	shifted, err := repo.ShiftPending(ctx, eventID, -9999, now, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, shifted, 1)
	assert.True(t, shifted[0].Scheduled.Equal(now.Add(time.Minute)))
}
