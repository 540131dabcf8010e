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

func TestDeliveryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	sid := "SM123"

	d := &models.MessageDelivery{MessageID: 1, AttendeeID: 10, Phone: "+15550000010", ProviderMessageID: &sid, Status: models.DeliveryStatusSent}

	mock.ExpectQuery(`INSERT INTO message_deliveries`).
		WithArgs(1, 10, "+15550000010", &sid, models.DeliveryStatusSent, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(100, now, now))

	require.NoError(t, NewDeliveryRepository(db).Create(context.Background(), d))
	assert.Equal(t, 100, d.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryCreate_Error(t *testing.T) {
	db, mock := newMockDB(t)
	reason := "invalid number"

	mock.ExpectQuery(`INSERT INTO message_deliveries`).
		WillReturnError(errors.New("connection reset"))

	err := NewDeliveryRepository(db).Create(context.Background(), &models.MessageDelivery{
		MessageID: 1, AttendeeID: 11, Phone: "+15550000011", Status: models.DeliveryStatusFailed, ErrorMessage: &reason,
	})
	assert.ErrorContains(t, err, "failed to create delivery")
}

func TestDeliveryResolve(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeliveryRepository(db)

	mock.ExpectExec(`UPDATE message_deliveries`).
		WithArgs(100, models.DeliveryStatusDelivered, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Resolve(context.Background(), 100, models.DeliveryStatusDelivered, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE message_deliveries`).
		WithArgs(100, models.DeliveryStatusFailed, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Resolve(context.Background(), 100, models.DeliveryStatusFailed, nil)
	require.NoError(t, err)
	assert.False(t, ok, "already resolved deliveries are left alone")

	_, err = repo.Resolve(context.Background(), 100, models.DeliveryStatusSent, nil)
	assert.Error(t, err)
}

func TestDeliveryGetByProviderID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM message_deliveries\s+WHERE provider_message_id = \$1`).
		WithArgs("SMnope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewDeliveryRepository(db).GetByProviderID(context.Background(), "SMnope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeliveryTally(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM message_deliveries\s+WHERE message_id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"sent", "delivered", "failed"}).AddRow(0, 2, 1))

	tally, err := NewDeliveryRepository(db).Tally(context.Background(), 1)
	require.NoError(t, err)
	status, done := tally.Resolve()
	assert.True(t, done)
	assert.Equal(t, models.MessageStatusDelivered, status)
}
