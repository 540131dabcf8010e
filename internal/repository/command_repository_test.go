package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsms/internal/models"
)

func TestCommandCreate(t *testing.T) {
	t.Run("with params", func(t *testing.T) {
		db, mock := newMockDB(t)
		now := time.Now()
		cmd := &models.SMSCommand{
			AdminPhone:   "+15550001111",
			EventCode:    "EXPO25",
			RawCommand:   "EXPO25 DELAY 15",
			CommandType:  models.CommandDelay,
			ParsedParams: json.RawMessage(`{"minutes":15}`),
			Executed:     true,
			Success:      true,
			ResponseText: "Delayed 2 pending message(s) for EXPO25 by 15 minute(s).",
		}

		mock.ExpectQuery(`INSERT INTO sms_commands`).
			WithArgs(cmd.AdminPhone, cmd.EventCode, cmd.RawCommand, cmd.CommandType, `{"minutes":15}`, true, true, cmd.ResponseText).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, now))

		require.NoError(t, NewCommandRepository(db).Create(context.Background(), cmd))
		assert.Equal(t, 11, cmd.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unparsed command stores null params", func(t *testing.T) {
		db, mock := newMockDB(t)
		cmd := &models.SMSCommand{
			AdminPhone:   "+15550001111",
			RawCommand:   "hello",
			CommandType:  models.CommandUnknown,
			ResponseText: "unrecognized command",
		}

		mock.ExpectQuery(`INSERT INTO sms_commands`).
			WithArgs(cmd.AdminPhone, "", "hello", models.CommandUnknown, nil, false, false, "unrecognized command").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(12, time.Now()))

		require.NoError(t, NewCommandRepository(db).Create(context.Background(), cmd))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCommandList_ByEvent(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sms_commands WHERE UPPER\(event_code\) = UPPER\(\$1\)`).
		WithArgs("EXPO25").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM sms_commands WHERE .* LIMIT \$2 OFFSET \$3`).
		WithArgs("EXPO25", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "admin_phone", "event_code", "raw_command", "command_type",
			"parsed_params", "executed", "success", "response_text", "created_at"}).
			AddRow(1, "+15550001111", "EXPO25", "EXPO25 STATUS", "STATUS", nil, true, true, "ok", now))

	commands, total, err := NewCommandRepository(db).List(context.Background(), CommandFilters{EventCode: "EXPO25", Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, commands, 1)
	assert.Equal(t, models.CommandStatus, commands[0].CommandType)
	assert.Nil(t, commands[0].ParsedParams)
}
