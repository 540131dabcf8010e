package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsms/internal/handler"
	"eventsms/internal/models"
	"eventsms/internal/polling"
)

func TestAPIClient_Submit(t *testing.T) {
	var got handler.SubmitCommandRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/commands", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		handler.WriteOK(w, handler.SubmitCommandResponse{Success: true, SMSReply: "Delayed 2 pending message(s) for EXPO25 by 15 minute(s)."})
	}))
	defer srv.Close()

	coordinator := polling.New()
	ok := submit(context.Background(), newAPIClient(srv.URL+"/"), coordinator, "", "EXPO25", "DELAY 15")

	assert.True(t, ok)
	assert.Equal(t, "EXPO25", got.EventCode)
	assert.Equal(t, "DELAY 15", got.CommandText)
	assert.Equal(t, polling.StateActive, coordinator.State())
}

func TestAPIClient_DetailError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteNotFoundError(w, "event", "NOPE")
	}))
	defer srv.Close()

	_, err := newAPIClient(srv.URL).Detail(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESOURCE_NOT_FOUND")
}

func TestSummary(t *testing.T) {
	detail := &models.EventDetail{
		Event: models.Event{Code: "EXPO25"},
		Stats: models.EventStats{Pending: 2, Sent: 1, Delivered: 3, Failed: 1, DeliveryRate: 0.75},
		Upcoming: []*models.ScheduledMessage{
			{MessageType: "reminder", ScheduledTime: time.Now().Add(time.Hour)},
		},
	}

	line := summary(detail, polling.New())
	assert.Contains(t, line, "EXPO25: 2 pending, 1 sent, 3 delivered, 1 failed (75.0% delivered)")
	assert.Contains(t, line, "next reminder")
	assert.NotContains(t, line, "live until")
}
