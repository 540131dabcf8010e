package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"eventsms/internal/service"
)

// TwilioTransport sends SMS through the Twilio Messages API
type TwilioTransport struct {
	client         *twilio.RestClient
	fromNumber     string
	statusCallback string
}

// NewTwilioTransport creates a transport. statusCallback, when set, is
// where Twilio posts delivery reports.
func NewTwilioTransport(accountSid, authToken, fromNumber, statusCallback string) *TwilioTransport {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioTransport{
		client:         client,
		fromNumber:     fromNumber,
		statusCallback: statusCallback,
	}
}

// Send submits one message and returns its Twilio SID
func (t *TwilioTransport) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &api.CreateMessageParams{}
	params.SetBody(body)
	params.SetFrom(t.fromNumber)
	params.SetTo(to)
	if t.statusCallback != "" {
		params.SetStatusCallback(t.statusCallback)
	}

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		reason := err.Error()
		var restErr *twclient.TwilioRestError
		if errors.As(err, &restErr) {
			reason = fmt.Sprintf("%d: %s", restErr.Code, restErr.Message)
		}
		return "", &service.TransportError{Phone: to, Reason: reason, Err: err}
	}

	if resp.Sid == nil {
		return "", &service.TransportError{Phone: to, Reason: "provider returned no message id"}
	}
	return *resp.Sid, nil
}
