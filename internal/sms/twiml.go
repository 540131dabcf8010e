package sms

import (
	twclient "github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"
)

// Reply renders text as a TwiML messaging response
func Reply(text string) (string, error) {
	return twiml.Messages([]twiml.Element{
		&twiml.MessagingMessage{Body: text},
	})
}

// SignatureValidator checks the X-Twilio-Signature of inbound webhooks
type SignatureValidator struct {
	validator twclient.RequestValidator
}

// NewSignatureValidator creates a validator for the account's auth token
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{validator: twclient.NewRequestValidator(authToken)}
}

// Valid reports whether signature matches the request URL and form params
func (v *SignatureValidator) Valid(url string, params map[string]string, signature string) bool {
	return v.validator.Validate(url, params, signature)
}

// ValidBody checks a JSON webhook. The signature covers the URL, which
// carries the body digest in its bodySHA256 query parameter.
func (v *SignatureValidator) ValidBody(url string, body []byte, signature string) bool {
	return v.validator.ValidateBody(url, body, signature)
}
