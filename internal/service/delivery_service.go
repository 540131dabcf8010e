package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"eventsms/internal/metrics"
	"eventsms/internal/models"
	"eventsms/internal/repository"
)

// StaleClaimReason is recorded on messages whose send pass never finished
const StaleClaimReason = "delivery interrupted before completion"

// PassResult summarizes one delivery worker pass
type PassResult struct {
	Due     int
	Claimed int
	Sent    int
	Failed  int
	Stale   int
}

// DeliveryService moves due messages through the transport and applies
// provider delivery reports.
type DeliveryService struct {
	messages   repository.MessageRepository
	deliveries repository.DeliveryRepository
	audience   *AudienceResolver
	transport  Transport
	batchSize  int
	staleAfter time.Duration
	now        func() time.Time
	log        *zap.Logger
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(
	messages repository.MessageRepository,
	deliveries repository.DeliveryRepository,
	audience *AudienceResolver,
	transport Transport,
	batchSize int,
	staleAfter time.Duration,
	log *zap.Logger,
) *DeliveryService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &DeliveryService{
		messages:   messages,
		deliveries: deliveries,
		audience:   audience,
		transport:  transport,
		batchSize:  batchSize,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        log,
	}
}

// RunPass sends every due message once. A failure on one message is
// recorded on that message and does not stop the pass.
func (s *DeliveryService) RunPass(ctx context.Context) (*PassResult, error) {
	start := time.Now()
	defer func() {
		metrics.DeliveryPollDuration.Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	result := &PassResult{}

	if s.staleAfter > 0 {
		stale, err := s.messages.FailStale(ctx, now.Add(-s.staleAfter), StaleClaimReason)
		if err != nil {
			return nil, err
		}
		if stale > 0 {
			s.log.Warn("Failed stale claimed messages", zap.Int("count", stale))
		}
		result.Stale = stale
	}

	due, err := s.messages.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return nil, err
	}
	result.Due = len(due)

	for _, msg := range due {
		claimed, err := s.messages.Claim(ctx, msg.ID, now)
		if err != nil {
			s.log.Error("Failed to claim message", zap.Int("message_id", msg.ID), zap.Error(err))
			continue
		}
		if !claimed {
			// another worker or a DELAY got there first
			continue
		}
		result.Claimed++

		status, err := s.deliver(ctx, msg)
		if err != nil {
			s.log.Error("Delivery failed", zap.Int("message_id", msg.ID), zap.Error(err))
		}
		switch status {
		case models.MessageStatusSent:
			result.Sent++
		case models.MessageStatusFailed:
			result.Failed++
		}
	}

	return result, nil
}

// deliver fans a claimed message out to its audience as resolved now
func (s *DeliveryService) deliver(ctx context.Context, msg *models.ScheduledMessage) (models.MessageStatus, error) {
	log := s.log.With(zap.Int("message_id", msg.ID), zap.Int("event_id", msg.EventID))

	recipients, err := s.audience.Resolve(ctx, msg.EventID, msg.Audience)
	if err != nil {
		return s.fail(ctx, msg, fmt.Sprintf("audience resolution failed: %v", err))
	}
	if len(recipients) == 0 {
		return s.fail(ctx, msg, fmt.Sprintf("no recipients matched audience %s", msg.Audience))
	}

	accepted := 0
	var lastErr error

	for _, attendee := range recipients {
		d := &models.MessageDelivery{
			MessageID:  msg.ID,
			AttendeeID: attendee.ID,
			Phone:      attendee.Phone,
		}

		providerID, err := s.transport.Send(ctx, attendee.Phone, msg.Content)
		if err != nil {
			reason := err.Error()
			var te *TransportError
			if errors.As(err, &te) {
				reason = te.Reason
			}
			d.Status = models.DeliveryStatusFailed
			d.ErrorMessage = &reason
			lastErr = err
			metrics.DeliveriesTotal.WithLabelValues("rejected").Inc()
			log.Warn("Transport rejected recipient", zap.Int("attendee_id", attendee.ID), zap.Error(err))
		} else {
			d.Status = models.DeliveryStatusSent
			d.ProviderMessageID = &providerID
			accepted++
			metrics.DeliveriesTotal.WithLabelValues("accepted").Inc()
		}

		// recorded before the next send so a provider report only has to
		// wait for one round trip
		if err := s.deliveries.Create(ctx, d); err != nil {
			// the send already happened; stop and leave the claim so the
			// message is failed as stale rather than sent twice
			log.Error("Failed to record delivery", zap.Int("attendee_id", attendee.ID), zap.Error(err))
			return models.MessageStatusPending, err
		}
	}

	if accepted == 0 {
		return s.fail(ctx, msg, fmt.Sprintf("transport rejected all %d recipient(s): %v", len(recipients), lastErr))
	}

	if err := s.messages.TransitionStatus(ctx, msg.ID, models.MessageStatusPending, models.MessageStatusSent, nil); err != nil {
		return models.MessageStatusPending, err
	}
	log.Info("Message sent", zap.Int("recipients", len(recipients)), zap.Int("accepted", accepted))

	// reports may have arrived while the message was still pending
	if err := s.settle(ctx, msg.ID); err != nil {
		log.Warn("Failed to settle message", zap.Error(err))
	}
	return models.MessageStatusSent, nil
}

func (s *DeliveryService) fail(ctx context.Context, msg *models.ScheduledMessage, reason string) (models.MessageStatus, error) {
	if err := s.messages.TransitionStatus(ctx, msg.ID, models.MessageStatusPending, models.MessageStatusFailed, &reason); err != nil {
		return models.MessageStatusPending, err
	}
	s.log.Warn("Message failed", zap.Int("message_id", msg.ID), zap.String("reason", reason))
	return models.MessageStatusFailed, nil
}

// ApplyCallback records a provider delivery report. It reports whether
// anything changed; repeated and non-terminal reports change nothing.
func (s *DeliveryService) ApplyCallback(ctx context.Context, cb *models.DeliveryCallback) (bool, error) {
	outcome, terminal := cb.Outcome()
	if !terminal {
		return false, nil
	}

	delivery, err := s.deliveries.GetByProviderID(ctx, cb.ProviderMessageID)
	if err != nil {
		return false, err
	}

	changed, err := s.deliveries.Resolve(ctx, delivery.ID, outcome, cb.Reason())
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	metrics.DeliveryCallbacksTotal.WithLabelValues(string(outcome)).Inc()

	if err := s.settle(ctx, delivery.MessageID); err != nil {
		return true, err
	}
	return true, nil
}

// settle moves a sent message to its terminal status once no delivery
// is still waiting on the provider.
func (s *DeliveryService) settle(ctx context.Context, messageID int) error {
	tally, err := s.deliveries.Tally(ctx, messageID)
	if err != nil {
		return err
	}

	final, done := tally.Resolve()
	if !done {
		return nil
	}

	var reason *string
	if final == models.MessageStatusFailed {
		r := fmt.Sprintf("all %d deliveries failed", tally.Failed)
		reason = &r
	}

	err = s.messages.TransitionStatus(ctx, messageID, models.MessageStatusSent, final, reason)
	if errors.Is(err, repository.ErrStaleTransition) {
		// not yet sent, or already settled by a concurrent report
		return nil
	}
	return err
}
