package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eventsms/internal/models"
)

// Transport hands one SMS to the delivery provider and returns the
// provider's message id.
type Transport interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// CallbackSink receives simulated provider delivery reports
type CallbackSink interface {
	PublishCallback(ctx context.Context, cb *models.DeliveryCallback) error
}

// SenderService simulates an SMS provider for local runs
type SenderService struct {
	successRate  float64 // 0.0 to 1.0 (e.g., 0.95 = 95% success)
	deliveryRate float64
	latency      time.Duration
	reportAfter  time.Duration
	sink         CallbackSink
	log          *zap.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

// NewSenderService creates a simulated transport.
// successRate: probability the provider accepts a send (0.0 to 1.0)
func NewSenderService(successRate float64, log *zap.Logger) *SenderService {
	return &SenderService{
		successRate:  clampRate(successRate),
		deliveryRate: 1.0,
		latency:      50 * time.Millisecond,
		reportAfter:  2 * time.Second,
		log:          log,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithCallbacks makes accepted sends report delivered or undelivered to
// sink after a short delay, the way a real provider would.
func (s *SenderService) WithCallbacks(sink CallbackSink, deliveryRate float64) *SenderService {
	s.sink = sink
	s.deliveryRate = clampRate(deliveryRate)
	return s
}

// Send simulates sending an SMS message
func (s *SenderService) Send(ctx context.Context, to, body string) (string, error) {
	if s.latency > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.jitter()):
		}
	}

	s.mu.Lock()
	success := s.rand.Float64() < s.successRate
	delivered := s.rand.Float64() < s.deliveryRate
	failure := simulatedFailures[s.rand.Intn(len(simulatedFailures))]
	s.mu.Unlock()

	if !success {
		return "", &TransportError{
			Phone:  to,
			Reason: failure,
			Err:    fmt.Errorf("failed to send SMS to %s: %s", to, failure),
		}
	}

	id := "sim-" + uuid.NewString()
	if s.sink != nil {
		s.report(id, delivered)
	}
	return id, nil
}

var simulatedFailures = []string{
	"network timeout",
	"invalid phone number",
	"rate limit exceeded",
	"service temporarily unavailable",
	"insufficient balance",
}

func (s *SenderService) report(id string, delivered bool) {
	cb := &models.DeliveryCallback{ProviderMessageID: id, Status: "delivered"}
	if !delivered {
		cb.Status = "undelivered"
		cb.ErrorCode = "30003"
		cb.ErrorMessage = "Unreachable destination handset"
	}

	time.AfterFunc(s.reportAfter, func() {
		cb.ReceivedAt = time.Now().UTC()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sink.PublishCallback(ctx, cb); err != nil {
			s.log.Warn("Failed to publish simulated delivery report",
				zap.String("provider_message_id", id), zap.Error(err))
		}
	})
}

func (s *SenderService) jitter() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency + time.Duration(s.rand.Int63n(int64(3*s.latency)))
}

func clampRate(rate float64) float64 {
	if rate < 0.0 {
		return 0.0
	}
	if rate > 1.0 {
		return 1.0
	}
	return rate
}
