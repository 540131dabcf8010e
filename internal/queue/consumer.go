package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"eventsms/internal/models"
)

const (
	// DefaultMaxAttempts bounds how often one report is handled before it is dropped
	DefaultMaxAttempts = 5
	defaultRetryDelay  = 2 * time.Second
)

// ErrMalformed marks a queued body that can never be processed
var ErrMalformed = errors.New("malformed delivery callback")

// CallbackHandler processes one delivery report
type CallbackHandler func(ctx context.Context, cb *models.DeliveryCallback) error

// Consumer consumes delivery callbacks from RabbitMQ
type Consumer struct {
	conn        *Connection
	publisher   *Publisher
	queueName   string
	handler     CallbackHandler
	maxAttempts int
	retryDelay  time.Duration
	log         *zap.Logger
	stopChan    chan struct{}
	doneChan    chan struct{}
}

// NewConsumer creates a new consumer instance
func NewConsumer(conn *Connection, queueName string, handler CallbackHandler, log *zap.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	// failed reports are re-published to the same queue
	publisher, err := NewPublisher(conn, queueName)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		conn:        conn,
		publisher:   publisher,
		queueName:   queueName,
		handler:     handler,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		log:         log,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}, nil
}

// Start starts consuming messages from the queue
func (c *Consumer) Start() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	// one report at a time
	err = ch.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual acknowledgement)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		defer close(c.doneChan)

		for {
			select {
			case <-c.stopChan:
				c.log.Info("Consumer stopping")
				return
			case d, ok := <-msgs:
				if !ok {
					c.log.Warn("Delivery channel closed")
					return
				}
				c.handle(d)
			}
		}
	}()

	c.log.Info("Consumer started", zap.String("queue", c.queueName))
	return nil
}

// Stop stops consuming messages gracefully
func (c *Consumer) Stop() error {
	close(c.stopChan)
	<-c.doneChan

	c.log.Info("Consumer stopped")
	return nil
}

func (c *Consumer) handle(d amqp.Delivery) {
	err := c.processMessage(d)
	if err == nil {
		d.Ack(false)
		return
	}

	attempts := attemptsOf(d.Headers) + 1
	log := c.log.With(zap.Int32("attempt", attempts), zap.Error(err))

	if errors.Is(err, ErrMalformed) || int(attempts) >= c.maxAttempts {
		log.Error("Dropping delivery callback")
		d.Nack(false, false)
		return
	}

	// A report can arrive before the send pass has recorded its delivery,
	// so retry after a pause instead of requeueing straight away.
	select {
	case <-time.After(c.retryDelay):
	case <-c.stopChan:
		d.Nack(false, true)
		return
	}

	if perr := c.publisher.publish(context.Background(), d.Body, attempts); perr != nil {
		log.Warn("Failed to re-publish delivery callback, requeueing", zap.NamedError("publish_error", perr))
		d.Nack(false, true)
		return
	}
	log.Warn("Delivery callback failed, retrying")
	d.Ack(false)
}

// processMessage processes a single message
func (c *Consumer) processMessage(d amqp.Delivery) error {
	cb, err := decodeCallback(d.Body)
	if err != nil {
		return err
	}

	if err := c.handler(context.Background(), cb); err != nil {
		return fmt.Errorf("handler failed: %w", err)
	}
	return nil
}

func decodeCallback(body []byte) (*models.DeliveryCallback, error) {
	var cb models.DeliveryCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if cb.ProviderMessageID == "" {
		return nil, fmt.Errorf("%w: missing provider message id", ErrMalformed)
	}
	return &cb, nil
}

func attemptsOf(headers amqp.Table) int32 {
	switch v := headers[attemptsHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	}
	return 0
}
