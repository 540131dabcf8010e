package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"eventsms/internal/models"
)

// CallbackQueue carries provider delivery reports from the API to the worker
const CallbackQueue = "delivery_callbacks"

// attemptsHeader counts how many times a report has been handled
const attemptsHeader = "x-attempts"

// Publisher publishes delivery callbacks to RabbitMQ
type Publisher struct {
	conn      *Connection
	queueName string
}

// NewPublisher creates a new publisher instance
func NewPublisher(conn *Connection, queueName string) (*Publisher, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	if err := declare(ch, queueName); err != nil {
		return nil, err
	}

	return &Publisher{
		conn:      conn,
		queueName: queueName,
	}, nil
}

// PublishCallback queues a delivery report for the worker
func (p *Publisher) PublishCallback(ctx context.Context, cb *models.DeliveryCallback) error {
	if cb.ReceivedAt.IsZero() {
		cb.ReceivedAt = time.Now().UTC()
	}

	body, err := json.Marshal(cb)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery callback: %w", err)
	}

	return p.publish(ctx, body, 0)
}

func (p *Publisher) publish(ctx context.Context, body []byte, attempts int32) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Headers:      amqp.Table{attemptsHeader: attempts},
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish delivery callback: %w", err)
	}

	return nil
}

// Close closes the publisher (no-op, connection managed externally)
func (p *Publisher) Close() error {
	return nil
}

// declare makes sure the durable queue exists
func declare(ch *amqp.Channel, queueName string) error {
	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	return nil
}
