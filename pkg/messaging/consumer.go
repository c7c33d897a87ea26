package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/testme/testme-backend/pkg/logger"
)

// defaultMaxAttempts is how many times a failing event is handled before it
// is parked in the DLQ.
const defaultMaxAttempts = 3

// HeaderAttempts counts how often a message has already been handled
const HeaderAttempts = "x-attempts"

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer dispatches events from one queue to handlers by event type
type Consumer struct {
	rmq         *RabbitMQ
	queueName   string
	handlers    map[string]MessageHandler
	maxAttempts int
	requeue     func(ctx context.Context, body []byte, headers amqp.Table) error
	logger      *logger.Logger
}

// NewConsumer declares the queue with its DLQ and returns a consumer for it
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if err := rmq.DeclareDeadLetterQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare dead letter queue for %s: %w", queueName, err)
	}
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	c := &Consumer{
		rmq:         rmq,
		queueName:   queueName,
		handlers:    make(map[string]MessageHandler),
		maxAttempts: defaultMaxAttempts,
		logger:      log.WithComponent("consumer"),
	}
	c.requeue = c.republish
	return c, nil
}

// SetMaxAttempts caps how many times a failing event is handled. Values
// below 1 are ignored.
func (c *Consumer) SetMaxAttempts(n int) {
	if n >= 1 {
		c.maxAttempts = n
	}
}

// Subscribe binds the queue to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start consumes in a background goroutine until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Str("queue", c.queueName).Msg("message channel closed")
					return
				}
				c.dispatch(ctx, &msg)
			}
		}
	}()

	return nil
}

// acknowledger is the part of amqp.Delivery the dispatch decision needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
}

func (c *Consumer) dispatch(ctx context.Context, msg *amqp.Delivery) {
	c.handle(ctx, msg.Body, msg.Headers, msg)
}

func (c *Consumer) handle(ctx context.Context, body []byte, headers amqp.Table, ack acknowledger) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		_ = ack.Reject(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		_ = ack.Ack(false)
		return
	}

	err := handler(ctx, &event)
	if err == nil {
		_ = ack.Ack(false)
		return
	}

	attempts := attemptCount(headers) + 1
	log := c.logger.WithCorrelationID(event.CorrelationID).With().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Int("attempts", attempts).
		Logger()
	log.Error().Err(err).Msg("failed to process event")

	if attempts >= c.maxAttempts {
		log.Warn().Str("dlq", DeadLetterQueueName(c.queueName)).Msg("giving up on event")
		_ = ack.Reject(false)
		return
	}

	// the broker never touches headers on a plain requeue, so the retry goes
	// back through the queue as a new message carrying the count
	next := amqp.Table{}
	for k, v := range headers {
		next[k] = v
	}
	next[HeaderAttempts] = int32(attempts)

	if err := c.requeue(ctx, body, next); err != nil {
		log.Error().Err(err).Msg("failed to requeue event")
		_ = ack.Reject(false)
		return
	}
	_ = ack.Ack(false)
}

func (c *Consumer) republish(ctx context.Context, body []byte, headers amqp.Table) error {
	return c.rmq.Channel().PublishWithContext(ctx,
		"",          // default exchange
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         body,
		},
	)
}

// attemptCount is the larger of our own counter and the broker's x-death count
func attemptCount(headers amqp.Table) int {
	n := toInt(headers[HeaderAttempts])
	if d := deliveryCount(headers); d > n {
		n = d
	}
	return n
}

func deliveryCount(headers amqp.Table) int {
	deaths, ok := headers["x-death"].([]any)
	if !ok {
		return 0
	}
	for _, death := range deaths {
		if d, ok := death.(amqp.Table); ok {
			return toInt(d["count"])
		}
	}
	return 0
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}
