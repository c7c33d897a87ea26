package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testme/testme-backend/pkg/logger"
)

type fakeAck struct {
	acked, nacked, rejected, requeued bool
}

func (f *fakeAck) Ack(bool) error {
	f.acked = true
	return nil
}
func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}
func (f *fakeAck) Reject(requeue bool) error {
	f.rejected, f.requeued = true, requeue
	return nil
}

type requeued struct {
	body    []byte
	headers amqp.Table
}

func newTestConsumer() (*Consumer, *[]requeued) {
	var out []requeued
	c := &Consumer{queueName: "test", handlers: map[string]MessageHandler{}, maxAttempts: defaultMaxAttempts, logger: logger.Nop()}
	c.requeue = func(_ context.Context, body []byte, headers amqp.Table) error {
		out = append(out, requeued{body: body, headers: headers})
		return nil
	}
	return c, &out
}

func eventBody(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	event, err := NewEvent(eventType, "test", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestConsumer_HandleSuccess(t *testing.T) {
	c, _ := newTestConsumer()
	var got BookingCreatedEvent
	var corr string
	c.RegisterHandler(EventBookingCreated, func(ctx context.Context, e *Event) error {
		corr = getCorrelationID(ctx)
		return e.UnmarshalData(&got)
	})

	ack := &fakeAck{}
	c.handle(context.Background(), eventBody(t, EventBookingCreated, BookingCreatedEvent{BookingID: "b1", Name: "דנה"}), nil, ack)

	assert.True(t, ack.acked)
	assert.Equal(t, "b1", got.BookingID)
	assert.Equal(t, "דנה", got.Name)
	assert.Equal(t, "corr-1", corr)
}

func TestConsumer_MalformedMessageRejected(t *testing.T) {
	ack := &fakeAck{}
	c, _ := newTestConsumer()
	c.handle(context.Background(), []byte("{not json"), nil, ack)

	assert.True(t, ack.rejected)
	assert.False(t, ack.requeued)
}

func TestConsumer_UnhandledTypeAcked(t *testing.T) {
	ack := &fakeAck{}
	c, _ := newTestConsumer()
	c.handle(context.Background(), eventBody(t, "something.else", nil), nil, ack)

	assert.True(t, ack.acked)
}

func TestConsumer_HandlerFailureRequeuesWithCount(t *testing.T) {
	c, out := newTestConsumer()
	c.RegisterHandler(EventBookingCreated, func(ctx context.Context, e *Event) error {
		return fmt.Errorf("sms gateway down")
	})
	body := eventBody(t, EventBookingCreated, BookingCreatedEvent{BookingID: "b1"})

	ack := &fakeAck{}
	c.handle(context.Background(), body, nil, ack)

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked, "never handed back to the broker unchanged")
	require.Len(t, *out, 1)
	assert.Equal(t, body, (*out)[0].body)
	assert.Equal(t, int32(1), (*out)[0].headers[HeaderAttempts])
}

func TestConsumer_FailingEventStopsAfterMaxAttempts(t *testing.T) {
	c, out := newTestConsumer()
	calls := 0
	c.RegisterHandler(EventBookingCreated, func(ctx context.Context, e *Event) error {
		calls++
		return fmt.Errorf("sms gateway down")
	})

	body := eventBody(t, EventBookingCreated, BookingCreatedEvent{BookingID: "b1"})
	headers := amqp.Table(nil)
	var last *fakeAck
	for i := 0; i < 10; i++ {
		last = &fakeAck{}
		c.handle(context.Background(), body, headers, last)
		if last.rejected {
			break
		}
		headers = (*out)[len(*out)-1].headers
	}

	assert.Equal(t, defaultMaxAttempts, calls)
	assert.Len(t, *out, defaultMaxAttempts-1)
	assert.True(t, last.rejected)
	assert.False(t, last.requeued, "parked in the DLQ")
}

func TestConsumer_SetMaxAttempts(t *testing.T) {
	c, out := newTestConsumer()
	c.SetMaxAttempts(1)
	c.SetMaxAttempts(0)
	c.RegisterHandler(EventBookingCreated, func(ctx context.Context, e *Event) error {
		return fmt.Errorf("boom")
	})

	ack := &fakeAck{}
	c.handle(context.Background(), eventBody(t, EventBookingCreated, nil), nil, ack)

	assert.True(t, ack.rejected)
	assert.Empty(t, *out)
}

func TestConsumer_RequeueFailureRejects(t *testing.T) {
	c, _ := newTestConsumer()
	c.requeue = func(context.Context, []byte, amqp.Table) error { return fmt.Errorf("channel closed") }
	c.RegisterHandler(EventBookingCreated, func(ctx context.Context, e *Event) error {
		return fmt.Errorf("boom")
	})

	ack := &fakeAck{}
	c.handle(context.Background(), eventBody(t, EventBookingCreated, nil), nil, ack)

	assert.True(t, ack.rejected)
	assert.False(t, ack.requeued)
	assert.False(t, ack.acked)
}

func TestAttemptCount(t *testing.T) {
	assert.Equal(t, 0, attemptCount(nil))
	assert.Equal(t, 2, attemptCount(amqp.Table{HeaderAttempts: int32(2)}))
	assert.Equal(t, 2, attemptCount(amqp.Table{HeaderAttempts: int64(2)}))
	assert.Equal(t, 2, attemptCount(amqp.Table{
		"x-death": []any{amqp.Table{"count": int64(2), "queue": "booking-service"}},
	}))
}

func TestDeadLetterArgs(t *testing.T) {
	args := deadLetterArgs("booking-service.admin-notifications")
	assert.Equal(t, deadLetterExchange, args["x-dead-letter-exchange"])
	assert.Equal(t, "booking-service.admin-notifications", args["x-dead-letter-routing-key"])
	assert.Equal(t, "dlq.booking-service.admin-notifications", DeadLetterQueueName("booking-service.admin-notifications"))
}
