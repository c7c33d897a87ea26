package events

import (
	"context"

	"github.com/testme/testme-backend/internal/booking/domain"
	"github.com/testme/testme-backend/pkg/logger"
	"github.com/testme/testme-backend/pkg/messaging"
)

// Source identifies this service on published events
const Source = "booking-service"

type publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// BookingEventPublisher publishes booking-related events
type BookingEventPublisher struct {
	publisher publisher
	logger    *logger.Logger
}

// NewBookingEventPublisher creates a publisher on the booking exchange
func NewBookingEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*BookingEventPublisher, error) {
	p, err := messaging.NewPublisher(rmq, messaging.ExchangeBookingEvents, Source, log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(p, log), nil
}

// NewWithPublisher wraps an existing publisher
func NewWithPublisher(p publisher, log *logger.Logger) *BookingEventPublisher {
	return &BookingEventPublisher{publisher: p, logger: log}
}

// PublishBookingCreated publishes a booking created event. The error is
// returned so the caller can notify the admin another way.
func (p *BookingEventPublisher) PublishBookingCreated(ctx context.Context, b *domain.Booking, locale string) error {
	data := messaging.BookingCreatedEvent{
		BookingID:    b.ID,
		Name:         b.Name,
		Phone:        b.Phone,
		CarType:      deref(b.CarType),
		LicensePlate: deref(b.LicensePlate),
		Service:      b.Service,
		Date:         b.Date,
		Time:         b.Time,
		Locale:       locale,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBookingCreated, data); err != nil {
		p.logger.Error().Err(err).Str("booking_id", b.ID).Msg("failed to publish booking created event")
		return err
	}
	return nil
}

// PublishStatusChanged publishes a status change
func (p *BookingEventPublisher) PublishStatusChanged(ctx context.Context, id string, from, to domain.Status) {
	if p == nil {
		return
	}

	data := messaging.BookingStatusChangedEvent{
		BookingID: id,
		OldStatus: string(from),
		NewStatus: string(to),
	}

	if err := p.publisher.Publish(ctx, messaging.EventBookingStatusChanged, data); err != nil {
		p.logger.Error().Err(err).Str("booking_id", id).Msg("failed to publish status changed event")
	}
}

// PublishReminderSent publishes a sent reminder
func (p *BookingEventPublisher) PublishReminderSent(ctx context.Context, id, expiry string) {
	if p == nil {
		return
	}

	data := messaging.ReminderSentEvent{BookingID: id, LicenseExpiry: expiry}
	if err := p.publisher.Publish(ctx, messaging.EventReminderSent, data); err != nil {
		p.logger.Error().Err(err).Str("booking_id", id).Msg("failed to publish reminder sent event")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
