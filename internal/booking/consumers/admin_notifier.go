package consumers

import (
	"context"

	"github.com/testme/testme-backend/internal/sms"
	"github.com/testme/testme-backend/pkg/logger"
	"github.com/testme/testme-backend/pkg/messaging"
)

// QueueAdminNotifications receives booking events for the admin SMS
const QueueAdminNotifications = "booking-service.admin-notifications"

type notifier interface {
	NotifyNewBooking(ctx context.Context, locale string, d sms.BookingDetails) (*sms.Receipt, error)
}

// AdminNotifier texts the admin for every new booking
type AdminNotifier struct {
	consumer *messaging.Consumer
	notifier notifier
	logger   *logger.Logger
}

// NewAdminNotifier creates a consumer bound to booking.created
func NewAdminNotifier(rmq *messaging.RabbitMQ, n notifier, log *logger.Logger) (*AdminNotifier, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueAdminNotifications, log)
	if err != nil {
		return nil, err
	}

	// the relay already retries the send once; a second failure goes to the DLQ
	consumer.SetMaxAttempts(1)

	if err := consumer.Subscribe(messaging.ExchangeBookingEvents, messaging.EventBookingCreated); err != nil {
		return nil, err
	}

	c := &AdminNotifier{
		consumer: consumer,
		notifier: n,
		logger:   log.WithComponent("admin-notifier"),
	}
	consumer.RegisterHandler(messaging.EventBookingCreated, c.handleBookingCreated)

	return c, nil
}

// Start starts consuming messages
func (c *AdminNotifier) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *AdminNotifier) handleBookingCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.BookingCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("booking_id", data.BookingID).
		Msg("received booking created event")

	receipt, err := c.notifier.NotifyNewBooking(ctx, data.Locale, sms.BookingDetails{
		Name:    data.Name,
		Phone:   data.Phone,
		CarType: data.CarType,
		Service: data.Service,
		Date:    data.Date,
		Time:    data.Time,
	})
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("booking_id", data.BookingID).
		Str("provider", receipt.Provider).
		Msg("admin notified of new booking")
	return nil
}
