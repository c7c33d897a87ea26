package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status.changed"
	EventReminderSent         = "booking.reminder.sent"
)

// Exchange names
const (
	ExchangeBookingEvents = "booking.events"
)

// Event is the envelope for everything published on an exchange
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into v
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// BookingCreatedEvent is published after a booking is persisted.
// It carries what the admin notification needs so consumers do not
// have to read the store.
type BookingCreatedEvent struct {
	BookingID    string `json:"booking_id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	CarType      string `json:"car_type"`
	LicensePlate string `json:"license_plate,omitempty"`
	Service      string `json:"service"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Locale       string `json:"locale"`
}

// BookingStatusChangedEvent is published when the admin moves a booking
type BookingStatusChangedEvent struct {
	BookingID string `json:"booking_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// ReminderSentEvent is published for every reminder SMS that went out
type ReminderSentEvent struct {
	BookingID     string `json:"booking_id"`
	LicenseExpiry string `json:"license_expiry"`
}
