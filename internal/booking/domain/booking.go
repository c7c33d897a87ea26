package domain

import (
	"time"
)

// Status is the admin-facing progress of a booking
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Service codes offered by the garage
const (
	ServiceTest     = "test"
	ServiceMechanic = "mechanic"
	ServiceBodywork = "bodywork"
)

// SettingReminderTemplate holds the reminder SMS template
const SettingReminderTemplate = "sms.reminder_template"

// DefaultReminderTemplate is used until an admin saves their own
const DefaultReminderTemplate = "שלום [Customer Name], תזכורת: בעוד שבועיים יפוג תוקף הרישיון לרכב [License Plate]. אל תשכח לבצע טסט!"

// ReminderLeadDays is how long before expiry the customer is reminded
const ReminderLeadDays = 14

// DateLayout is the stored date format. Reminder lookups compare dates as
// strings, so every stored date must use it.
const DateLayout = "2006-01-02"

// Booking is a customer's service appointment
type Booking struct {
	ID                string     `db:"id" json:"id" firestore:"-"`
	Name              string     `db:"name" json:"name" firestore:"name"`
	Phone             string     `db:"phone" json:"phone" firestore:"phone"`
	Address           *string    `db:"address" json:"address,omitempty" firestore:"address"`
	CarType           *string    `db:"car_type" json:"carType,omitempty" firestore:"carType"`
	Service           string     `db:"service" json:"service" firestore:"service"`
	Date              string     `db:"date" json:"date" firestore:"date"`
	Time              string     `db:"time" json:"time" firestore:"time"`
	LicensePlate      *string    `db:"license_plate" json:"licensePlate,omitempty" firestore:"licensePlate"`
	TestDate          *string    `db:"test_date" json:"testDate,omitempty" firestore:"testDate"`
	LicenseExpiry     *string    `db:"license_expiry" json:"licenseExpiry,omitempty" firestore:"licenseExpiry"`
	LicenseImageKey   *string    `db:"license_image_key" json:"licenseImageKey,omitempty" firestore:"licenseImageKey"`
	Status            Status     `db:"status" json:"status" firestore:"status"`
	ReminderDate      *string    `db:"reminder_date" json:"-" firestore:"reminderDate"`
	ReminderQueueDate *string    `db:"reminder_queue_date" json:"reminderQueueDate,omitempty" firestore:"reminderQueueDate"`
	ReminderSent      bool       `db:"reminder_sent" json:"reminderSent" firestore:"reminderSent"`
	ReminderSentAt    *time.Time `db:"reminder_sent_at" json:"reminderSentAt,omitempty" firestore:"reminderSentAt"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt" firestore:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt" firestore:"updatedAt"`
}

// ExpiryDate is the date reminders are keyed on: the license expiry if
// known, otherwise the last test date.
func (b *Booking) ExpiryDate() *string {
	if b.LicenseExpiry != nil && *b.LicenseExpiry != "" {
		return b.LicenseExpiry
	}
	if b.TestDate != nil && *b.TestDate != "" {
		return b.TestDate
	}
	return nil
}

// ScheduleReminder derives the reminder fields from the expiry date.
// ReminderDate mirrors the expiry so stores can match it with one equality.
func (b *Booking) ScheduleReminder() {
	b.ReminderDate = nil
	b.ReminderQueueDate = nil

	expiry := b.ExpiryDate()
	if expiry == nil {
		return
	}
	d, err := time.Parse(DateLayout, *expiry)
	if err != nil {
		return
	}

	reminderDate := *expiry
	queue := d.AddDate(0, 0, -ReminderLeadDays).Format(DateLayout)
	b.ReminderDate = &reminderDate
	b.ReminderQueueDate = &queue
}

// CreateBookingRequest is the booking form submission
type CreateBookingRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	Phone         string `json:"phone" validate:"required,min=9,max=20"`
	Address       string `json:"address" validate:"max=200"`
	CarType       string `json:"carType" validate:"max=100"`
	Service       string `json:"service" validate:"required,oneof=test mechanic bodywork"`
	Date          string `json:"date" validate:"required"`
	Time          string `json:"time" validate:"required,max=10"`
	LicensePlate  string `json:"licensePlate"`
	TestDate      string `json:"testDate"`
	LicenseExpiry string `json:"licenseExpiry"`
	// Optional photo of the license, base64 or a data URL
	LicenseImage string `json:"licenseImage,omitempty"`
}

// UpdateStatusRequest changes a booking's status
type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

// AdminBooking is a booking as listed on the dashboard
type AdminBooking struct {
	*Booking
	ServiceLabel string `json:"serviceLabel"`
	StatusLabel  string `json:"statusLabel"`
	WhatsAppLink string `json:"whatsappLink,omitempty"`
}

// ListFilter narrows the admin booking list
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// ReminderTemplate is the settings payload for the reminder SMS
type ReminderTemplate struct {
	Template string `json:"template" validate:"required,max=500"`
}
