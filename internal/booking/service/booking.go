package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/testme/testme-backend/internal/booking/domain"
	"github.com/testme/testme-backend/internal/booking/events"
	"github.com/testme/testme-backend/internal/booking/repository"
	"github.com/testme/testme-backend/internal/booking/storage"
	"github.com/testme/testme-backend/internal/licensing/normalize"
	licensing "github.com/testme/testme-backend/internal/licensing/service"
	"github.com/testme/testme-backend/internal/sms"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/i18n"
	"github.com/testme/testme-backend/pkg/logger"
)

// notifyTimeout bounds the inline admin SMS so a slow gateway cannot hold
// the booking response.
const notifyTimeout = 10 * time.Second

// AdminNotifier sends the new-booking SMS when events are not published
type AdminNotifier interface {
	NotifyNewBooking(ctx context.Context, locale string, d sms.BookingDetails) (*sms.Receipt, error)
}

// BookingService handles booking business logic
type BookingService struct {
	store         repository.Store
	archive       storage.Archive
	publisher     *events.BookingEventPublisher
	notifier      AdminNotifier
	maxImageBytes int64
	logger        *logger.Logger
}

// NewBookingService creates a booking service. archive and publisher may be
// nil: images are then dropped and the admin is notified inline.
func NewBookingService(
	store repository.Store,
	archive storage.Archive,
	publisher *events.BookingEventPublisher,
	notifier AdminNotifier,
	maxImageBytes int64,
	log *logger.Logger,
) *BookingService {
	return &BookingService{
		store:         store,
		archive:       archive,
		publisher:     publisher,
		notifier:      notifier,
		maxImageBytes: maxImageBytes,
		logger:        log.WithComponent("booking"),
	}
}

// MaxImageBytes is the largest accepted license photo
func (s *BookingService) MaxImageBytes() int64 {
	return s.maxImageBytes
}

// Create validates, normalizes and stores a booking, then tells the admin.
// Notification problems are logged; they never fail the booking.
func (s *BookingService) Create(ctx context.Context, req *domain.CreateBookingRequest) (*domain.Booking, error) {
	b, err := newBooking(req)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithBookingID(b.ID)

	if req.LicenseImage != "" {
		key, err := s.archiveImage(ctx, b.ID, req.LicenseImage)
		if err != nil {
			return nil, err
		}
		b.LicenseImageKey = key
	}

	if err := s.store.Create(ctx, b); err != nil {
		if b.LicenseImageKey != nil {
			if delErr := s.archive.Delete(ctx, *b.LicenseImageKey); delErr != nil {
				log.Warn().Err(delErr).Msg("failed to remove archived image of unsaved booking")
			}
		}
		return nil, err
	}

	log.Info().
		Str("service", b.Service).
		Bool("has_plate", b.LicensePlate != nil).
		Bool("reminder_scheduled", b.ReminderQueueDate != nil).
		Msg("booking created")

	s.notify(ctx, b)
	return b, nil
}

func (s *BookingService) notify(ctx context.Context, b *domain.Booking) {
	locale := i18n.GetLocaleFromContext(ctx)

	if s.publisher != nil {
		if err := s.publisher.PublishBookingCreated(ctx, b, locale); err == nil {
			return
		}
	}
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	_, err := s.notifier.NotifyNewBooking(ctx, locale, sms.BookingDetails{
		Name:    b.Name,
		Phone:   b.Phone,
		CarType: deref(b.CarType),
		Service: b.Service,
		Date:    b.Date,
		Time:    b.Time,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("admin notification failed")
	}
}

// archiveImage stores the license photo. A malformed photo rejects the
// booking; an unavailable archive only drops the photo.
func (s *BookingService) archiveImage(ctx context.Context, bookingID, payload string) (*string, error) {
	doc, err := licensing.DecodeDocument(payload, "", s.maxImageBytes)
	if err != nil {
		return nil, err
	}
	defer clear(doc.Data)

	if s.archive == nil {
		s.logger.Debug().Str("booking_id", bookingID).Msg("image archive disabled, dropping license image")
		return nil, nil
	}

	key, err := s.archive.Upload(ctx, bookingID, doc.Data, doc.ContentType)
	if err != nil {
		s.logger.Warn().Err(err).Str("booking_id", bookingID).Msg("failed to archive license image")
		return nil, nil
	}
	return &key, nil
}

// newBooking builds the record from the form. Plates and dates go through
// the same normalizer the extraction endpoint uses.
func newBooking(req *domain.CreateBookingRequest) (*domain.Booking, error) {
	phone, err := sms.CleanPhone(req.Phone)
	if err != nil {
		return nil, err
	}

	date, ok := normalize.Date(req.Date)
	if !ok {
		return nil, errors.InvalidInput("date", "errors.invalid_date")
	}

	b := &domain.Booking{
		ID:      uuid.New().String(),
		Name:    strings.TrimSpace(req.Name),
		Phone:   phone,
		Address: optional(req.Address),
		CarType: optional(req.CarType),
		Service: req.Service,
		Date:    date,
		Time:    strings.TrimSpace(req.Time),
		Status:  domain.StatusNew,
	}

	if value := strings.TrimSpace(req.LicensePlate); value != "" {
		plate, ok := normalize.Plate(value)
		if !ok {
			return nil, errors.InvalidInput("licensePlate", "errors.invalid_plate")
		}
		b.LicensePlate = &plate
	}
	if b.TestDate, err = optionalDate("testDate", req.TestDate); err != nil {
		return nil, err
	}
	if b.LicenseExpiry, err = optionalDate("licenseExpiry", req.LicenseExpiry); err != nil {
		return nil, err
	}

	b.ScheduleReminder()
	return b, nil
}

// Get returns one booking
func (s *BookingService) Get(ctx context.Context, id string) (*domain.Booking, error) {
	return s.store.GetByID(ctx, id)
}

// List returns bookings for the dashboard, newest first, with localized
// labels and a WhatsApp link per customer.
func (s *BookingService) List(ctx context.Context, filter domain.ListFilter) ([]*domain.AdminBooking, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.InvalidInput("status", "errors.invalid_status")
	}

	bookings, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	l := i18n.LocalizerFromContext(ctx)
	out := make([]*domain.AdminBooking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, &domain.AdminBooking{
			Booking:      b,
			ServiceLabel: sms.ServiceLabel(l, b.Service),
			StatusLabel:  StatusLabel(l, b.Status),
			WhatsAppLink: WhatsAppLink(l, b),
		})
	}
	return out, nil
}

// UpdateStatus moves a booking to another status
func (s *BookingService) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Booking, error) {
	if !status.Valid() {
		return nil, errors.InvalidInput("status", "errors.invalid_status")
	}

	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == status {
		return b, nil
	}

	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	previous := b.Status
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	s.publisher.PublishStatusChanged(ctx, id, previous, status)

	s.logger.Info().
		Str("booking_id", id).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("booking status changed")

	return b, nil
}

// ReminderTemplate returns the saved reminder template or the default
func (s *BookingService) ReminderTemplate(ctx context.Context) (string, error) {
	tpl, err := s.store.GetSetting(ctx, domain.SettingReminderTemplate)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return domain.DefaultReminderTemplate, nil
		}
		return "", err
	}
	if strings.TrimSpace(tpl) == "" {
		return domain.DefaultReminderTemplate, nil
	}
	return tpl, nil
}

// SetReminderTemplate saves the reminder template
func (s *BookingService) SetReminderTemplate(ctx context.Context, tpl string) error {
	tpl = strings.TrimSpace(tpl)
	if tpl == "" {
		return errors.Validation(map[string]string{"template": "must not be empty"})
	}
	return s.store.PutSetting(ctx, domain.SettingReminderTemplate, tpl)
}

// StatusLabel translates a status
func StatusLabel(l *i18n.Localizer, status domain.Status) string {
	key := "booking.status." + string(status)
	if label := l.T(key); label != key {
		return label
	}
	return string(status)
}

// WhatsAppLink opens a chat with the customer, pre-filled with a greeting.
// Empty when the phone cannot be formatted.
func WhatsAppLink(l *i18n.Localizer, b *domain.Booking) string {
	number := sms.WhatsAppNumber(b.Phone)
	if number == "" {
		return ""
	}
	greeting := l.T("sms.whatsapp_greeting", map[string]string{
		"name":    b.Name,
		"service": sms.ServiceLabel(l, b.Service),
	})
	return fmt.Sprintf("https://wa.me/%s?text=%s", number, url.QueryEscape(greeting))
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func optionalDate(field, value string) (*string, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	date, ok := normalize.Date(value)
	if !ok {
		return nil, errors.InvalidInput(field, "errors.invalid_date")
	}
	return &date, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
