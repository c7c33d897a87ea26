package sms

import (
	"context"
	"strings"
	"time"

	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/i18n"
	"github.com/testme/testme-backend/pkg/logger"
	"github.com/testme/testme-backend/pkg/retry"
)

// SendRequest is the relay endpoint body. It is either explicit
// (phone|to with message|customMessage) or booking-shaped, in which case the
// message is synthesized and goes to the admin phone.
type SendRequest struct {
	Phone         string `json:"phone"`
	To            string `json:"to"`
	Message       string `json:"message"`
	CustomMessage string `json:"customMessage"`

	Name         string `json:"name"`
	CarType      string `json:"carType"`
	CarTypeLower string `json:"cartype"`
	Service      string `json:"service"`
	Date         string `json:"date"`
	Time         string `json:"time"`
}

// Explicit reports whether the request names its own message text rather
// than asking for the new-booking notification
func (req SendRequest) Explicit() bool {
	return firstNonEmpty(req.Message, req.CustomMessage) != "" || req.Name == ""
}

// BookingDetails fills the new-booking admin message
type BookingDetails struct {
	Name    string
	Phone   string
	CarType string
	Service string
	Date    string
	Time    string
}

// Relay formats, validates and dispatches messages with one retry on
// upstream failure.
type Relay struct {
	gateway    Gateway
	adminPhone string
	policy     retry.Policy
	timeout    time.Duration
	log        *logger.Logger
}

// NewRelay creates a relay over the given gateway
func NewRelay(gateway Gateway, cfg *config.SMSConfig, log *logger.Logger) *Relay {
	r := &Relay{
		gateway:    gateway,
		adminPhone: cfg.AdminPhone,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.RetryDelay,
		},
		timeout: cfg.Timeout,
		log:     log.WithComponent("sms"),
	}
	r.policy.OnRetry = func(err error, wait time.Duration) {
		r.log.Warn().Err(err).Str("provider", gateway.Name()).Dur("wait", wait).Msg("sms send failed, retrying")
	}
	return r
}

// Send delivers body to phone. The phone is formatted for the gateway.
func (r *Relay) Send(ctx context.Context, phone, body string) (*Receipt, error) {
	to, err := r.gateway.FormatRecipient(phone)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, errors.InvalidInput("message", "errors.missing_message")
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var receipt *Receipt
	err = retry.Do(ctx, r.policy, func(ctx context.Context) error {
		var err error
		receipt, err = r.gateway.Send(ctx, Message{To: to, Body: body})
		return err
	})
	if err != nil {
		r.log.Error().Err(err).Str("provider", r.gateway.Name()).Msg("sms send failed")
		var appErr *errors.AppError
		if errors.As(err, &appErr) && (errors.Is(err, errors.ErrUpstream) || errors.Is(err, errors.ErrTimeout)) {
			appErr.WithKey("errors.sms_failed")
		}
		return nil, err
	}

	r.log.Info().Str("provider", r.gateway.Name()).Str("recipient", maskPhone(to)).Msg("sms sent")
	return receipt, nil
}

// NotifyAdmin sends body to the configured admin phone
func (r *Relay) NotifyAdmin(ctx context.Context, body string) (*Receipt, error) {
	if r.adminPhone == "" {
		return nil, errors.Configuration("sms.admin_phone")
	}
	return r.Send(ctx, r.adminPhone, body)
}

// NotifyNewBooking tells the admin about a booking, in the given locale
func (r *Relay) NotifyNewBooking(ctx context.Context, locale string, d BookingDetails) (*Receipt, error) {
	return r.NotifyAdmin(ctx, NewBookingMessage(locale, d))
}

// Handle serves one relay request
func (r *Relay) Handle(ctx context.Context, req SendRequest) (*Receipt, error) {
	message := firstNonEmpty(req.Message, req.CustomMessage)
	if !req.Explicit() {
		return r.NotifyNewBooking(ctx, i18n.GetLocaleFromContext(ctx), BookingDetails{
			Name:    req.Name,
			Phone:   firstNonEmpty(req.Phone, req.To),
			CarType: firstNonEmpty(req.CarType, req.CarTypeLower),
			Service: req.Service,
			Date:    req.Date,
			Time:    req.Time,
		})
	}

	phone := firstNonEmpty(req.Phone, req.To)
	if phone == "" {
		return nil, errors.InvalidInput("phone", "errors.missing_phone")
	}
	if message == "" {
		return nil, errors.InvalidInput("message", "errors.missing_message")
	}
	return r.Send(ctx, phone, message)
}

// NewBookingMessage renders the admin notification for a booking
func NewBookingMessage(locale string, d BookingDetails) string {
	l := i18n.NewLocalizer(locale)
	return l.T("sms.new_booking", map[string]string{
		"name":    orDash(d.Name),
		"phone":   orDash(d.Phone),
		"car":     orDash(d.CarType),
		"service": ServiceLabel(l, d.Service),
		"date":    orDash(d.Date),
		"time":    d.Time,
	})
}

// ServiceLabel translates a service code, keeping unknown codes as sent
func ServiceLabel(l *i18n.Localizer, service string) string {
	if service == "" {
		return "-"
	}
	key := "booking.service." + service
	if label := l.T(key); label != key {
		return label
	}
	return service
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
