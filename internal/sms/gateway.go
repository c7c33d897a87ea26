// Package sms relays text messages through a configured SMS gateway.
package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
)

// Provider names accepted in sms.provider
const (
	ProviderFree4SMS = "free4sms"
	ProviderSMS4Free = "sms4free"
	ProviderTwilio   = "twilio"
)

const minPhoneDigits = 9

// Message is one outbound SMS. To is already in the gateway's format.
type Message struct {
	To   string
	Body string
}

// Receipt is what the gateway acknowledged
type Receipt struct {
	Provider         string `json:"provider"`
	Recipient        string `json:"recipient"`
	ProviderResponse string `json:"providerResponse"`
}

// Gateway sends SMS through one provider. Each provider expects phone
// numbers in its own format, so formatting belongs to the gateway.
type Gateway interface {
	Name() string
	FormatRecipient(phone string) (string, error)
	// Send performs one outbound call. Missing credentials yield a
	// configuration error; transport and non-2xx failures an upstream error.
	Send(ctx context.Context, msg Message) (*Receipt, error)
}

// NewGateway builds the gateway named by sms.provider
func NewGateway(cfg *config.SMSConfig) (Gateway, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	switch strings.ToLower(cfg.Provider) {
	case ProviderFree4SMS, "":
		return newFree4SMS(cfg, client), nil
	case ProviderSMS4Free:
		return newSMS4Free(cfg, client), nil
	case ProviderTwilio:
		return newTwilio(cfg, client), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

// CleanPhone strips everything but digits. Fewer than nine digits cannot be
// an Israeli number in any form.
func CleanPhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", errors.InvalidInput("phone", "errors.missing_phone")
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	if len(digits) < minPhoneDigits {
		return "", errors.InvalidInput("phone", "errors.invalid_phone")
	}
	return digits, nil
}

// LocalPhone formats a number as 0XXXXXXXXX
func LocalPhone(phone string) (string, error) {
	digits, err := CleanPhone(phone)
	if err != nil {
		return "", err
	}
	switch {
	case strings.HasPrefix(digits, "972"):
		return "0" + strings.TrimPrefix(digits[3:], "0"), nil
	case strings.HasPrefix(digits, "0"):
		return digits, nil
	default:
		return "0" + digits, nil
	}
}

// InternationalPhone formats a number as +972XXXXXXXXX
func InternationalPhone(phone string) (string, error) {
	local, err := LocalPhone(phone)
	if err != nil {
		return "", err
	}
	return "+972" + local[1:], nil
}

// WhatsAppNumber is the international form without the plus sign, as
// wa.me links expect it.
func WhatsAppNumber(phone string) string {
	intl, err := InternationalPhone(phone)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(intl, "+")
}

// do sends req and returns the response body. Non-2xx statuses are
// upstream errors; 401 and 403 mean the credentials are wrong.
func do(ctx context.Context, client *http.Client, provider string, req *http.Request) (string, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || isTimeout(err) {
			return "", errors.Timeout(provider, err)
		}
		return "", errors.Upstream(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", errors.Upstream(provider, fmt.Errorf("read response: %w", err))
	}
	text := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return text, errors.Configuration(provider + " credentials")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return text, errors.Upstream(provider, fmt.Errorf("status %d: %s", resp.StatusCode, text))
	}
	return text, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
