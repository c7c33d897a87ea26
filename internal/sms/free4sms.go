package sms

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
)

const free4smsURL = "https://api.free4sms.co.il/send_sms.php"

// free4sms takes a form POST and answers with plain text
type free4sms struct {
	baseURL string
	user    string
	pass    string
	sender  string
	client  *http.Client
}

func newFree4SMS(cfg *config.SMSConfig, client *http.Client) *free4sms {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = free4smsURL
	}
	return &free4sms{
		baseURL: baseURL,
		user:    cfg.User,
		pass:    cfg.Password,
		sender:  cfg.Sender,
		client:  client,
	}
}

func (g *free4sms) Name() string { return ProviderFree4SMS }

func (g *free4sms) FormatRecipient(phone string) (string, error) {
	return LocalPhone(phone)
}

func (g *free4sms) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if g.user == "" || g.pass == "" {
		return nil, errors.Configuration("sms.user/sms.password")
	}

	form := url.Values{}
	form.Set("user", g.user)
	form.Set("pass", g.pass)
	form.Set("sender", g.sender)
	form.Set("recipient", msg.To)
	form.Set("msg", msg.Body)

	req, err := http.NewRequest(http.MethodPost, g.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Configuration("sms.base_url")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := do(ctx, g.client, g.Name(), req)
	if err != nil {
		return nil, err
	}
	return &Receipt{Provider: g.Name(), Recipient: msg.To, ProviderResponse: body}, nil
}
