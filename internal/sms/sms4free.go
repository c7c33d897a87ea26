package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
)

const sms4freeURL = "https://api.sms4free.co.il/ApiSMS/v2/SendSMS"

// sms4free takes a JSON POST. Its reply carries a status that is negative
// on failure even when the HTTP status is 200.
type sms4free struct {
	baseURL string
	key     string
	user    string
	pass    string
	sender  string
	client  *http.Client
}

type sms4freeRequest struct {
	Key       string `json:"key"`
	User      string `json:"user"`
	Pass      string `json:"pass"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Msg       string `json:"msg"`
}

type sms4freeResponse struct {
	Status  *int   `json:"status"`
	Message string `json:"message"`
}

func newSMS4Free(cfg *config.SMSConfig, client *http.Client) *sms4free {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sms4freeURL
	}
	return &sms4free{
		baseURL: baseURL,
		key:     cfg.Key,
		user:    cfg.User,
		pass:    cfg.Password,
		sender:  cfg.Sender,
		client:  client,
	}
}

func (g *sms4free) Name() string { return ProviderSMS4Free }

func (g *sms4free) FormatRecipient(phone string) (string, error) {
	return LocalPhone(phone)
}

func (g *sms4free) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if g.key == "" || g.user == "" || g.pass == "" {
		return nil, errors.Configuration("sms.key/sms.user/sms.password")
	}

	payload, err := json.Marshal(sms4freeRequest{
		Key:       g.key,
		User:      g.user,
		Pass:      g.pass,
		Sender:    g.sender,
		Recipient: msg.To,
		Msg:       msg.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("sms4free: marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, g.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Configuration("sms.base_url")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := do(ctx, g.client, g.Name(), req)
	if err != nil {
		return nil, err
	}

	var reply sms4freeResponse
	if json.Unmarshal([]byte(body), &reply) == nil && reply.Status != nil && *reply.Status < 0 {
		return nil, errors.Upstream(g.Name(), fmt.Errorf("status %d: %s", *reply.Status, reply.Message))
	}
	return &Receipt{Provider: g.Name(), Recipient: msg.To, ProviderResponse: body}, nil
}
