package sms

import (
	"context"
	"encoding/json"
	"net/http"

	twilioapi "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
)

// messageCreator is the part of the Twilio REST API the gateway calls
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// twilio sends through the Messages resource with E.164 numbers
type twilio struct {
	accountSID string
	authToken  string
	from       string
	api        messageCreator
}

func newTwilio(cfg *config.SMSConfig, httpClient *http.Client) *twilio {
	g := &twilio{
		accountSID: cfg.TwilioAccountSID,
		authToken:  cfg.TwilioAuthToken,
		from:       cfg.TwilioFrom,
	}
	if g.accountSID == "" || g.authToken == "" {
		return g
	}

	c := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(g.accountSID, g.authToken),
		HTTPClient:  httpClient,
	}
	c.SetAccountSid(g.accountSID)
	g.api = twilioapi.NewRestClientWithParams(twilioapi.ClientParams{Client: c}).Api
	return g
}

func (g *twilio) Name() string { return ProviderTwilio }

func (g *twilio) FormatRecipient(phone string) (string, error) {
	return InternationalPhone(phone)
}

// Send creates the message. The SDK call takes no context, so the
// HTTP client timeout bounds it and ctx only stops the wait.
func (g *twilio) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if g.api == nil || g.from == "" {
		return nil, errors.Configuration("sms.twilio_account_sid/sms.twilio_auth_token/sms.twilio_from")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(g.from)
	params.SetBody(msg.Body)

	type result struct {
		msg *openapi.ApiV2010Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := g.api.CreateMessage(params)
		done <- result{m, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, errors.Timeout(g.Name(), ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return nil, classifyTwilio(res.err)
	}

	body, err := json.Marshal(res.msg)
	if err != nil {
		return nil, errors.Upstream(g.Name(), err)
	}
	return &Receipt{Provider: g.Name(), Recipient: msg.To, ProviderResponse: string(body)}, nil
}

func classifyTwilio(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Status == http.StatusUnauthorized || restErr.Status == http.StatusForbidden {
			return errors.Configuration(ProviderTwilio + " credentials")
		}
		return errors.Upstream(ProviderTwilio, err)
	}
	if isTimeout(err) {
		return errors.Timeout(ProviderTwilio, err)
	}
	return errors.Upstream(ProviderTwilio, err)
}
