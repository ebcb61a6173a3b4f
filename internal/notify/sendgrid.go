package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendEndpoint = "/v3/mail/send"

// SendGrid delivers mail through the SendGrid v3 API.
type SendGrid struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGrid builds a notifier against the public SendGrid API.
func NewSendGrid(apiKey, fromAddress, fromName string) *SendGrid {
	return &SendGrid{client: sendgrid.NewSendClient(apiKey), from: mail.NewEmail(fromName, fromAddress)}
}

// NewSendGridAt targets a different API host, e.g. a sandbox or test server.
func NewSendGridAt(host, apiKey, fromAddress, fromName string) *SendGrid {
	req := sendgrid.GetRequest(apiKey, sendEndpoint, host)
	req.Method = http.MethodPost
	return &SendGrid{client: &sendgrid.Client{Request: req}, from: mail.NewEmail(fromName, fromAddress)}
}

func (s *SendGrid) Send(ctx context.Context, address string, t Template) error {
	if address == "" {
		return ErrNoRecipient
	}
	msg := mail.NewSingleEmail(s.from, t.Subject, mail.NewEmail("", address), t.Text, t.HTML)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: send %s: %w", t.Name, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: send %s: unexpected status %d", t.Name, resp.StatusCode)
	}
	zerolog.Ctx(ctx).Debug().Str("template", t.Name).Int("status", resp.StatusCode).Msg("email accepted")
	return nil
}
