package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers through the SendGrid v3 mail API.
type SendGridSender struct {
	apiKey  string
	from    string
	baseURL string
}

func NewSendGridSender(apiKey, from string) *SendGridSender {
	return &SendGridSender{apiKey: apiKey, from: from}
}

func (s *SendGridSender) Name() string { return ProviderSendGrid }

func (s *SendGridSender) Send(ctx context.Context, msg *Message) error {
	email := mail.NewSingleEmail(
		mail.NewEmail("", s.from),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)

	// The client stores the request body on itself, so one is built per send.
	client := sendgrid.NewSendClient(s.apiKey)
	if s.baseURL != "" {
		client.BaseURL = s.baseURL
	}

	resp, err := client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid send: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
