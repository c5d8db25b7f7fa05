package mailer

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

type mailgunAPI interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

// MailgunSender delivers through the Mailgun messages API.
type MailgunSender struct {
	mg   mailgunAPI
	from string
}

func NewMailgunSender(domain, apiKey, from string) *MailgunSender {
	return &MailgunSender{mg: mailgun.NewMailgun(domain, apiKey), from: from}
}

func (s *MailgunSender) Name() string { return ProviderMailgun }

func (s *MailgunSender) Send(ctx context.Context, msg *Message) error {
	m := s.mg.NewMessage(s.from, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		m.SetHtml(msg.HTML)
	}
	if _, _, err := s.mg.Send(ctx, m); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}
