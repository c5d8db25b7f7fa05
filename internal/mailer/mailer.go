package mailer

import (
	"context"
	"fmt"
	"log/slog"
)

// Message is one outgoing email. Text is always set; HTML is optional.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages through one transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

// Provider names accepted by New.
const (
	ProviderLog      = "log"
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderMailgun  = "mailgun"
)

// Config selects and configures a transport.
type Config struct {
	Provider string
	From     string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	SendGridAPIKey string

	MailgunDomain string
	MailgunAPIKey string
}

// New builds the sender named by cfg.Provider. Network transports are
// wrapped in a circuit breaker so a failing provider is not hammered.
func New(cfg Config, logger *slog.Logger) (Sender, error) {
	var s Sender
	switch cfg.Provider {
	case ProviderLog, "":
		return NewLogSender(logger), nil
	case ProviderSMTP:
		s = NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.From)
	case ProviderSendGrid:
		s = NewSendGridSender(cfg.SendGridAPIKey, cfg.From)
	case ProviderMailgun:
		s = NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.From)
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
	return NewBreakerSender(s, DefaultBreakerConfig(s.Name()), logger), nil
}
