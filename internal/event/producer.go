package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	pkgkafka "github.com/Ahmadraza4026/image-search-backend/pkg/kafka"
	"github.com/Ahmadraza4026/image-search-backend/pkg/logger"
)

// AggregateTypeAccount is the aggregate type of every account event.
const AggregateTypeAccount = "account"

// SourceAuthService identifies events originating from this service.
const SourceAuthService = "auth-service"

// Topics for account domain events.
var (
	TopicAccountRegistered      = pkgkafka.Topic(AggregateTypeAccount, "registered")
	TopicAccountVerified        = pkgkafka.Topic(AggregateTypeAccount, "verified")
	TopicAccountPasswordReset   = pkgkafka.Topic(AggregateTypeAccount, "password_reset")
	TopicAccountPasswordChanged = pkgkafka.Topic(AggregateTypeAccount, "password_changed")
)

// AccountData is the payload of every account event. Secrets never appear.
type AccountData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Publisher is the subset of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes account events. A Producer with no publisher drops
// every event, which is how EVENTS_ENABLED=false is honoured.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a producer. publisher may be nil.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// NewNoopProducer returns a producer that publishes nothing.
func NewNoopProducer(logger *slog.Logger) *Producer {
	return &Producer{logger: logger}
}

// Enabled reports whether events are actually published.
func (p *Producer) Enabled() bool {
	return p != nil && p.publisher != nil
}

// AccountRegistered publishes account.registered.
func (p *Producer) AccountRegistered(ctx context.Context, a *domain.Account) {
	p.publish(ctx, TopicAccountRegistered, a)
}

// AccountVerified publishes account.verified.
func (p *Producer) AccountVerified(ctx context.Context, a *domain.Account) {
	p.publish(ctx, TopicAccountVerified, a)
}

// PasswordReset publishes account.password_reset once a reset succeeds.
func (p *Producer) PasswordReset(ctx context.Context, a *domain.Account) {
	p.publish(ctx, TopicAccountPasswordReset, a)
}

// PasswordChanged publishes account.password_changed.
func (p *Producer) PasswordChanged(ctx context.Context, a *domain.Account) {
	p.publish(ctx, TopicAccountPasswordChanged, a)
}

// publish never fails the caller; errors are logged.
func (p *Producer) publish(ctx context.Context, topic string, a *domain.Account) {
	if !p.Enabled() {
		return
	}
	if err := p.send(ctx, topic, a); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish account event",
			slog.String("topic", topic),
			slog.String("account_id", a.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.DebugContext(ctx, "published account event",
		slog.String("topic", topic),
		slog.String("account_id", a.ID),
	)
}

func (p *Producer) send(ctx context.Context, topic string, a *domain.Account) error {
	data := AccountData{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Role:     a.Role,
	}

	evt, err := pkgkafka.NewEvent(topic, a.ID, AggregateTypeAccount, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))
	return p.publisher.Publish(ctx, topic, evt)
}
