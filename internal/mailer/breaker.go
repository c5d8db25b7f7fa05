package mailer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mailer_circuit_breaker_state",
			Help: "Current state of the mail provider circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	mailSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_messages_total",
			Help: "Outgoing mail by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
)

// ErrCircuitOpen is returned while the provider is considered down.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig trips after half of at least 5 sends fail and
// probes again after 30s.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerSender guards another Sender with a circuit breaker.
type BreakerSender struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

func NewBreakerSender(next Sender, cfg BreakerConfig, logger *slog.Logger) *BreakerSender {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("mail circuit breaker state change",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		// A cancelled request says nothing about the provider's health.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	}

	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &BreakerSender{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		logger:  logger,
	}
}

func (s *BreakerSender) Name() string { return s.next.Name() }

func (s *BreakerSender) Send(ctx context.Context, msg *Message) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.next.Send(ctx, msg)
	})
	if err != nil {
		mailSent.WithLabelValues(s.next.Name(), "error").Inc()
		return err
	}
	mailSent.WithLabelValues(s.next.Name(), "ok").Inc()
	return nil
}

// State returns the breaker's current state.
func (s *BreakerSender) State() gobreaker.State {
	return s.breaker.State()
}
