package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// Settings tunes a Breaker.
type Settings struct {
	Target string
	// MinRequests is the number of calls observed before the ratio is evaluated.
	MinRequests  uint32
	FailureRatio float64
	// OpenFor is how long the breaker rejects calls before probing again.
	OpenFor time.Duration
	// HalfOpenMax bounds concurrent probes while half-open.
	HalfOpenMax uint32
	// Interval resets closed-state counts; zero keeps them until a trip.
	Interval time.Duration
	Logger   *zerolog.Logger
}

// Breaker guards calls to an upstream dependency.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	target string
}

func stateLabel(s gobreaker.State) string {
	switch s {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// NewBreaker builds a breaker that trips once the failure ratio reaches
// FailureRatio over at least MinRequests calls.
func NewBreaker(s Settings) *Breaker {
	if s.Target == "" {
		s.Target = "default"
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.FailureRatio <= 0 || s.FailureRatio > 1 {
		s.FailureRatio = 0.5
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 30 * time.Second
	}
	if s.HalfOpenMax == 0 {
		s.HalfOpenMax = 1
	}
	logger := s.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	target := s.Target
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        target,
		MaxRequests: s.HalfOpenMax,
		Interval:    s.Interval,
		Timeout:     s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			BreakerState.WithLabelValues(name).Set(stateValue(to))
			BreakerTransitions.WithLabelValues(name, stateLabel(from), stateLabel(to)).Inc()
			if to == gobreaker.StateOpen {
				BreakerOpenedTotal.WithLabelValues(name).Inc()
			}
			logger.Warn().Str("target", name).Str("from", stateLabel(from)).Str("to", stateLabel(to)).Msg("breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about upstream health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	BreakerState.WithLabelValues(target).Set(0)
	return &Breaker{cb: cb, target: target}
}

// Execute runs fn through the breaker. Rejected calls return ErrOpenCircuit.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		BreakerRejectedTotal.WithLabelValues(b.target).Inc()
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.AddEvent("breaker.rejected")
		}
		return errors.Join(ErrOpenCircuit, err)
	}
	return err
}

// State reports the current breaker state label.
func (b *Breaker) State() string {
	return stateLabel(b.cb.State())
}
