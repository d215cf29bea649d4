package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kalambet/recoagent/internal/metrics"
)

// BreakerSettings tune each per-model circuit breaker around an Engine.
type BreakerSettings struct {
	// MinRequests is the sample size needed before the failure ratio is
	// considered.
	MinRequests uint32
	// FailureRatio opens the circuit once reached.
	FailureRatio float64
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings opens after half of at least 5 calls failed and
// probes again after 30 seconds.
var DefaultBreakerSettings = BreakerSettings{
	MinRequests:  5,
	FailureRatio: 0.5,
	OpenTimeout:  30 * time.Second,
}

// BreakerEngine wraps an Engine with one circuit breaker per model, so a
// dead backend or a retired model is skipped quickly instead of costing a
// timeout on every request. A rejected call surfaces as an ordinary client
// error.
type BreakerEngine struct {
	inner    Engine
	settings BreakerSettings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

// NewBreakerEngine wraps inner.
func NewBreakerEngine(inner Engine, s BreakerSettings) *BreakerEngine {
	return &BreakerEngine{
		inner:    inner,
		settings: s,
		breakers: make(map[string]*gobreaker.CircuitBreaker[string]),
	}
}

// breaker returns the breaker for model, creating it on first use.
func (b *BreakerEngine) breaker(model string) *gobreaker.CircuitBreaker[string] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[model]; ok {
		return cb
	}
	s := b.settings
	name := "llm-" + b.inner.Name() + "/" + model
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		// Cancellation by the caller says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("engine: circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	b.breakers[model] = cb
	return cb
}

func (b *BreakerEngine) Name() string { return b.inner.Name() }

func (b *BreakerEngine) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	cb := b.breaker(model)
	out, err := cb.Execute(func() (string, error) {
		return b.inner.Generate(ctx, model, prompt, opts)
	})
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "failure").Inc()
	}
	return out, err
}

func (b *BreakerEngine) IsRunning(ctx context.Context) bool {
	return b.inner.IsRunning(ctx)
}

// State reports the breaker state for model. A model that was never called
// is closed.
func (b *BreakerEngine) State(model string) gobreaker.State {
	b.mu.Lock()
	cb, ok := b.breakers[model]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

// Unwrap returns the wrapped Engine.
func (b *BreakerEngine) Unwrap() Engine { return b.inner }

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
