package embedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("embedding circuit breaker is open")

// BreakerConfig configures the circuit breaker around the embedding client.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit. Default: 5
	MaxFailures uint32

	// Cooldown is how long the circuit stays open before a trial call.
	// Default: 60 seconds
	Cooldown time.Duration

	// HalfOpenMaxSuccesses is the number of trial successes that close the
	// circuit again. Default: 1
	HalfOpenMaxSuccesses uint32

	// OnStateChange is called on every transition, if set.
	OnStateChange func(from, to string)
}

// BreakerMetrics counts calls seen by the breaker.
type BreakerMetrics struct {
	TotalRequests       uint64
	TotalFailures       uint64
	Rejected            uint64 // Calls refused while open
	ConsecutiveFailures uint32
}

// Breaker wraps gobreaker for embedding calls.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	mu      sync.Mutex
	metrics BreakerMetrics
}

// NewBreaker creates a breaker, filling zero fields with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.HalfOpenMaxSuccesses == 0 {
		cfg.HalfOpenMaxSuccesses = 1
	}

	settings := gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			cfg.OnStateChange(from.String(), to.String())
		}
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. A cancelled context fails fast
// without counting against the circuit.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		b.metrics.Rejected++
		return ErrCircuitOpen
	case err != nil:
		b.metrics.TotalRequests++
		b.metrics.TotalFailures++
	default:
		b.metrics.TotalRequests++
	}
	return err
}

// State returns "closed", "open" or "half-open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Metrics returns a copy of the counters.
func (b *Breaker) Metrics() BreakerMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.metrics
	m.ConsecutiveFailures = b.cb.Counts().ConsecutiveFailures
	return m
}
