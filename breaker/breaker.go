// Package breaker wires the three named circuit breakers required by §5 of
// the control-plane spec around github.com/sony/gobreaker: HealthCheck,
// TaskAssignment, and SessionPersistence. Each is a closed/open/half-open
// guard that fails fast, without touching the protected resource, once its
// failure threshold trips.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned (wrapped) when a breaker is open and a call is
// rejected without the protected operation running.
var ErrOpen = gobreaker.ErrOpenState

// Breaker wraps a gobreaker.CircuitBreaker with a name/threshold/timeout
// vocabulary.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New creates a breaker that opens after `threshold` consecutive failures,
// stays open for `resetAfter`, then allows a single half-open probe. `timeout`
// is not used by the breaker and is not stored on it; the breaker's name is
// `name` unchanged.
func New(name string, threshold uint32, timeout, resetAfter time.Duration) *Breaker {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: resetAfter,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. If the breaker is open, fn is never
// called and an error wrapping ErrOpen is returned.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err != nil && errors.Is(err, gobreaker.ErrOpenState) {
		return ErrOpen
	}
	return err
}

// State reports the current breaker state as a string for diagnostics.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string {
	return b.name
}

// Set groups the three named breakers used across the control plane (§5,
// §4.8, §4.9, §4.7) so components can be constructed with a single value.
type Set struct {
	HealthCheck        *Breaker
	TaskAssignment     *Breaker
	SessionPersistence *Breaker
}

// NewDefaultSet builds the Set with the exact thresholds named in §5:
// HealthCheck (3, 10s, 30s), TaskAssignment (5, 5s, 20s), SessionPersistence
// (5, 30s, 60s).
func NewDefaultSet() *Set {
	return &Set{
		HealthCheck:        New("HealthCheck", 3, 10*time.Second, 30*time.Second),
		TaskAssignment:     New("TaskAssignment", 5, 5*time.Second, 20*time.Second),
		SessionPersistence: New("SessionPersistence", 5, 30*time.Second, 60*time.Second),
	}
}
