// Package breaker wraps persistence-gateway writes with a circuit breaker
// so a flapping database fails fast with a database-unavailable error
// instead of blocking match finalisation (spec §7).
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker"

	"github.com/velotype/velotype/internal/apperr"
)

// Breaker wraps one named circuit around a family of calls.
type Breaker struct{ cb *gobreaker.CircuitBreaker }

// New builds a breaker that trips after 3 consecutive failures, or after a
// 5% failure rate once at least 20 requests have been observed in the
// rolling interval — the same policy shape as the teacher's
// infra/breakers.New.
func New(name string) *Breaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn through the circuit breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// ExecuteVoid is a convenience for fn's that return only an error. A call
// rejected by an open (or half-open, saturated) breaker returns a
// database-unavailable apperr.
func (b *Breaker) ExecuteVoid(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Wrap(apperr.KindDatabaseUnavailable, "database unavailable", err)
	}
	return err
}

// State reports the breaker's current state name for health endpoints.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
