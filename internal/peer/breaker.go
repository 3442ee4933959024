package peer

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/lanforge/lanforge/internal/metrics"
)

// breakerFor returns the circuit breaker guarding reconnect dials to addr,
// creating it on first use. Settings mirror the pattern used for the
// teacher's outbound SFU client: a single half-open probe, a short
// reset window, because a LAN coordinator that is actually gone should
// fail fast rather than hang on repeated OS-level connect timeouts.
func (e *Engine) breakerFor(addr string) *gobreaker.CircuitBreaker {
	e.breakersMu.Lock()
	defer e.breakersMu.Unlock()

	if b, ok := e.breakers[addr]; ok {
		return b
	}

	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        addr,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var v float64
			switch to {
			case gobreaker.StateClosed:
				v = 0
			case gobreaker.StateOpen:
				v = 1
			case gobreaker.StateHalfOpen:
				v = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
		},
	})
	e.breakers[addr] = b
	return b
}
