// Package backoff provides pluggable redelivery delay strategies for the
// dispatch router. Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a redelivery attempt.
type Strategy interface {
	// Delay returns how long the envelope stays invisible before retry
	// attempt n (1-indexed). Attempt 1 is the first retry after the
	// initial failed delivery.
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential grows the delay geometrically with the attempt number and caps
// it at Max: Delay = min(Initial * Multiplier^(attempt-1), Max). With
// AddJitter set, up to 25% random spread is added so simultaneous retries do
// not stampede the same instant; the jittered value still respects Max.
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64 // values <= 1 fall back to 2
	AddJitter  bool
}

// NewExponential creates a capped exponential strategy without jitter;
// useful where deterministic delays matter, such as tests.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Multiplier: 2}
}

// Delay returns the capped geometric delay for the given attempt.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := e.Multiplier
	if multiplier <= 1 {
		multiplier = 2
	}

	d := float64(e.Initial) * math.Pow(multiplier, float64(attempt-1))
	if e.Max > 0 && d > float64(e.Max) {
		d = float64(e.Max)
	}
	delay := time.Duration(d)

	if e.AddJitter && delay > 0 {
		delay += rand.N(delay/4 + 1) //nolint:gosec // jitter intentionally uses non-crypto rand
		if e.Max > 0 && delay > e.Max {
			delay = e.Max
		}
	}
	return delay
}

// Default returns the strategy used by the router when none is configured:
// exponential from 1s to a 60s cap, doubling per attempt, with jitter.
func Default() Strategy {
	return &Exponential{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
		AddJitter:  true,
	}
}
