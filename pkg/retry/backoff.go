package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func ExponentialBackoff(initialInterval, maxInterval time.Duration, multiplier, randomizationFactor float64) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	if maxInterval > 0 {
		exp.MaxInterval = maxInterval
	}
	if multiplier > 0 {
		exp.Multiplier = multiplier
	}
	exp.RandomizationFactor = randomizationFactor
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}

// CalculateBackoffDuration returns the un-jittered delay after the given failed attempt (1-based).
func CalculateBackoffDuration(attempt int, initialInterval time.Duration, multiplier float64, maxInterval time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	duration := float64(initialInterval) * math.Pow(multiplier, float64(attempt-1))
	if maxInterval > 0 && duration > float64(maxInterval) {
		return maxInterval
	}
	return time.Duration(duration)
}

// Schedule lists the un-jittered delays between attempts, e.g. 1s, 2s, 4s.
func (p Policy) Schedule() []time.Duration {
	delays := make([]time.Duration, 0, p.MaxRetries)
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delays = append(delays, CalculateBackoffDuration(attempt, p.InitialInterval, p.Multiplier, p.MaxInterval))
	}
	return delays
}
