package notification

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"herald/internal/constants"
)

// SimulatedNotifier fails a configurable share of calls. Useful for demos of
// the breaker and dead-letter path without a real provider.
type SimulatedNotifier struct {
	failureRatio float64
	latency      time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

func NewSimulatedNotifier(failureRatio float64, latency time.Duration) *SimulatedNotifier {
	return &SimulatedNotifier{
		failureRatio: failureRatio,
		latency:      latency,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (n *SimulatedNotifier) Name() string {
	return constants.NotifierSimulated
}

func (n *SimulatedNotifier) Notify(ctx context.Context, email, _ string) error {
	if n.latency > 0 {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(n.latency):
		}
	}

	n.mu.Lock()
	fail := n.rand.Float64() < n.failureRatio
	n.mu.Unlock()

	if fail {
		return errors.Errorf("simulated notification failure for %s", email)
	}
	return nil
}
