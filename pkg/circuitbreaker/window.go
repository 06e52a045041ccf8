package circuitbreaker

import "sync"

// window is a count-based rolling window over the most recent call outcomes.
// Every state transition starts a new generation with an empty window.
type window struct {
	mu         sync.Mutex
	outcomes   []bool
	next       int
	filled     int
	failures   int
	generation uint64

	minimumCalls int
	threshold    float64
}

func newWindow(size, minimumCalls int, threshold float64) *window {
	if size < 1 {
		size = 1
	}
	return &window{
		outcomes:     make([]bool, size),
		minimumCalls: minimumCalls,
		threshold:    threshold,
	}
}

func (w *window) currentGeneration() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generation
}

// record adds an outcome if the window is still at generation gen and reports
// whether the window now meets the trip condition.
func (w *window) record(gen uint64, success bool) (recorded, trip bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.generation {
		return false, false
	}

	if w.filled == len(w.outcomes) {
		if !w.outcomes[w.next] {
			w.failures--
		}
	} else {
		w.filled++
	}

	w.outcomes[w.next] = success
	if !success {
		w.failures++
	}
	w.next = (w.next + 1) % len(w.outcomes)

	return true, w.shouldTripLocked()
}

func (w *window) shouldTrip() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shouldTripLocked()
}

func (w *window) shouldTripLocked() bool {
	if w.filled == 0 || w.filled < w.minimumCalls {
		return false
	}
	return w.failureRateLocked() >= w.threshold
}

func (w *window) failureRateLocked() float64 {
	if w.filled == 0 {
		return 0
	}
	return float64(w.failures) * 100 / float64(w.filled)
}

func (w *window) snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		Calls:       w.filled,
		Failures:    w.failures,
		FailureRate: w.failureRateLocked(),
	}
}

func (w *window) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.outcomes {
		w.outcomes[i] = false
	}
	w.next = 0
	w.filled = 0
	w.failures = 0
	w.generation++
}
