package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDownstream = errors.New("downstream unavailable")

func testConfig(name string) Config {
	return Config{
		Name:                     name,
		WindowSize:               10,
		MinimumCalls:             5,
		FailureRateThreshold:     50,
		WaitDurationInOpen:       50 * time.Millisecond,
		PermittedCallsInHalfOpen: 2,
	}
}

func call(b *Breaker, succeed bool) error {
	return b.Run(context.Background(), func(context.Context) error {
		if succeed {
			return nil
		}
		return errDownstream
	}, nil)
}

func TestBreaker_TripsOnFailureRate(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []bool
		open     bool
	}{
		{name: "failures then successes", outcomes: []bool{false, false, false, true, true}, open: true},
		{name: "successes then failures", outcomes: []bool{true, true, false, false, false}, open: true},
		{name: "exactly at threshold", outcomes: []bool{true, true, true, false, false, false}, open: true},
		{name: "below threshold", outcomes: []bool{true, true, true, false, false}, open: false},
		{name: "below minimum calls", outcomes: []bool{false, false, false, false}, open: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(testConfig("trip-" + tt.name))
			for _, ok := range tt.outcomes {
				_ = call(b, ok)
			}
			assert.Equal(t, tt.open, b.IsOpen())
		})
	}
}

func TestBreaker_OpenRejectsWithoutCalling(t *testing.T) {
	b := New(testConfig("reject"))
	for i := 0; i < 5; i++ {
		_ = call(b, false)
	}
	require.True(t, b.IsOpen())

	called := false
	err := b.Run(context.Background(), func(context.Context) error {
		called = true
		return nil
	}, nil)

	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenAfterWait(t *testing.T) {
	b := New(testConfig("half-open"))
	for _, ok := range []bool{false, false, false, true, true} {
		_ = call(b, ok)
	}
	require.True(t, b.IsOpen())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, call(b, true), ErrOpen)
	}

	time.Sleep(70 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, b.State())

	called := false
	err := b.Run(context.Background(), func(context.Context) error {
		called = true
		return nil
	}, nil)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestBreaker_HalfOpenTransitions(t *testing.T) {
	open := func(name string) *Breaker {
		b := New(testConfig(name))
		for i := 0; i < 5; i++ {
			_ = call(b, false)
		}
		require.True(t, b.IsOpen())
		time.Sleep(70 * time.Millisecond)
		return b
	}

	t.Run("trial successes close and reset window", func(t *testing.T) {
		b := open("close")
		require.NoError(t, call(b, true))
		require.NoError(t, call(b, true))

		assert.True(t, b.IsClosed())
		assert.Equal(t, Snapshot{}, b.Window())
	})

	t.Run("trial failure reopens", func(t *testing.T) {
		b := open("reopen")
		assert.ErrorIs(t, call(b, false), errDownstream)
		assert.True(t, b.IsOpen())
		assert.ErrorIs(t, call(b, true), ErrOpen)
	})
}

func TestBreaker_Fallback(t *testing.T) {
	b := New(testConfig("fallback"))

	var got []error
	fallback := func(_ context.Context, err error) {
		got = append(got, err)
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Run(context.Background(), func(context.Context) error {
			return errDownstream
		}, fallback))
	}
	require.True(t, b.IsOpen())

	require.NoError(t, b.Run(context.Background(), func(context.Context) error {
		t.Fatal("must not be called while open")
		return nil
	}, fallback))

	require.Len(t, got, 6)
	assert.ErrorIs(t, got[0], errDownstream)
	assert.ErrorIs(t, got[5], ErrOpen)
}

func TestBreaker_PanicsAreContained(t *testing.T) {
	b := New(testConfig("panic"))

	err := b.Run(context.Background(), func(context.Context) error {
		panic("boom")
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, b.Window().Failures)

	err = b.Run(context.Background(), func(context.Context) error {
		return errDownstream
	}, func(context.Context, error) {
		panic("fallback broke")
	})
	assert.NoError(t, err)
}

func TestExecute_ReturnsFallbackValue(t *testing.T) {
	b := New(testConfig("execute"))

	v, err := Execute(context.Background(), b, func(context.Context) (string, error) {
		return "", errDownstream
	}, func(_ context.Context, err error) string {
		return "degraded"
	})

	require.NoError(t, err)
	assert.Equal(t, "degraded", v)
}

func TestBreaker_CancelledContext(t *testing.T) {
	b := New(testConfig("cancelled"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Run(ctx, func(context.Context) error { return nil }, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, b.Window().Calls)
}

func TestBreaker_ConcurrentCalls(t *testing.T) {
	cfg := testConfig("concurrent")
	cfg.WindowSize = 100
	cfg.MinimumCalls = 100
	b := New(cfg)

	var calls atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Run(context.Background(), func(context.Context) error {
				calls.Add(1)
				return nil
			}, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), calls.Load())
	assert.Equal(t, 50, b.Window().Calls)
	assert.True(t, b.IsClosed())
}

func TestWindow_Rolls(t *testing.T) {
	w := newWindow(3, 3, 50)
	gen := w.currentGeneration()

	for _, ok := range []bool{false, false, true} {
		w.record(gen, ok)
	}
	assert.True(t, w.shouldTrip())

	w.record(gen, true)
	w.record(gen, true)
	assert.Equal(t, Snapshot{Calls: 3, Failures: 0, FailureRate: 0}, w.snapshot())

	w.reset()
	recorded, _ := w.record(gen, false)
	assert.False(t, recorded)
}
