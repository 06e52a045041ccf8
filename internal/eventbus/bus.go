package eventbus

import (
	"context"
	"fmt"
	"sync"

	apperrors "herald/pkg/errors"
)

type Handler[E any] func(ctx context.Context, event E) error

type subscription[E any] struct {
	name    string
	handler Handler[E]
}

// Bus delivers events synchronously to in-process subscribers, in subscription
// order, on the publishing goroutine. The first failing handler aborts delivery.
type Bus[E any] struct {
	mu   sync.RWMutex
	subs []subscription[E]
}

func New[E any]() *Bus[E] {
	return &Bus[E]{}
}

func (b *Bus[E]) Subscribe(name string, handler Handler[E]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription[E]{name: name, handler: handler})
}

func (b *Bus[E]) Publish(ctx context.Context, event E) error {
	b.mu.RLock()
	subs := make([]subscription[E], len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := invoke(ctx, sub.handler, event); err != nil {
			return fmt.Errorf("handler %q: %w", sub.name, err)
		}
	}
	return nil
}

func invoke[E any](ctx context.Context, handler Handler[E], event E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()
	return handler(ctx, event)
}
