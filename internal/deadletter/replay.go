package deadletter

import (
	"context"

	"herald/internal/broker"
)

// Replay republishes a stored record to its original topic. The record is kept;
// a second failure produces a new record under the new dead-letter offset.
func Replay(ctx context.Context, store Store, producer broker.Producer, id string) (Record, error) {
	rec, err := store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}

	msg, err := rec.Message()
	if err != nil {
		return Record{}, err
	}

	if err := producer.Publish(ctx, msg); err != nil {
		return Record{}, err
	}

	return rec, nil
}
