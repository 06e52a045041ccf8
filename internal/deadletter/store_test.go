package deadletter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/broker"
	hcel "herald/pkg/cel"
	apperrors "herald/pkg/errors"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()

	store := NewMemoryStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := Record{
			ID:               fmt.Sprintf("rec-%d", i),
			Topic:            "user.created.dlt",
			OriginalTopic:    "user.created",
			ExceptionMessage: "boom",
			Attempts:         i,
			ReceivedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		if i%2 == 0 {
			rec.ExceptionMessage = "timeout"
		}
		require.NoError(t, store.Save(context.Background(), rec))
	}
	return store
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	store := seedStore(t)

	records, err := store.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "rec-4", records[0].ID)
	assert.Equal(t, "rec-0", records[4].ID)

	records, err = store.List(context.Background(), ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec-3", records[1].ID)
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestFilter(t *testing.T) {
	evaluator, err := hcel.NewEvaluator()
	require.NoError(t, err)
	store := seedStore(t)

	tests := []struct {
		name    string
		expr    string
		limit   int
		wantIDs []string
	}{
		{name: "by message", expr: `exception_message == "timeout"`, wantIDs: []string{"rec-4", "rec-2", "rec-0"}},
		{name: "by attempts", expr: `attempts >= 3`, wantIDs: []string{"rec-4", "rec-3"}},
		{name: "with limit", expr: `original_topic == "user.created"`, limit: 1, wantIDs: []string{"rec-4"}},
		{name: "nothing", expr: `size(event) > 0`, wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := NewFilter(evaluator, tt.expr)
			require.NoError(t, err)

			records, err := store.List(context.Background(), ListOptions{Limit: tt.limit, Filter: filter})
			require.NoError(t, err)

			ids := make([]string, 0, len(records))
			for _, rec := range records {
				ids = append(ids, rec.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestNewFilter_RejectsNonBool(t *testing.T) {
	evaluator, err := hcel.NewEvaluator()
	require.NoError(t, err)

	_, err = NewFilter(evaluator, `attempts`)
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	mem := broker.NewMemoryBroker(1)
	defer mem.Close()

	store := NewMemoryStore()
	rec := Record{
		ID:            "rec-1",
		Key:           "u1",
		Payload:       []byte(`{"user_id":"u1"}`),
		OriginalTopic: "user.created",
	}
	require.NoError(t, store.Save(context.Background(), rec))

	_, err := Replay(context.Background(), store, mem.Producer(), "rec-1")
	require.NoError(t, err)

	msgs := mem.Messages("user.created")
	require.Len(t, msgs, 1)
	assert.Equal(t, rec.Payload, msgs[0].Value)
	assert.Equal(t, "rec-1", msgs[0].Header("dlt-replayed-from"))

	_, err = Replay(context.Background(), store, mem.Producer(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}
