package deadletter

import (
	"context"
	"sort"
	"sync"

	apperrors "herald/pkg/errors"
)

type ListOptions struct {
	Limit int
	// Filter, when set, keeps only matching records.
	Filter *Filter
}

type Store interface {
	// Save inserts or replaces the record with the same ID.
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]Record, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, apperrors.ErrNotFound.WithDetail("record_id", id)
	}
	return rec, nil
}

func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	s.mu.RLock()
	all := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, rec)
	}
	s.mu.RUnlock()

	sortNewestFirst(all)
	return applyOptions(ctx, all, opts)
}

func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].ReceivedAt.Equal(records[j].ReceivedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].ReceivedAt.After(records[j].ReceivedAt)
	})
}

func applyOptions(ctx context.Context, records []Record, opts ListOptions) ([]Record, error) {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if opts.Filter != nil {
			ok, err := opts.Filter.Match(ctx, rec)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, rec)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}
