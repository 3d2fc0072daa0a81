package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/google/uuid"
)

// MemorySampleStore is an in-memory SampleStore with the same ordering rules as the
// PostgreSQL queue. It is used by property tests that drive many operations.
type MemorySampleStore struct {
	mu         sync.Mutex
	seq        int64
	rows       map[uuid.UUID]*memoryRow
	DeadLetter []models.QueuedSample
}

type memoryRow struct {
	seq    int64
	leased bool
	item   models.QueuedSample
}

func NewMemorySampleStore() *MemorySampleStore {
	return &MemorySampleStore{rows: make(map[uuid.UUID]*memoryRow)}
}

func (s *MemorySampleStore) InsertSample(_ context.Context, item models.QueuedSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.rows[item.ID] = &memoryRow{seq: s.seq, item: item}

	return nil
}

func (s *MemorySampleStore) LeaseSamples(_ context.Context, limit int) ([]models.QueuedSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.pending()
	if len(pending) > limit {
		pending = pending[:limit]
	}

	items := make([]models.QueuedSample, 0, len(pending))
	for _, row := range pending {
		row.leased = true
		item := row.item
		item.State = models.StatePending
		if item.RetryCount > 0 {
			item.State = models.StateFailed
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *MemorySampleStore) RequeueSample(_ context.Context, item models.QueuedSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.rows[item.ID] = &memoryRow{seq: s.seq, item: item}

	return nil
}

func (s *MemorySampleStore) DeleteSample(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, id)

	return nil
}

func (s *MemorySampleStore) AbandonSample(_ context.Context, item models.QueuedSample, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, item.ID)
	s.DeadLetter = append(s.DeadLetter, item)

	return nil
}

func (s *MemorySampleStore) CountPending(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending()), nil
}

func (s *MemorySampleStore) EvictOldest(_ context.Context, count int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.pending()
	if len(pending) > count {
		pending = pending[:count]
	}
	for _, row := range pending {
		delete(s.rows, row.item.ID)
	}

	return int64(len(pending)), nil
}

func (s *MemorySampleStore) ResetInFlight(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reset int64
	for _, row := range s.rows {
		if row.leased {
			row.leased = false
			reset++
		}
	}

	return reset, nil
}

// Stored returns the number of rows, leased ones included.
func (s *MemorySampleStore) Stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rows)
}

func (s *MemorySampleStore) pending() []*memoryRow {
	var rows []*memoryRow
	for _, row := range s.rows {
		if !row.leased {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	return rows
}
