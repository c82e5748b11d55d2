package learned

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]mapping.MappingHistoryRecord // by source key, oldest first
	applied map[uuid.UUID]struct{}
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]mapping.MappingHistoryRecord),
		applied: make(map[uuid.UUID]struct{}),
		now:     time.Now,
	}
}

func (s *MemoryStore) Current(_ context.Context, sourceKey string) (*mapping.MappingHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(sourceKey), nil
}

func (s *MemoryStore) current(sourceKey string) *mapping.MappingHistoryRecord {
	recs := s.records[sourceKey]
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].SupersededAt == nil {
			rec := recs[i]
			rec.Mapping = rec.Mapping.Clone()
			return &rec
		}
	}
	return nil
}

func (s *MemoryStore) RecordSuccess(_ context.Context, outcomeID uuid.UUID, sourceKey string, m mapping.ColumnMapping, confidence, boost float64) (*mapping.MappingHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.applied[outcomeID]; done {
		return s.current(sourceKey), nil
	}

	current := s.current(sourceKey)
	next, superseded := NextRecord(current, sourceKey, m, confidence, boost, s.now())

	recs := s.records[sourceKey]
	for i := range recs {
		if superseded != nil && recs[i].ID == superseded.ID {
			recs[i] = *superseded
		}
		if recs[i].ID == next.ID {
			recs[i] = *next
		}
	}
	if current == nil || superseded != nil {
		recs = append(recs, *next)
	}
	s.records[sourceKey] = recs
	s.applied[outcomeID] = struct{}{}

	out := *next
	out.Mapping = next.Mapping.Clone()
	return &out, nil
}

func (s *MemoryStore) History(_ context.Context, sourceKey string) ([]mapping.MappingHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[sourceKey]
	out := make([]mapping.MappingHistoryRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		out = append(out, recs[i])
	}
	return out, nil
}
