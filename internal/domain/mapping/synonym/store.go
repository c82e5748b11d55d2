package synonym

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/normalizer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Store persists synonyms and their usage counters.
type Store interface {
	// List returns the global synonyms plus those scoped to organizationID (if any).
	List(ctx context.Context, organizationID string) ([]mapping.FieldSynonym, error)
	// Upsert inserts a synonym or replaces its weight.
	Upsert(ctx context.Context, s mapping.FieldSynonym) error
	// RecordUsage increments the usage counter and raises the weight by boost
	// (capped at 1) for every key. Applying the same outcomeID twice is a no-op.
	RecordUsage(ctx context.Context, outcomeID uuid.UUID, keys []mapping.SynonymKey, boost float64) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[mapping.SynonymKey]mapping.FieldSynonym
	order   []mapping.SynonymKey
	applied map[uuid.UUID]struct{}
}

// NewMemoryStore creates a store holding the given synonyms.
func NewMemoryStore(seed []mapping.FieldSynonym) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[mapping.SynonymKey]mapping.FieldSynonym, len(seed)),
		applied: make(map[uuid.UUID]struct{}),
	}
	for _, e := range seed {
		s.put(e)
	}
	return s
}

func (s *MemoryStore) put(e mapping.FieldSynonym) {
	e.Variant = normalizer.NormalizeHeader(e.Variant)
	if e.Scope == "" {
		e.Scope = mapping.ScopeGlobal
	}
	e.Weight = mapping.Clamp01(e.Weight)
	key := e.Key()
	if existing, ok := s.entries[key]; ok {
		e.UsageCount = existing.UsageCount
	} else {
		s.order = append(s.order, key)
	}
	s.entries[key] = e
}

func (s *MemoryStore) List(_ context.Context, organizationID string) ([]mapping.FieldSynonym, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]mapping.FieldSynonym, 0, len(s.order))
	for _, key := range s.order {
		if key.Scope == mapping.ScopeOrganization && (organizationID == "" || key.OrganizationID != organizationID) {
			continue
		}
		out = append(out, s.entries[key])
	}
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, e mapping.FieldSynonym) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(e)
	return nil
}

func (s *MemoryStore) RecordUsage(_ context.Context, outcomeID uuid.UUID, keys []mapping.SynonymKey, boost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.applied[outcomeID]; done {
		return nil
	}
	s.applied[outcomeID] = struct{}{}

	seen := make(map[mapping.SynonymKey]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		e, ok := s.entries[key]
		if !ok {
			continue
		}
		e.UsageCount++
		e.Weight = mapping.Clamp01(e.Weight + boost)
		s.entries[key] = e
	}
	return nil
}

// Get returns a single synonym by key.
func (s *MemoryStore) Get(key mapping.SynonymKey) (mapping.FieldSynonym, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}
