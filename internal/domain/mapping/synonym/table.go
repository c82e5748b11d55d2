package synonym

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Table is the process-wide synonym table. It serves matches from an
// immutable snapshot that Refresh swaps in after reloading the store.
type Table struct {
	store  Store
	logger *slog.Logger

	mu      sync.RWMutex
	matcher *Matcher
	index   *Index
}

// NewTable creates an empty table backed by store. Call Refresh to load it.
func NewTable(store Store, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		store:   store,
		logger:  logger,
		matcher: NewMatcher(nil),
	}
}

// Refresh reloads global synonyms from the store and rebuilds the matcher and suggestion index.
func (t *Table) Refresh(ctx context.Context) error {
	entries, err := t.store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("load synonyms: %w", err)
	}

	matcher := NewMatcher(entries)

	t.mu.RLock()
	index := t.index
	t.mu.RUnlock()
	if index == nil {
		if index, err = NewIndex(); err != nil {
			return err
		}
	}
	if err := index.Rebuild(entries); err != nil {
		return err
	}

	t.mu.Lock()
	t.matcher = matcher
	t.index = index
	t.mu.Unlock()

	indexed, err := index.DocumentCount()
	if err != nil {
		t.logger.Warn("failed to count indexed synonyms", "error", err)
	}
	t.logger.Debug("synonym table refreshed", "variants", matcher.Size(), "indexed", indexed)
	return nil
}

// Match proposes fields for headers. Organization-scoped synonyms (hints plus
// those stored for organizationID) outrank global ones header by header.
func (t *Table) Match(ctx context.Context, headers []string, organizationID string, hints []mapping.FieldSynonym) []mapping.Proposal {
	t.mu.RLock()
	global := t.matcher
	t.mu.RUnlock()

	scoped := t.organizationSynonyms(ctx, organizationID, hints)
	if len(scoped) == 0 {
		return global.Match(headers)
	}

	orgMatcher := NewMatcher(scoped)
	var proposals []mapping.Proposal
	for _, h := range headers {
		if p, ok := orgMatcher.MatchHeader(h); ok {
			proposals = append(proposals, p)
			continue
		}
		if p, ok := global.MatchHeader(h); ok {
			proposals = append(proposals, p)
		}
	}
	return proposals
}

func (t *Table) organizationSynonyms(ctx context.Context, organizationID string, hints []mapping.FieldSynonym) []mapping.FieldSynonym {
	scoped := make([]mapping.FieldSynonym, 0, len(hints))
	for _, h := range hints {
		h.Scope = mapping.ScopeOrganization
		if h.Weight <= 0 {
			h.Weight = 1
		}
		if h.OrganizationID == "" {
			h.OrganizationID = organizationID
		}
		scoped = append(scoped, h)
	}
	if organizationID == "" {
		return scoped
	}

	stored, err := t.store.List(ctx, organizationID)
	if err != nil {
		t.logger.Warn("failed to load organization synonyms",
			"organization_id", organizationID, "error", err)
		return scoped
	}
	for _, s := range stored {
		if s.Scope == mapping.ScopeOrganization {
			scoped = append(scoped, s)
		}
	}
	return scoped
}

// Suggest returns the closest canonical field for an unresolved header.
func (t *Table) Suggest(header string) (Suggestion, bool) {
	t.mu.RLock()
	index := t.index
	t.mu.RUnlock()
	if index == nil {
		return Suggestion{}, false
	}

	hits, err := index.Suggest(header, 1)
	if err != nil {
		t.logger.Warn("synonym suggestion failed", "header", header, "error", err)
		return Suggestion{}, false
	}
	if len(hits) == 0 {
		return Suggestion{}, false
	}
	return hits[0], true
}

// Size returns the number of global variants currently loaded.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.matcher.Size()
}

// Store exposes the backing store for the feedback writer.
func (t *Table) Store() Store {
	return t.store
}

// Close releases the suggestion index.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.index == nil {
		return nil
	}
	return t.index.Close()
}
