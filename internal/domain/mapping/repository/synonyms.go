package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/normalizer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/synonym"
)

// SynonymRepository implements synonym.Store using PostgreSQL.
type SynonymRepository struct {
	db DB
}

var _ synonym.Store = (*SynonymRepository)(nil)

// NewSynonymRepository creates a new PostgreSQL-backed synonym repository
func NewSynonymRepository(db DB) *SynonymRepository {
	return &SynonymRepository{db: db}
}

// List returns global synonyms plus those scoped to organizationID.
func (r *SynonymRepository) List(ctx context.Context, organizationID string) ([]mapping.FieldSynonym, error) {
	rows, err := r.db.Query(ctx, `
		SELECT field, variant, scope, organization_id, weight, usage_count
		FROM field_synonyms
		WHERE scope = 'global' OR (scope = 'organization' AND organization_id = $1 AND $1 <> '')
		ORDER BY created_at, field, variant
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list synonyms: %w", err)
	}
	defer rows.Close()

	var out []mapping.FieldSynonym
	for rows.Next() {
		var (
			field, scope string
			s            mapping.FieldSynonym
		)
		if err := rows.Scan(&field, &s.Variant, &scope, &s.OrganizationID, &s.Weight, &s.UsageCount); err != nil {
			return nil, fmt.Errorf("failed to scan synonym: %w", err)
		}
		f, ok := mapping.ParseField(field)
		if !ok {
			continue
		}
		s.Field = f
		s.Scope = mapping.Scope(scope)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate synonyms: %w", err)
	}
	return out, nil
}

// Upsert inserts a synonym or replaces its weight, keeping the usage counter.
func (r *SynonymRepository) Upsert(ctx context.Context, s mapping.FieldSynonym) error {
	s = normalizeSynonym(s)
	_, err := r.db.Exec(ctx, `
		INSERT INTO field_synonyms (field, variant, scope, organization_id, weight)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (field, variant, scope, organization_id) DO UPDATE SET
			weight = EXCLUDED.weight,
			updated_at = now()
	`, string(s.Field), s.Variant, string(s.Scope), s.OrganizationID, s.Weight)
	if err != nil {
		return fmt.Errorf("failed to upsert synonym %s/%s: %w", s.Field, s.Variant, err)
	}
	return nil
}

// Seed inserts entries that do not exist yet and leaves existing rows untouched.
// It returns the number of inserted rows.
func (r *SynonymRepository) Seed(ctx context.Context, entries []mapping.FieldSynonym) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, e := range entries {
		e = normalizeSynonym(e)
		tag, err := tx.Exec(ctx, `
			INSERT INTO field_synonyms (field, variant, scope, organization_id, weight)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (field, variant, scope, organization_id) DO NOTHING
		`, string(e.Field), e.Variant, string(e.Scope), e.OrganizationID, e.Weight)
		if err != nil {
			return 0, fmt.Errorf("failed to seed synonym %s/%s: %w", e.Field, e.Variant, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit synonym seed: %w", err)
	}
	return inserted, nil
}

// RecordUsage increments usage and raises weights for keys once per outcome.
func (r *SynonymRepository) RecordUsage(ctx context.Context, outcomeID uuid.UUID, keys []mapping.SynonymKey, boost float64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, markAppliedQuery, outcomeID, kindSynonyms)
	if err != nil {
		return fmt.Errorf("failed to mark outcome applied: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	seen := make(map[mapping.SynonymKey]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		scope := key.Scope
		if scope == "" {
			scope = mapping.ScopeGlobal
		}
		_, err := tx.Exec(ctx, `
			UPDATE field_synonyms
			SET usage_count = usage_count + 1,
				weight = LEAST(1.0, weight + $5),
				updated_at = now()
			WHERE field = $1 AND variant = $2 AND scope = $3 AND organization_id = $4
		`, string(key.Field), key.Variant, string(scope), key.OrganizationID, boost)
		if err != nil {
			return fmt.Errorf("failed to record synonym usage %s/%s: %w", key.Field, key.Variant, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit synonym usage: %w", err)
	}
	return nil
}

func normalizeSynonym(s mapping.FieldSynonym) mapping.FieldSynonym {
	s.Variant = normalizer.NormalizeHeader(s.Variant)
	if s.Scope == "" {
		s.Scope = mapping.ScopeGlobal
	}
	s.Weight = mapping.Clamp01(s.Weight)
	return s
}
