package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/learned"
)

const historyColumns = `id, source_key, mapping, confidence, success_count, created_at, last_success_at, superseded_at`

const historyLockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

// HistoryRepository implements learned.Store using PostgreSQL.
type HistoryRepository struct {
	db  DB
	now func() time.Time
}

var _ learned.Store = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new PostgreSQL-backed history repository
func NewHistoryRepository(db DB) *HistoryRepository {
	return &HistoryRepository{db: db, now: time.Now}
}

// Current returns the active record for sourceKey, or nil when none exists.
func (r *HistoryRepository) Current(ctx context.Context, sourceKey string) (*mapping.MappingHistoryRecord, error) {
	rec, err := r.current(ctx, r.db, sourceKey, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping history: %w", err)
	}
	return rec, nil
}

func (r *HistoryRepository) current(ctx context.Context, q querier, sourceKey string, lock bool) (*mapping.MappingHistoryRecord, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM mapping_history
		WHERE source_key = $1 AND superseded_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	if lock {
		query += ` FOR UPDATE`
	}

	rec, err := scanRecord(q.QueryRow(ctx, query, sourceKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// RecordSuccess applies an accepted outcome inside one transaction. The
// applied_outcomes row makes a retried outcome a no-op. A transaction-scoped
// advisory lock on the source key serializes writers, including the first
// insert for a key where FOR UPDATE has no row to lock.
func (r *HistoryRepository) RecordSuccess(ctx context.Context, outcomeID uuid.UUID, sourceKey string, m mapping.ColumnMapping, confidence, boost float64) (*mapping.MappingHistoryRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, historyLockQuery, sourceKey); err != nil {
		return nil, fmt.Errorf("failed to lock source key: %w", err)
	}

	tag, err := tx.Exec(ctx, markAppliedQuery, outcomeID, kindHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to mark outcome applied: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, err := r.current(ctx, tx, sourceKey, false)
		if err != nil {
			return nil, fmt.Errorf("failed to get mapping history: %w", err)
		}
		return current, nil
	}

	current, err := r.current(ctx, tx, sourceKey, true)
	if err != nil {
		return nil, fmt.Errorf("failed to lock mapping history: %w", err)
	}

	next, superseded := learned.NextRecord(current, sourceKey, m, confidence, boost, r.now().UTC())

	if superseded != nil {
		_, err = tx.Exec(ctx, `UPDATE mapping_history SET superseded_at = $2 WHERE id = $1`,
			superseded.ID, superseded.SupersededAt)
		if err != nil {
			return nil, fmt.Errorf("failed to supersede mapping: %w", err)
		}
	}

	if current == nil || superseded != nil {
		err = insertRecord(ctx, tx, next)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE mapping_history
			SET success_count = $2, confidence = $3, last_success_at = $4
			WHERE id = $1
		`, next.ID, next.SuccessCount, next.Confidence, next.LastSuccessAt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save mapping history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit mapping history: %w", err)
	}
	return next, nil
}

func insertRecord(ctx context.Context, tx pgx.Tx, rec *mapping.MappingHistoryRecord) error {
	raw, err := json.Marshal(rec.Mapping)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO mapping_history (`+historyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.SourceKey, raw, rec.Confidence, rec.SuccessCount, rec.CreatedAt, rec.LastSuccessAt, rec.SupersededAt)
	return err
}

// History returns every record for sourceKey, newest first.
func (r *HistoryRepository) History(ctx context.Context, sourceKey string) ([]mapping.MappingHistoryRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+historyColumns+`
		FROM mapping_history
		WHERE source_key = $1
		ORDER BY created_at DESC, success_count DESC
	`, sourceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping history: %w", err)
	}
	defer rows.Close()

	var records []mapping.MappingHistoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping history: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mapping history: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*mapping.MappingHistoryRecord, error) {
	var (
		rec mapping.MappingHistoryRecord
		raw []byte
	)
	err := row.Scan(
		&rec.ID, &rec.SourceKey, &raw, &rec.Confidence, &rec.SuccessCount,
		&rec.CreatedAt, &rec.LastSuccessAt, &rec.SupersededAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Mapping); err != nil {
		return nil, fmt.Errorf("failed to decode mapping for %s: %w", rec.ID, err)
	}
	return &rec, nil
}
