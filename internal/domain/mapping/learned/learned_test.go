package learned

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

func sampleMapping() mapping.ColumnMapping {
	return mapping.ColumnMapping{
		mapping.FieldAccount:  {SourceColumn: "Ship To Name", Confidence: 0.95, Method: mapping.MethodSynonym},
		mapping.FieldProduct:  {SourceColumn: "Product Code", Confidence: 0.95, Method: mapping.MethodSynonym},
		mapping.FieldQuantity: {SourceColumn: "Cases", Confidence: 0.95, Method: mapping.MethodSynonym},
	}
}

func TestSourceKey(t *testing.T) {
	headers := []string{"Ship To Name", "Product Code", "Cases"}

	plain := SourceKey("", headers)
	scoped := SourceKey("dist-42", headers)

	assert.Len(t, plain, 64)
	assert.Equal(t, "dist-42:"+plain, scoped)
	assert.Equal(t, plain, SourceKey("  ", []string{"ship_to_name", "PRODUCT CODE", " cases "}))
	assert.NotEqual(t, plain, SourceKey("", []string{"Cases", "Product Code", "Ship To Name"}))
}

func TestMemoryStore_RecordSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	first, err := store.RecordSuccess(ctx, uuid.New(), "key", sampleMapping(), 0.8, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 1, first.SuccessCount)
	assert.Equal(t, 0.8, first.Confidence)
	require.NotNil(t, first.LastSuccessAt)

	t.Run("reuse increments monotonically", func(t *testing.T) {
		prevCount, prevConf := first.SuccessCount, first.Confidence
		for i := 0; i < 5; i++ {
			rec, err := store.RecordSuccess(ctx, uuid.New(), "key", sampleMapping(), 0.75, 0.01)
			require.NoError(t, err)
			assert.Equal(t, prevCount+1, rec.SuccessCount)
			assert.GreaterOrEqual(t, rec.Confidence, prevConf)
			assert.Equal(t, first.ID, rec.ID)
			prevCount, prevConf = rec.SuccessCount, rec.Confidence
		}
		assert.InDelta(t, 0.85, prevConf, 1e-9)
	})

	t.Run("same outcome applied twice", func(t *testing.T) {
		outcome := uuid.New()
		a, err := store.RecordSuccess(ctx, outcome, "key", sampleMapping(), 0.9, 0.01)
		require.NoError(t, err)
		b, err := store.RecordSuccess(ctx, outcome, "key", sampleMapping(), 0.9, 0.01)
		require.NoError(t, err)
		assert.Equal(t, a.SuccessCount, b.SuccessCount)
		assert.Equal(t, a.Confidence, b.Confidence)
	})

	t.Run("different mapping supersedes", func(t *testing.T) {
		before, err := store.Current(ctx, "key")
		require.NoError(t, err)

		changed := sampleMapping()
		changed[mapping.FieldQuantity] = mapping.FieldMapping{SourceColumn: "Units", Confidence: 0.9, Method: mapping.MethodSynonym}
		rec, err := store.RecordSuccess(ctx, uuid.New(), "key", changed, 0.9, 0.01)
		require.NoError(t, err)
		assert.NotEqual(t, before.ID, rec.ID)
		assert.Equal(t, 1, rec.SuccessCount)

		history, err := store.History(ctx, "key")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, rec.ID, history[0].ID)
		assert.Nil(t, history[0].SupersededAt)
		require.NotNil(t, history[1].SupersededAt)
		assert.Equal(t, before.SuccessCount, history[1].SuccessCount)

		current, err := store.Current(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, current.ID)
	})
}

func TestMemoryStore_CurrentMissing(t *testing.T) {
	rec, err := NewMemoryStore().Current(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestReusable(t *testing.T) {
	rec := &mapping.MappingHistoryRecord{SourceKey: "key", Mapping: sampleMapping(), Confidence: 0.82}

	t.Run("rebinds to actual header text", func(t *testing.T) {
		got, ok := Reusable(rec, []string{"SHIP TO NAME", "Product Code", "Cases", "Extra"}, 0.7)
		require.True(t, ok)
		assert.Equal(t, "SHIP TO NAME", got[mapping.FieldAccount].SourceColumn)
		assert.Equal(t, mapping.MethodLearned, got[mapping.FieldProduct].Method)
		assert.Equal(t, 0.82, got[mapping.FieldQuantity].Confidence)
	})

	t.Run("below threshold", func(t *testing.T) {
		_, ok := Reusable(rec, []string{"Ship To Name", "Product Code", "Cases"}, 0.9)
		assert.False(t, ok)
	})

	t.Run("column disappeared", func(t *testing.T) {
		_, ok := Reusable(rec, []string{"Ship To Name", "Product Code"}, 0.7)
		assert.False(t, ok)
	})

	t.Run("superseded", func(t *testing.T) {
		now := time.Now()
		old := *rec
		old.SupersededAt = &now
		_, ok := Reusable(&old, []string{"Ship To Name", "Product Code", "Cases"}, 0.7)
		assert.False(t, ok)
	})

	t.Run("nil record", func(t *testing.T) {
		_, ok := Reusable(nil, nil, 0.7)
		assert.False(t, ok)
	})
}

func TestFields(t *testing.T) {
	rec := &mapping.MappingHistoryRecord{SourceKey: "key", Mapping: sampleMapping(), Confidence: 0.82}

	tests := []struct {
		name      string
		rec       *mapping.MappingHistoryRecord
		headers   []string
		threshold float64
		want      map[mapping.CanonicalField]string
	}{
		{
			name:      "keeps the columns still present",
			rec:       rec,
			headers:   []string{"ship to name", "Cases", "Item"},
			threshold: 0.7,
			want:      map[mapping.CanonicalField]string{mapping.FieldAccount: "ship to name", mapping.FieldQuantity: "Cases"},
		},
		{
			name:      "below threshold",
			rec:       rec,
			headers:   []string{"Ship To Name", "Cases"},
			threshold: 0.9,
		},
		{
			name:      "nothing present",
			rec:       rec,
			headers:   []string{"Region"},
			threshold: 0.7,
			want:      map[mapping.CanonicalField]string{},
		},
		{
			name:      "nil record",
			threshold: 0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fields(tt.rec, tt.headers, tt.threshold)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.Len(t, got, len(tt.want))
			for field, col := range tt.want {
				assert.Equal(t, col, got[field].SourceColumn)
				assert.Equal(t, mapping.MethodLearned, got[field].Method)
				assert.Equal(t, 0.82, got[field].Confidence)
			}
		})
	}
}
