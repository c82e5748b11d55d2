package synonym

import (
	_ "embed"
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/normalizer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

//go:embed seed.csv
var seedCSV []byte

type seedRow struct {
	Field   string  `csv:"field"`
	Variant string  `csv:"variant"`
	Weight  float64 `csv:"weight"`
}

// Seed returns the built-in global synonyms.
func Seed() ([]mapping.FieldSynonym, error) {
	return ParseSeed(seedCSV)
}

// ParseSeed decodes a field,variant,weight CSV into global synonyms.
func ParseSeed(data []byte) ([]mapping.FieldSynonym, error) {
	var rows []seedRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse synonym seed: %w", err)
	}

	out := make([]mapping.FieldSynonym, 0, len(rows))
	for i, row := range rows {
		field, ok := mapping.ParseField(row.Field)
		if !ok {
			return nil, fmt.Errorf("synonym seed row %d: unknown field %q", i+2, row.Field)
		}
		out = append(out, mapping.FieldSynonym{
			Field:   field,
			Variant: normalizer.NormalizeHeader(row.Variant),
			Scope:   mapping.ScopeGlobal,
			Weight:  mapping.Clamp01(row.Weight),
		})
	}
	return out, nil
}
