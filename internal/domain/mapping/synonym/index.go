package synonym

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	bmapping "github.com/blevesearch/bleve/v2/mapping"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Suggestion is the closest canonical field for a header no detector resolved.
type Suggestion struct {
	Field   mapping.CanonicalField
	Variant string
	Score   float64
}

type indexDocument struct {
	Field   string `json:"field"`
	Variant string `json:"variant"`
}

// Index is an in-memory full-text index over synonym variants.
type Index struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewIndex creates an empty in-memory index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create synonym index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() bmapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("field", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("variant", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// Rebuild replaces the indexed documents with entries.
func (i *Index) Rebuild(entries []mapping.FieldSynonym) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create synonym index: %w", err)
	}

	batch := idx.NewBatch()
	for _, e := range entries {
		if e.Variant == "" {
			continue
		}
		id := string(e.Field) + "|" + e.Variant
		if err := batch.Index(id, indexDocument{Field: string(e.Field), Variant: e.Variant}); err != nil {
			return fmt.Errorf("failed to index synonym %s: %w", id, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}

	old := i.index
	i.index = idx
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Suggest returns the best-scoring variants for a header, allowing one typo per term.
func (i *Index) Suggest(header string, limit int) ([]Suggestion, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.index == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 3
	}

	query := bleve.NewMatchQuery(header)
	query.SetField("variant")
	query.SetFuzziness(1)

	req := bleve.NewSearchRequest(query)
	req.Size = limit
	req.Fields = []string{"field", "variant"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("synonym search failed: %w", err)
	}

	out := make([]Suggestion, 0, len(res.Hits))
	for _, hit := range res.Hits {
		fieldName, _ := hit.Fields["field"].(string)
		field, ok := mapping.ParseField(fieldName)
		if !ok {
			continue
		}
		variant, _ := hit.Fields["variant"].(string)
		out = append(out, Suggestion{Field: field, Variant: variant, Score: hit.Score})
	}
	return out, nil
}

// DocumentCount returns the number of indexed variants.
func (i *Index) DocumentCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.index == nil {
		return 0, nil
	}
	return i.index.DocCount()
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.index == nil {
		return nil
	}
	err := i.index.Close()
	i.index = nil
	return err
}
