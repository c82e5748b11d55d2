package valueinfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

func TestAnalyzer_Analyze(t *testing.T) {
	headers := []string{"Col A", "Col B", "Col C", "Col D", "Col E"}
	rows := []mapping.SampleRow{
		mapping.Row("01/15/2024", "$1,234.56", "12", "Acme Liquors", 45306),
		mapping.Row("01/16/2024", "$99.90", "3", "Corner Store", 45307),
		mapping.Row("2024-01-17", "12.50", "40", "Bottle Shop", 45308),
		mapping.Row(nil, "7.25", "1,200", "Wine Bar", nil),
	}

	a := NewAnalyzer(mapping.DefaultPolicy())
	proposals := a.Analyze(headers, rows, []int{0, 1, 2, 3, 4})

	byColumn := map[string]mapping.Proposal{}
	for _, p := range proposals {
		byColumn[p.Column] = p
		assert.Equal(t, mapping.MethodValueInference, p.Method)
	}

	require.Contains(t, byColumn, "Col A")
	assert.Equal(t, mapping.FieldDate, byColumn["Col A"].Field)
	assert.Equal(t, DateConfidence, byColumn["Col A"].Confidence)

	require.Contains(t, byColumn, "Col B")
	assert.Equal(t, mapping.FieldRevenue, byColumn["Col B"].Field)

	require.Contains(t, byColumn, "Col C")
	assert.Equal(t, mapping.FieldQuantity, byColumn["Col C"].Field)
	assert.Equal(t, QuantityConfidence, byColumn["Col C"].Confidence)

	assert.NotContains(t, byColumn, "Col D", "text columns are never inferred")

	require.Contains(t, byColumn, "Col E")
	assert.Equal(t, mapping.FieldDate, byColumn["Col E"].Field, "spreadsheet serial dates")
}

func TestAnalyzer_Thresholds(t *testing.T) {
	headers := []string{"Mixed", "Big"}
	rows := []mapping.SampleRow{
		mapping.Row("2024-01-01", "25000"),
		mapping.Row("abc", "30000"),
		mapping.Row("def", "50000"),
		mapping.Row("2024-01-04", "99999"),
	}

	a := NewAnalyzer(mapping.DefaultPolicy())
	assert.Empty(t, a.Analyze(headers, rows, []int{0, 1}))
}

func TestAnalyzer_AllNullColumn(t *testing.T) {
	a := NewAnalyzer(mapping.DefaultPolicy())
	rows := []mapping.SampleRow{mapping.Row(nil), mapping.Row("  ")}
	assert.Empty(t, a.Analyze([]string{"Empty"}, rows, []int{0}))
}

func TestAnalyzer_SampleLimit(t *testing.T) {
	policy := mapping.DefaultPolicy()
	policy.SampleRowLimit = 2
	a := NewAnalyzer(policy)

	rows := []mapping.SampleRow{
		mapping.Row("5"), mapping.Row("6"),
		mapping.Row("x"), mapping.Row("y"), mapping.Row("z"),
	}
	proposals := a.Analyze([]string{"Units"}, rows, []int{0})
	require.Len(t, proposals, 1)
	assert.Equal(t, mapping.FieldQuantity, proposals[0].Field)
}

func TestCandidates(t *testing.T) {
	headers := []string{"Invoice Date", "Foo", "Bar"}
	proposals := []mapping.Proposal{
		{Field: mapping.FieldDate, Column: "Invoice Date", Confidence: 0.95},
		{Field: mapping.FieldQuantity, Column: "Foo", Confidence: 0.6},
	}
	assert.Equal(t, []int{1, 2}, Candidates(headers, proposals, 0.7))
}

func TestAnalyzer_WholeNumberColumns(t *testing.T) {
	a := NewAnalyzer(mapping.DefaultPolicy())

	tests := []struct {
		name   string
		header string
		rows   []mapping.SampleRow
		want   mapping.CanonicalField
	}{
		{
			name:   "whole dollar amounts under a money header",
			header: "Net Amount",
			rows:   []mapping.SampleRow{mapping.Row(120.0), mapping.Row(250.0), mapping.Row(75.0)},
			want:   mapping.FieldRevenue,
		},
		{
			name:   "whole numbers under a neutral header",
			header: "Col F",
			rows:   []mapping.SampleRow{mapping.Row(120.0), mapping.Row(250.0), mapping.Row(75.0)},
			want:   mapping.FieldQuantity,
		},
		{
			name:   "grouped integers are counts",
			header: "Col G",
			rows:   []mapping.SampleRow{mapping.Row("1,200"), mapping.Row("2,400"), mapping.Row("36")},
			want:   mapping.FieldQuantity,
		},
		{
			name:   "european grouped integers are counts",
			header: "Col H",
			rows:   []mapping.SampleRow{mapping.Row("1.200"), mapping.Row("2.400"), mapping.Row("36")},
			want:   mapping.FieldQuantity,
		},
		{
			name:   "count header wins over a money word",
			header: "Sales Qty",
			rows:   []mapping.SampleRow{mapping.Row("12"), mapping.Row("30"), mapping.Row("6")},
			want:   mapping.FieldQuantity,
		},
		{
			name:   "currency symbols mark revenue",
			header: "Col I",
			rows:   []mapping.SampleRow{mapping.Row("$120"), mapping.Row("$250"), mapping.Row("$75")},
			want:   mapping.FieldRevenue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposals := a.Analyze([]string{tt.header}, tt.rows, []int{0})
			require.Len(t, proposals, 1)
			assert.Equal(t, tt.want, proposals[0].Field)
		})
	}
}
