package transform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
	"github.com/FACorreiaa/depletion-mapper/pkg/money"
)

func columns(pairs ...string) mapping.ColumnMapping {
	m := mapping.ColumnMapping{}
	for i := 0; i+1 < len(pairs); i += 2 {
		m[mapping.CanonicalField(pairs[i])] = mapping.FieldMapping{SourceColumn: pairs[i+1], Confidence: 0.9, Method: mapping.MethodSynonym}
	}
	return m
}

var (
	scenarioHeaders = []string{"Invoice Date", "Ship To Name", "Product Code", "Extended Price", "Cases", "Rep Name"}
	scenarioMapping = columns(
		"date", "Invoice Date",
		"account", "Ship To Name",
		"product", "Product Code",
		"revenue", "Extended Price",
		"quantity", "Cases",
		"representative", "Rep Name",
	)
)

func TestTransform_DepletionWithoutDateOrRevenue(t *testing.T) {
	headers := []string{"Account", "Product", "Quantity"}
	in := mapping.TransformInput{
		Headers: headers,
		Mapping: columns("account", "Account", "product", "Product", "quantity", "Quantity"),
		Rows: []mapping.SampleRow{
			mapping.Row("Joe's Liquor", "Pinot Noir 750", "12"),
			mapping.Row("Corner Market", "Merlot 750", 3),
			mapping.Row("Bar Centro", "Rose 750", nil),
		},
	}
	tr := New(mapping.DefaultPolicy(), nil)

	t.Run("with default period", func(t *testing.T) {
		in := in
		in.DefaultPeriod = "2024-03"
		res, err := tr.Transform(in)
		require.NoError(t, err)

		assert.Equal(t, 1.0, res.SuccessRate)
		assert.Equal(t, 3, res.ValidCount)
		require.Len(t, res.Records, 3)
		for _, rec := range res.Records {
			assert.False(t, rec.HasRevenueData)
			assert.Nil(t, rec.Revenue)
			assert.True(t, rec.Dateless)
			assert.False(t, rec.Incomplete)
			assert.Equal(t, "2024-03", rec.Period)
			assert.Equal(t, mapping.RowValid, rec.Status)
		}
		assert.Equal(t, []int{12, 3, 1}, []int{res.Records[0].Quantity, res.Records[1].Quantity, res.Records[2].Quantity})
		assert.Empty(t, res.Issues)
		assert.Nil(t, res.RevenueTotals)
	})

	t.Run("without default period records are incomplete", func(t *testing.T) {
		res, err := tr.Transform(in)
		require.NoError(t, err)

		assert.Equal(t, 3, res.PartialCount)
		assert.Equal(t, 1.0, res.SuccessRate)
		for _, rec := range res.Records {
			assert.True(t, rec.Incomplete)
			assert.Equal(t, mapping.RowPartiallyValid, rec.Status)
		}
	})
}

func TestTransform_ShortAccountIsRejected(t *testing.T) {
	res, err := New(mapping.DefaultPolicy(), nil).Transform(mapping.TransformInput{
		Headers: []string{"Account", "Product"},
		Mapping: columns("account", "Account", "product", "Product"),
		Rows: []mapping.SampleRow{
			mapping.Row("A", "Chardonnay"),
			mapping.Row("Wine Bar", "Chardonnay"),
		},
		DefaultPeriod: "2024-01",
	})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Records[0].RowIndex)
	assert.Equal(t, 1, res.InvalidCount)
	assert.Equal(t, 0.5, res.SuccessRate)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, mapping.ValidationIssue{
		RowIndex: 0,
		Field:    mapping.FieldAccount,
		Reason:   mapping.ReasonMissingRequired,
		Detail:   `"A" is shorter than 2 characters`,
	}, res.Issues[0])
}

func TestTransform_Normalization(t *testing.T) {
	tr := New(mapping.DefaultPolicy(), nil)

	t.Run("us extract", func(t *testing.T) {
		res, err := tr.Transform(mapping.TransformInput{
			Headers: scenarioHeaders,
			Mapping: scenarioMapping,
			Rows: []mapping.SampleRow{
				mapping.Row("01/15/2024", "Joe's Liquor", "CAB-750", "$1,234.50", "12", "Ann Lee"),
				mapping.Row("01/16/2024", "Corner Market", "MER-750", "$99.00", "3", "Bob Ray"),
			},
		})
		require.NoError(t, err)

		assert.Equal(t, 2, res.ValidCount)
		rec := res.Records[0]
		assert.Equal(t, "2024-01-15", rec.DateISO)
		assert.Equal(t, "2024-01", rec.Period)
		require.NotNil(t, rec.Revenue)
		assert.Equal(t, "1234.5", rec.Revenue.String())
		assert.True(t, rec.HasRevenueData)
		assert.Equal(t, 12, rec.Quantity)
		assert.Equal(t, "Ann Lee", rec.Representative)
		assert.Equal(t, "USD", res.CurrencyHint)
		assert.False(t, res.EuropeanFormat)
		assert.Equal(t, map[string]string{"USD": "1333.50"}, res.RevenueTotals)
	})

	t.Run("european extract", func(t *testing.T) {
		res, err := tr.Transform(mapping.TransformInput{
			Headers: scenarioHeaders,
			Mapping: scenarioMapping,
			Rows: []mapping.SampleRow{
				mapping.Row("15/01/2024", "Garrafeira Nacional", "Douro Tinto", "1.234,56 €", "6", "Rui"),
				mapping.Row("03/02/2024", "Adega Central", "Vinho Verde", "10,00 €", "2", "Rui"),
			},
		})
		require.NoError(t, err)

		assert.True(t, res.EuropeanFormat)
		assert.Equal(t, "2024-01-15", res.Records[0].DateISO)
		assert.Equal(t, "2024-02-03", res.Records[1].DateISO)
		assert.Equal(t, "1234.56", res.Records[0].Revenue.String())
		assert.Equal(t, map[string]string{"EUR": "1244.56"}, res.RevenueTotals)
	})

	t.Run("european grouped quantities", func(t *testing.T) {
		res, err := tr.Transform(mapping.TransformInput{
			Headers: scenarioHeaders,
			Mapping: scenarioMapping,
			Rows: []mapping.SampleRow{
				mapping.Row("15/01/2024", "Garrafeira Nacional", "Douro Tinto", "1.234,56 €", "1.200", "Rui"),
				mapping.Row("03/02/2024", "Adega Central", "Vinho Verde", "10,00 €", "12,0", "Rui"),
			},
		})
		require.NoError(t, err)

		assert.True(t, res.EuropeanFormat)
		assert.Empty(t, res.Issues)
		assert.Equal(t, 2, res.ValidCount)
		assert.Equal(t, 1200, res.Records[0].Quantity)
		assert.Equal(t, 12, res.Records[1].Quantity)
	})

	t.Run("forced dialect wins over detection", func(t *testing.T) {
		us := false
		res, err := tr.Transform(mapping.TransformInput{
			Headers:        []string{"Account", "Product", "Revenue"},
			Mapping:        columns("account", "Account", "product", "Product", "revenue", "Revenue"),
			Rows:           []mapping.SampleRow{mapping.Row("Wine Bar", "Rose", "1,5")},
			EuropeanFormat: &us,
			DefaultPeriod:  "2024-05",
		})
		require.NoError(t, err)
		assert.False(t, res.EuropeanFormat)
		assert.Equal(t, "15", res.Records[0].Revenue.String())
	})

	t.Run("spreadsheet numbers", func(t *testing.T) {
		res, err := tr.Transform(mapping.TransformInput{
			Headers: scenarioHeaders,
			Mapping: scenarioMapping,
			Rows:    []mapping.SampleRow{mapping.Row(45306, "Joe's Liquor", 10045, 99.5, 4.0, nil)},
		})
		require.NoError(t, err)

		rec := res.Records[0]
		assert.Equal(t, mapping.RowValid, rec.Status)
		assert.Equal(t, "2024-01-15", rec.DateISO)
		assert.Equal(t, "10045", rec.Product)
		assert.Equal(t, "99.5", rec.Revenue.String())
		assert.Equal(t, 4, rec.Quantity)
		assert.Empty(t, rec.Representative)
	})
}

func TestTransform_OptionalFieldFailures(t *testing.T) {
	tests := []struct {
		name       string
		row        mapping.SampleRow
		wantField  mapping.CanonicalField
		wantReason mapping.IssueReason
		check      func(t *testing.T, rec mapping.TransformedRecord)
	}{
		{
			name:       "negative revenue",
			row:        mapping.Row("01/15/2024", "Wine Bar", "CAB", "-5.00", "1", ""),
			wantField:  mapping.FieldRevenue,
			wantReason: mapping.ReasonInvalidType,
			check: func(t *testing.T, rec mapping.TransformedRecord) {
				assert.Nil(t, rec.Revenue)
				assert.False(t, rec.HasRevenueData)
			},
		},
		{
			name:       "non-numeric revenue",
			row:        mapping.Row("01/15/2024", "Wine Bar", "CAB", "n/a", "1", ""),
			wantField:  mapping.FieldRevenue,
			wantReason: mapping.ReasonInvalidType,
			check: func(t *testing.T, rec mapping.TransformedRecord) {
				assert.False(t, rec.HasRevenueData)
			},
		},
		{
			name:       "non-numeric quantity",
			row:        mapping.Row("01/15/2024", "Wine Bar", "CAB", "$5.00", "twelve", ""),
			wantField:  mapping.FieldQuantity,
			wantReason: mapping.ReasonInvalidType,
			check: func(t *testing.T, rec mapping.TransformedRecord) {
				assert.Equal(t, DefaultQuantity, rec.Quantity)
			},
		},
		{
			name:       "quantity out of range",
			row:        mapping.Row("01/15/2024", "Wine Bar", "CAB", "$5.00", "20000", ""),
			wantField:  mapping.FieldQuantity,
			wantReason: mapping.ReasonOutOfRange,
		},
		{
			name:       "unparseable date",
			row:        mapping.Row("soon", "Wine Bar", "CAB", "$5.00", "1", ""),
			wantField:  mapping.FieldDate,
			wantReason: mapping.ReasonInvalidType,
			check: func(t *testing.T, rec mapping.TransformedRecord) {
				assert.True(t, rec.Dateless)
				assert.True(t, rec.Incomplete)
			},
		},
	}

	tr := New(mapping.DefaultPolicy(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tr.Transform(mapping.TransformInput{
				Headers: scenarioHeaders,
				Mapping: scenarioMapping,
				Rows:    []mapping.SampleRow{tt.row},
			})
			require.NoError(t, err)

			require.Len(t, res.Records, 1)
			rec := res.Records[0]
			assert.Equal(t, mapping.RowPartiallyValid, rec.Status)
			assert.Equal(t, 1, res.PartialCount)
			require.Len(t, res.Issues, 1)
			assert.Equal(t, tt.wantField, res.Issues[0].Field)
			assert.Equal(t, tt.wantReason, res.Issues[0].Reason)
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

func TestTransform_Duplicates(t *testing.T) {
	tr := New(mapping.DefaultPolicy(), nil)

	t.Run("same product on one order", func(t *testing.T) {
		res, err := tr.Transform(mapping.TransformInput{
			Headers: []string{"Order", "Account", "Product", "Qty"},
			Mapping: columns("order_id", "Order", "account", "Account", "product", "Product", "quantity", "Qty"),
			Rows: []mapping.SampleRow{
				mapping.Row("SO-1", "Wine Bar", "Merlot", 1),
				mapping.Row("SO-1", "Wine Bar", "Rose", 1),
				mapping.Row("so-1", "Wine Bar", "merlot", 5),
			},
			DefaultPeriod: "2024-01",
		})
		require.NoError(t, err)

		assert.Len(t, res.Records, 3)
		require.Len(t, res.Issues, 1)
		assert.Equal(t, mapping.ValidationIssue{
			RowIndex: 2, Field: mapping.FieldOrderID, Reason: mapping.ReasonDuplicate, Detail: "duplicates row 0",
		}, res.Issues[0])
	})

	t.Run("identical lines without an order id", func(t *testing.T) {
		res, err := tr.Transform(mapping.TransformInput{
			Headers: []string{"Account", "Product", "Qty"},
			Mapping: columns("account", "Account", "product", "Product", "quantity", "Qty"),
			Rows: []mapping.SampleRow{
				mapping.Row("Wine Bar", "Merlot", 1),
				mapping.Row("Wine Bar", "Merlot", 2),
				mapping.Row("Wine Bar", "Merlot", 1),
			},
			DefaultPeriod: "2024-01",
		})
		require.NoError(t, err)

		require.Len(t, res.Issues, 1)
		assert.Equal(t, 2, res.Issues[0].RowIndex)
		assert.Equal(t, mapping.FieldProduct, res.Issues[0].Field)
		assert.Equal(t, 3, res.ValidCount)
	})

	t.Run("lines with a blank order id fall back to the full tuple", func(t *testing.T) {
		res, err := tr.Transform(mapping.TransformInput{
			Headers: []string{"Order", "Account", "Product", "Qty"},
			Mapping: columns("order_id", "Order", "account", "Account", "product", "Product", "quantity", "Qty"),
			Rows: []mapping.SampleRow{
				mapping.Row("", "Wine Bar", "Merlot", 1),
				mapping.Row(nil, "Wine Bar", "Merlot", 1),
			},
			DefaultPeriod: "2024-01",
		})
		require.NoError(t, err)

		require.Len(t, res.Issues, 1)
		assert.Equal(t, mapping.ValidationIssue{
			RowIndex: 1, Field: mapping.FieldProduct, Reason: mapping.ReasonDuplicate, Detail: "duplicates row 0",
		}, res.Issues[0])
	})
}

func TestTransform_InvalidInput(t *testing.T) {
	tr := New(mapping.DefaultPolicy(), nil)

	_, err := tr.Transform(mapping.TransformInput{
		Headers: []string{"Account"},
		Mapping: columns("account", "Account"),
	})
	var reqErr *mapping.RequiredFieldError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, []mapping.CanonicalField{mapping.FieldProduct}, reqErr.Missing)

	_, err = tr.Transform(mapping.TransformInput{
		Headers: []string{"Account", "Product"},
		Mapping: columns("account", "Account", "product", "Item"),
	})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = tr.Transform(mapping.TransformInput{
		Headers:       []string{"Account", "Product"},
		Mapping:       columns("account", "Account", "product", "Product"),
		DefaultPeriod: "someday",
	})
	assert.Error(t, err)

	res, err := tr.Transform(mapping.TransformInput{
		Headers: []string{"Account", "Product"},
		Mapping: columns("account", "Account", "product", "Product"),
	})
	require.NoError(t, err)
	assert.Zero(t, res.TotalRows)
	assert.Zero(t, res.SuccessRate)
}

func generatedRows(n int) []mapping.SampleRow {
	gen := money.NewTestDataGeneratorWithSeed(7)
	rows := make([]mapping.SampleRow, 0, n)
	for i, d := range gen.Depletions(money.USD, n) {
		rows = append(rows, mapping.Row(
			d.Date.Format("01/02/2006"),
			fmt.Sprintf("%s #%d", d.Account, i),
			d.Product,
			d.Price.Display(),
			d.Cases,
			d.Rep,
		))
	}
	return rows
}

func TestTransform_ParallelKeepsRowOrder(t *testing.T) {
	rows := generatedRows(2000)
	in := mapping.TransformInput{Headers: scenarioHeaders, Mapping: scenarioMapping, Rows: rows}

	sequential, err := New(mapping.DefaultPolicy(), nil, WithChunkSize(len(rows))).Transform(in)
	require.NoError(t, err)
	parallel, err := New(mapping.DefaultPolicy(), nil, WithChunkSize(64), WithWorkers(4)).Transform(in)
	require.NoError(t, err)

	assert.Equal(t, len(rows), parallel.ValidCount)
	for i, rec := range parallel.Records {
		require.Equal(t, i, rec.RowIndex)
	}
	assert.Equal(t, sequential.Records, parallel.Records)
	assert.Equal(t, sequential.RevenueTotals, parallel.RevenueTotals)
}

func BenchmarkTransform(b *testing.B) {
	rows := generatedRows(10000)
	in := mapping.TransformInput{Headers: scenarioHeaders, Mapping: scenarioMapping, Rows: rows}
	tr := New(mapping.DefaultPolicy(), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tr.Transform(in); err != nil {
			b.Fatal(err)
		}
	}
}
