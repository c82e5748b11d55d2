// Package transform applies a column mapping to extract rows and validates
// the canonical records it produces.
package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/normalizer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/sniffer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
	"github.com/FACorreiaa/depletion-mapper/pkg/money"
)

const (
	// MinRequiredLength is the shortest accepted account or product value.
	MinRequiredLength = 2
	// DefaultQuantity is used when the quantity cell is absent.
	DefaultQuantity = 1

	defaultChunkSize = 500
	dialectSample    = 200
	periodLayout     = "2006-01"
)

// ErrUnknownColumn is returned when the mapping names a column the extract lacks.
var ErrUnknownColumn = errors.New("mapped column not in headers")

// Transformer turns raw rows into TransformedRecords. Rows are independent,
// so large extracts are processed in parallel chunks; output keeps row order.
type Transformer struct {
	logger      *slog.Logger
	quantityMax int
	chunkSize   int
	workers     int
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithChunkSize sets the number of rows handed to a worker at once.
func WithChunkSize(n int) Option {
	return func(t *Transformer) {
		if n > 0 {
			t.chunkSize = n
		}
	}
}

// WithWorkers caps the worker count. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(t *Transformer) {
		if n > 0 {
			t.workers = n
		}
	}
}

func New(policy mapping.Policy, logger *slog.Logger, opts ...Option) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	policy = policy.WithDefaults()
	t := &Transformer{
		logger:      logger,
		quantityMax: policy.QuantityMax,
		chunkSize:   defaultChunkSize,
		workers:     max(runtime.GOMAXPROCS(0), 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// plan is the per-call context shared by every row.
type plan struct {
	columns       map[mapping.CanonicalField]int
	european      bool
	dayFirst      bool
	currency      string
	defaultPeriod string
	quantityMax   int
}

type rowResult struct {
	record   mapping.TransformedRecord
	issues   []mapping.ValidationIssue
	currency string
}

// Transform validates every row. It fails only when the mapping itself is
// unusable; row problems are reported as issues.
func (t *Transformer) Transform(in mapping.TransformInput) (*mapping.TransformResult, error) {
	p, err := t.prepare(in)
	if err != nil {
		return nil, err
	}

	results := t.run(in.Rows, p)

	out := &mapping.TransformResult{
		Records:        make([]mapping.TransformedRecord, 0, len(results)),
		Issues:         []mapping.ValidationIssue{},
		TotalRows:      len(results),
		CurrencyHint:   p.currency,
		EuropeanFormat: p.european,
	}
	totals := money.NewTotals(p.currency)
	seen := make(map[string]int, len(results))

	for i := range results {
		res := &results[i]
		out.Issues = append(out.Issues, res.issues...)

		switch res.record.Status {
		case mapping.RowInvalid:
			out.InvalidCount++
			continue
		case mapping.RowPartiallyValid:
			out.PartialCount++
		default:
			out.ValidCount++
		}

		key, field := duplicateKey(&res.record, p)
		if first, dup := seen[key]; dup {
			out.Issues = append(out.Issues, mapping.ValidationIssue{
				RowIndex: res.record.RowIndex,
				Field:    field,
				Reason:   mapping.ReasonDuplicate,
				Detail:   fmt.Sprintf("duplicates row %d", first),
			})
		} else {
			seen[key] = res.record.RowIndex
		}

		if res.record.Revenue != nil {
			if err := totals.Add(*res.record.Revenue, res.currency); err != nil {
				t.logger.Warn("failed to total revenue", "row", res.record.RowIndex, "error", err)
			}
		}
		out.Records = append(out.Records, res.record)
	}

	if out.TotalRows > 0 {
		out.SuccessRate = float64(out.ValidCount+out.PartialCount) / float64(out.TotalRows)
	}
	out.RevenueTotals = totals.Strings()

	t.logger.Debug("transform complete",
		"total", out.TotalRows,
		"valid", out.ValidCount,
		"partial", out.PartialCount,
		"invalid", out.InvalidCount,
		"issues", len(out.Issues))
	return out, nil
}

func (t *Transformer) prepare(in mapping.TransformInput) (*plan, error) {
	if missing := in.Mapping.MissingRequired(); len(missing) > 0 {
		return nil, &mapping.RequiredFieldError{Missing: missing, Headers: in.Headers, Detected: in.Mapping}
	}

	index := make(map[string]int, len(in.Headers))
	for i, h := range in.Headers {
		if _, ok := index[h]; !ok {
			index[h] = i
		}
	}
	p := &plan{columns: map[mapping.CanonicalField]int{}, quantityMax: t.quantityMax}
	for _, f := range in.Mapping.Fields() {
		col, ok := in.Mapping.Column(f)
		if !ok {
			continue
		}
		idx, ok := index[col]
		if !ok {
			return nil, fmt.Errorf("%w: %s -> %q", ErrUnknownColumn, f, col)
		}
		p.columns[f] = idx
	}

	if in.DefaultPeriod != "" {
		period, err := normalizer.ParsePeriod(in.DefaultPeriod)
		if err != nil {
			return nil, err
		}
		p.defaultPeriod = period.Format(periodLayout)
	}

	sample := in.Rows
	if len(sample) > dialectSample {
		sample = sample[:dialectSample]
	}
	dialect := sniffer.ProbeDialect(sample, p.column(mapping.FieldRevenue), p.column(mapping.FieldDate))
	p.european = dialect.IsEuropeanFormat
	if in.EuropeanFormat != nil {
		p.european = *in.EuropeanFormat
	}
	p.dayFirst = dialect.DayFirst()
	p.currency = dialect.CurrencyHint
	return p, nil
}

func (p *plan) column(f mapping.CanonicalField) int {
	if idx, ok := p.columns[f]; ok {
		return idx
	}
	return -1
}

func (p *plan) cell(row mapping.SampleRow, f mapping.CanonicalField) (mapping.CellValue, bool) {
	idx, ok := p.columns[f]
	if !ok {
		return mapping.Null(), false
	}
	if idx >= len(row) {
		return mapping.Null(), true
	}
	return row[idx], true
}

// run processes rows in chunks across workers and returns results in row order.
func (t *Transformer) run(rows []mapping.SampleRow, p *plan) []rowResult {
	results := make([]rowResult, len(rows))
	if len(rows) <= t.chunkSize {
		for i, row := range rows {
			results[i] = transformRow(i, row, p)
		}
		return results
	}

	jobs := make(chan [2]int, t.workers*2)
	var wg sync.WaitGroup
	for w := 0; w < t.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for span := range jobs {
				for i := span[0]; i < span[1]; i++ {
					results[i] = transformRow(i, rows[i], p)
				}
			}
		}()
	}
	for start := 0; start < len(rows); start += t.chunkSize {
		jobs <- [2]int{start, min(start+t.chunkSize, len(rows))}
	}
	close(jobs)
	wg.Wait()
	return results
}

// transformRow moves one row from Pending to Valid, PartiallyValid or Invalid.
func transformRow(idx int, row mapping.SampleRow, p *plan) rowResult {
	res := rowResult{record: mapping.TransformedRecord{RowIndex: idx, Status: mapping.RowPending}}
	rec := &res.record
	issue := func(f mapping.CanonicalField, reason mapping.IssueReason, detail string) {
		res.issues = append(res.issues, mapping.ValidationIssue{RowIndex: idx, Field: f, Reason: reason, Detail: detail})
	}

	for _, f := range mapping.RequiredFields {
		cell, _ := p.cell(row, f)
		v := normalizer.CleanText(cell.Text())
		if utf8.RuneCountInString(v) < MinRequiredLength {
			issue(f, mapping.ReasonMissingRequired, fmt.Sprintf("%q is shorter than %d characters", v, MinRequiredLength))
			continue
		}
		if f == mapping.FieldAccount {
			rec.Account = v
		} else {
			rec.Product = v
		}
	}
	if len(res.issues) > 0 {
		rec.Status = mapping.RowInvalid
		return res
	}

	partial := false

	rec.Quantity = DefaultQuantity
	if cell, mapped := p.cell(row, mapping.FieldQuantity); mapped && !cell.IsNull() {
		q, err := parseQuantity(cell, p.european)
		switch {
		case err != nil:
			issue(mapping.FieldQuantity, mapping.ReasonInvalidType, err.Error())
			partial = true
		case q < 0 || q > p.quantityMax:
			rec.Quantity = q
			issue(mapping.FieldQuantity, mapping.ReasonOutOfRange, fmt.Sprintf("%d outside 0..%d", q, p.quantityMax))
			partial = true
		default:
			rec.Quantity = q
		}
	}

	if cell, mapped := p.cell(row, mapping.FieldDate); mapped && !cell.IsNull() {
		d, err := parseDate(cell, p.dayFirst)
		if err != nil {
			issue(mapping.FieldDate, mapping.ReasonInvalidType, err.Error())
			partial = true
		} else {
			rec.Date = &d
			rec.DateISO = d.Format(normalizer.ISODate)
			rec.Period = d.Format(periodLayout)
		}
	} else if mapped {
		partial = true
	}
	if rec.Date == nil {
		rec.Dateless = true
		rec.Period = p.defaultPeriod
		rec.Incomplete = p.defaultPeriod == ""
		if rec.Incomplete {
			partial = true
		}
	}

	if cell, mapped := p.cell(row, mapping.FieldRevenue); mapped && !cell.IsNull() {
		amount, currency, err := parseRevenue(cell, p.european)
		if err != nil {
			issue(mapping.FieldRevenue, mapping.ReasonInvalidType, err.Error())
			partial = true
		} else {
			rec.Revenue = &amount
			rec.HasRevenueData = true
			res.currency = currency
		}
	} else if mapped {
		partial = true
	}

	rec.Representative = optionalText(row, p, mapping.FieldRepresentative)
	rec.OrderID = optionalText(row, p, mapping.FieldOrderID)
	rec.Category = optionalText(row, p, mapping.FieldCategory)
	rec.Region = optionalText(row, p, mapping.FieldRegion)
	rec.Distributor = optionalText(row, p, mapping.FieldDistributor)

	if partial {
		rec.Status = mapping.RowPartiallyValid
	} else {
		rec.Status = mapping.RowValid
	}
	return res
}

func optionalText(row mapping.SampleRow, p *plan, f mapping.CanonicalField) string {
	cell, _ := p.cell(row, f)
	return normalizer.CleanText(cell.Text())
}

func parseQuantity(cell mapping.CellValue, european bool) (int, error) {
	if cell.Kind == mapping.CellNumber {
		return normalizer.QuantityFromNumber(cell.Num)
	}
	return normalizer.ParseQuantity(cell.Str, european)
}

func parseDate(cell mapping.CellValue, dayFirst bool) (time.Time, error) {
	if cell.Kind == mapping.CellNumber {
		if d, ok := normalizer.FromExcelSerial(cell.Num); ok {
			return d, nil
		}
		return time.Time{}, fmt.Errorf("number %v is not a spreadsheet date", cell.Num)
	}
	return normalizer.ParseFlexibleDate(cell.Str, dayFirst)
}
