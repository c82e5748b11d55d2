// Package parser decodes raw extracts (CSV, XLSX and text blocks pulled from
// PDFs) into a header row and typed sample rows for the mapping engine.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/sniffer"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrHeaderOutOfRange  = errors.New("header row index out of range")
)

// Table is a decoded extract.
type Table struct {
	Headers   []string
	Rows      []mapping.SampleRow
	HeaderRow int // 0-based index of the header row in the source
}

// Config configures decoding.
type Config struct {
	Delimiter      rune // CSV delimiter (0 = auto-detect)
	HeaderRowIndex int  // 0-based header row (-1 = auto-detect)
	Sheet          string
}

// DefaultConfig returns a config that auto-detects everything.
func DefaultConfig() Config {
	return Config{HeaderRowIndex: -1}
}

// Decode picks a decoder from the file extension.
func Decode(name string, data []byte, cfg Config) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv":
		return DecodeCSV(data, cfg)
	case ".xlsx", ".xlsm":
		return DecodeXLSX(bytes.NewReader(data), cfg)
	case ".txt":
		return DecodeText(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// DecodeCSV reads delimited text. Cells are kept as strings so that
// separators survive until the dialect is known.
func DecodeCSV(data []byte, cfg Config) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	delimiter := cfg.Delimiter
	if delimiter == 0 {
		delimiter = detectDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // metadata lines have fewer fields

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		records = append(records, record)
	}

	return buildTable(records, cfg)
}

func buildTable(records [][]string, cfg Config) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	headerRow := cfg.HeaderRowIndex
	if headerRow < 0 {
		var err error
		headerRow, err = sniffer.FindHeaderRow(records)
		if err != nil {
			return nil, err
		}
	} else if headerRow >= len(records) {
		return nil, ErrHeaderOutOfRange
	}

	headers := make([]string, len(records[headerRow]))
	for i, h := range records[headerRow] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	table := &Table{Headers: headers, HeaderRow: headerRow}
	for _, record := range records[headerRow+1:] {
		if isBlank(record) {
			continue
		}
		row := make(mapping.SampleRow, len(headers))
		for i := range headers {
			if i < len(record) && strings.TrimSpace(record[i]) != "" {
				row[i] = mapping.String(strings.TrimSpace(record[i]))
			} else {
				row[i] = mapping.Null()
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// detectDelimiter picks the delimiter with the most occurrences over the first lines.
func detectDelimiter(data []byte) rune {
	lines := strings.SplitN(string(data), "\n", 12)
	counts := map[rune]int{}
	for _, line := range lines {
		for _, d := range []rune{';', '\t', ',', '|'} {
			counts[d] += strings.Count(line, string(d))
		}
	}
	best, bestCount := ',', 0
	for _, d := range []rune{';', '\t', ',', '|'} {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
