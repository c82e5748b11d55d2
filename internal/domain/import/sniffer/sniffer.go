// Package sniffer inspects decoded extracts: it locates the header row,
// fingerprints header sets and infers the regional dialect of the values.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Header keywords seen in distributor depletion reports (multi-language).
var headerKeywords = []string{
	// English
	"date", "invoice", "account", "customer", "ship to", "product", "item", "sku",
	"quantity", "qty", "cases", "units", "price", "amount", "revenue", "sales", "rep",
	"order", "region", "territory", "category", "distributor",
	// Portuguese / Spanish
	"data", "cliente", "produto", "producto", "quantidade", "cantidad", "valor", "importe",
}

const maxHeaderScan = 20

var (
	ErrEmptyExtract   = errors.New("extract is empty")
	ErrNoHeadersFound = errors.New("could not find data headers")
)

// RegionalDialect represents inferred regional formatting for amounts and dates
type RegionalDialect struct {
	DecimalSeparator   rune    // '.' (US) or ',' (EU)
	ThousandsSeparator rune    // ',' (US) or '.' (EU)
	DateFormat         string  // "DD/MM/YYYY" or "MM/DD/YYYY"
	CurrencyHint       string  // "EUR", "USD", "BRL" if detected
	Confidence         float64 // 0.0-1.0
	IsEuropeanFormat   bool
}

// DayFirst reports whether ambiguous slash dates should be read as DD/MM.
func (d *RegionalDialect) DayFirst() bool {
	return d != nil && d.DateFormat == "DD/MM/YYYY"
}

// FindHeaderRow returns the index of the most plausible header row among the
// first rows of an extract. Rows with header keywords win; otherwise the
// widest row of non-numeric text is used.
func FindHeaderRow(rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, ErrEmptyExtract
	}

	keywordIndex, keywordScore := -1, 0
	fallbackIndex, fallbackCount := -1, 0

	for i, row := range rows {
		if i > maxHeaderScan {
			break
		}
		count, textCells, matches := 0, 0, 0
		for _, cell := range row {
			c := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\uFEFF")))
			if c == "" {
				continue
			}
			count++
			if !isNumeric(c) {
				textCells++
			}
			for _, kw := range headerKeywords {
				if strings.Contains(c, kw) {
					matches++
					break
				}
			}
		}
		if count < 2 {
			continue
		}

		if matches > 0 {
			// Wider rows with more keyword cells beat metadata lines.
			score := count*10 + matches
			if keywordIndex == -1 || score > keywordScore {
				keywordIndex, keywordScore = i, score
			}
		} else if textCells == count && count > fallbackCount {
			fallbackIndex, fallbackCount = i, count
		}
	}

	if keywordIndex >= 0 {
		return keywordIndex, nil
	}
	if fallbackIndex >= 0 {
		return fallbackIndex, nil
	}
	return 0, ErrNoHeadersFound
}

// Fingerprint hashes the normalized header names in column order.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

// ProbeDialect analyzes sample rows to infer the regional "dialect" of the extract.
// amountIdx and dateIdx may be -1 when the column is unknown.
func ProbeDialect(rows []mapping.SampleRow, amountIdx, dateIdx int) *RegionalDialect {
	dialect := &RegionalDialect{
		DecimalSeparator:   '.',
		ThousandsSeparator: ',',
		DateFormat:         "MM/DD/YYYY",
		Confidence:         0.5,
	}

	europeanHints, usHints := 0, 0
	dateIsDD, dateIsMM := false, false

	for _, row := range rows {
		// Numeric cells carry no separator information.
		if amountIdx >= 0 && amountIdx < len(row) && row[amountIdx].Kind == mapping.CellString {
			switch hint := analyzeAmountFormat(row[amountIdx].Str); {
			case hint > 0:
				europeanHints++
			case hint < 0:
				usHints++
			}
		}

		if dateIdx >= 0 && dateIdx < len(row) && row[dateIdx].Kind == mapping.CellString {
			if v := strings.TrimSpace(row[dateIdx].Str); v != "" && isSlashDate(v) {
				if analyzeDateFormat(v) {
					dateIsDD = true
				} else if analyzeDateMonthFirst(v) {
					dateIsMM = true
				}
			}
		}

		for _, cell := range row {
			if cell.Kind != mapping.CellString {
				continue
			}
			s := cell.Str
			switch {
			case strings.Contains(s, "€") || strings.Contains(s, "EUR"):
				dialect.CurrencyHint = "EUR"
				europeanHints++
			case strings.Contains(s, "R$") || strings.Contains(s, "BRL"):
				dialect.CurrencyHint = "BRL"
				europeanHints++
			case strings.Contains(s, "$"):
				if dialect.CurrencyHint == "" {
					dialect.CurrencyHint = "USD"
				}
				usHints++
			}
		}
	}

	if europeanHints > usHints {
		dialect.DecimalSeparator = ','
		dialect.ThousandsSeparator = '.'
		dialect.IsEuropeanFormat = true
	}

	if total := europeanHints + usHints; total > 0 {
		winning := europeanHints
		if usHints > europeanHints {
			winning = usHints
		}
		dialect.Confidence = float64(winning) / float64(total)
	}

	switch {
	case dateIsDD && !dateIsMM:
		dialect.DateFormat = "DD/MM/YYYY"
	case !dateIsDD && !dateIsMM && dialect.IsEuropeanFormat:
		dialect.DateFormat = "DD/MM/YYYY"
	}

	return dialect
}

// analyzeAmountFormat returns: >0 for European, <0 for US, 0 for ambiguous
func analyzeAmountFormat(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)
	if cleaned == "" {
		return 0
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			return 1 // 1.234,56
		}
		return -1 // 1,234.56
	case hasComma:
		if len(cleaned)-strings.LastIndex(cleaned, ",")-1 <= 2 {
			return 1
		}
	case hasDot:
		if len(cleaned)-strings.LastIndex(cleaned, ".")-1 <= 2 {
			return -1
		}
	}
	return 0
}

// analyzeDateFormat returns true if the date is definitely DD-first (day > 12)
func analyzeDateFormat(v string) bool {
	parts := dateParts(v)
	if len(parts) < 2 {
		return false
	}
	day := leadingInt(parts[0])
	return day > 12 && day <= 31
}

func analyzeDateMonthFirst(v string) bool {
	parts := dateParts(v)
	if len(parts) < 2 {
		return false
	}
	day := leadingInt(parts[1])
	return day > 12 && day <= 31
}

func dateParts(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
}

// isSlashDate excludes ISO dates whose first part is a year.
func isSlashDate(v string) bool {
	parts := dateParts(v)
	return len(parts) >= 3 && len(parts[0]) <= 2
}

func leadingInt(s string) int {
	n := 0
	for _, c := range strings.TrimSpace(s) {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func isNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(".,-/$€£ ", r):
		default:
			return false
		}
	}
	return digits > 0
}
