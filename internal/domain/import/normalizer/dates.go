package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ISODate is the canonical output layout for dates.
const ISODate = "2006-01-02"

// ErrEmptyDate is returned for blank date cells.
var ErrEmptyDate = errors.New("empty date")

// isoLayouts are tried before any numeric slash layouts.
var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"20060102",
}

var monthFirstLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"1-2-2006",
	"1-2-06",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
}

var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/06",
	"2-1-2006",
	"2.1.2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
}

var namedMonthLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"Jan-06",
	"January 2006",
}

// ParseFlexibleDate parses a date using ISO layouts first, then numeric slash
// layouts in dialect order, then named-month layouts. The first successful
// parse wins.
func ParseFlexibleDate(s string, dayFirst bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyDate
	}

	numeric := append(append([]string{}, monthFirstLayouts...), dayFirstLayouts...)
	if dayFirst {
		numeric = append(append([]string{}, dayFirstLayouts...), monthFirstLayouts...)
	}

	groups := [][]string{isoLayouts, numeric, namedMonthLayouts}
	for _, layouts := range groups {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// LooksLikeDate reports whether s parses as a date in any accepted layout.
func LooksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	// Bare integers are ambiguous with quantities and codes; only compact ISO is allowed.
	if isAllDigits(s) && len(s) != 8 {
		return false
	}
	_, err := ParseFlexibleDate(s, false)
	return err == nil
}

// FromExcelSerial converts a spreadsheet serial day number into a date.
// Values outside the 1954-2119 window are rejected.
func FromExcelSerial(serial float64) (time.Time, bool) {
	if serial < 20000 || serial > 80000 {
		return time.Time{}, false
	}
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(serial)), true
}

// ParsePeriod accepts "2024-03", "2024-03-01" or any flexible date and
// returns the first day of that period.
func ParsePeriod(period string) (time.Time, error) {
	period = strings.TrimSpace(period)
	if t, err := time.Parse("2006-01", period); err == nil {
		return t, nil
	}
	t, err := ParseFlexibleDate(period, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid default period: %w", err)
	}
	return t, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
