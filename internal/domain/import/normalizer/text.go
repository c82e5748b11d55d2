// Package normalizer converts raw extract cells into canonical values:
// header text, flexible dates, revenue decimals and case quantities.
package normalizer

import (
	"regexp"
	"strings"
)

var spacePattern = regexp.MustCompile(`\s+`)

// NormalizeHeader trims, lowercases and collapses whitespace. Underscores are
// treated as spaces so "Invoice_Date" and "invoice date" compare equal.
func NormalizeHeader(header string) string {
	h := strings.TrimPrefix(header, "\uFEFF")
	h = strings.Trim(strings.TrimSpace(h), "\"'")
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.ToLower(h)
	h = spacePattern.ReplaceAllString(h, " ")
	return strings.TrimSpace(h)
}

// CleanText trims a value and collapses internal whitespace.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	return spacePattern.ReplaceAllString(s, " ")
}
