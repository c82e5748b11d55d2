package parser

import (
	"regexp"
	"strings"
)

// Columns in text extracted from PDFs are separated by tabs or runs of spaces.
var columnGap = regexp.MustCompile(`\t+| {2,}`)

// DecodeText splits text blocks pulled from a PDF into cells.
func DecodeText(data []byte, cfg Config) (*Table, error) {
	var records [][]string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, columnGap.Split(strings.TrimSpace(line), -1))
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return buildTable(records, cfg)
}
