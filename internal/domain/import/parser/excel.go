package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet names preferred when a workbook has several tabs.
var reportSheetHints = []string{"depletion", "sales", "report", "data"}

// DecodeXLSX reads the report sheet of a workbook. Cell values are read with
// their display formatting, so dates and amounts look the way the
// distributor sees them.
func DecodeXLSX(r io.Reader, cfg Config) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := cfg.Sheet
	if sheet == "" {
		sheet = findReportSheet(f.GetSheetList())
	}
	if sheet == "" {
		return nil, fmt.Errorf("no suitable sheet found")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return buildTable(rows, cfg)
}

func findReportSheet(sheets []string) string {
	for _, hint := range reportSheetHints {
		for _, name := range sheets {
			if strings.Contains(strings.ToLower(name), hint) {
				return name
			}
		}
	}
	if len(sheets) > 0 {
		return sheets[0]
	}
	return ""
}
