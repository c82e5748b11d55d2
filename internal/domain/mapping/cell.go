package mapping

import (
	"strconv"
	"strings"
)

// CellKind tags the variant held by a CellValue.
type CellKind uint8

const (
	CellNull CellKind = iota
	CellString
	CellNumber
)

// CellValue is a raw cell: a string, a number or null.
type CellValue struct {
	Kind CellKind
	Str  string
	Num  float64
}

// Null returns an empty cell.
func Null() CellValue { return CellValue{Kind: CellNull} }

// String wraps a text cell.
func String(s string) CellValue { return CellValue{Kind: CellString, Str: s} }

// Number wraps a numeric cell.
func Number(n float64) CellValue { return CellValue{Kind: CellNumber, Num: n} }

// IsNull reports whether the cell carries no usable value. Blank strings count as null.
func (c CellValue) IsNull() bool {
	switch c.Kind {
	case CellNull:
		return true
	case CellString:
		return strings.TrimSpace(c.Str) == ""
	default:
		return false
	}
}

// Text renders the cell as text for parsers and classifiers.
func (c CellValue) Text() string {
	switch c.Kind {
	case CellString:
		return c.Str
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON keeps the tagged variant readable on the wire.
func (c CellValue) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellString:
		return []byte(strconv.Quote(c.Str)), nil
	case CellNumber:
		return []byte(strconv.FormatFloat(c.Num, 'f', -1, 64)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts strings, numbers and null.
func (c *CellValue) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null" || raw == "":
		*c = Null()
	case strings.HasPrefix(raw, `"`):
		s, err := strconv.Unquote(raw)
		if err != nil {
			return err
		}
		*c = String(s)
	default:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*c = Number(n)
	}
	return nil
}

// Row builds a SampleRow from loosely typed values (string, numeric kinds, nil).
func Row(values ...any) SampleRow {
	row := make(SampleRow, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case nil:
			row[i] = Null()
		case string:
			row[i] = String(t)
		case int:
			row[i] = Number(float64(t))
		case int64:
			row[i] = Number(float64(t))
		case float64:
			row[i] = Number(t)
		case float32:
			row[i] = Number(float64(t))
		case CellValue:
			row[i] = t
		default:
			row[i] = Null()
		}
	}
	return row
}

// ColumnValues collects the cells of column idx across rows.
func ColumnValues(rows []SampleRow, idx int) []CellValue {
	values := make([]CellValue, 0, len(rows))
	for _, row := range rows {
		if idx >= 0 && idx < len(row) {
			values = append(values, row[idx])
		} else {
			values = append(values, Null())
		}
	}
	return values
}
