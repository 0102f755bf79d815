package domain

import "strings"

// Table is an in-memory CSV table: a trimmed header and the data rows in
// file order.
type Table struct {
	Header []string
	Rows   []Row
}

// Row is a single CSV data row. Line is the 1-based line number in the
// source file (the header is line 1), carried through for error reporting.
type Row struct {
	Line   int
	Fields []string
}

// ColumnIndex returns the index of the named column, matching
// case-insensitively after trimming whitespace. Returns -1 when absent.
func (t Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// Field returns the row's value for the given column index, or "" when the
// row is shorter than the header.
func (r Row) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Mapping names the key and measure columns of a grants table and supplies
// per-column values for synthesized rows. Passthrough columns without an
// entry in Defaults are filled with the empty string.
type Mapping struct {
	StateColumn   string            `yaml:"state_column"`
	YearColumn    string            `yaml:"year_column"`
	MeasureColumn string            `yaml:"measure_column"`
	Defaults      map[string]string `yaml:"defaults"`
}

// DefaultMapping returns the column mapping used by the NSF award exports.
func DefaultMapping() Mapping {
	return Mapping{
		StateColumn:   "state",
		YearColumn:    "year",
		MeasureColumn: "award_amount",
	}
}

// DefaultFor returns the synthetic-row value for a passthrough column.
func (m Mapping) DefaultFor(column string) string {
	for name, v := range m.Defaults {
		if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(column)) {
			return v
		}
	}
	return ""
}
