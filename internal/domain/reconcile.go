package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MalformedRowError reports a row that violates the reconciliation
// preconditions: a missing or unparsable state, year, or measure field, or a
// duplicate (state, year) pair. The whole run aborts so the caller can fix
// the input instead of publishing a silently incomplete dataset.
type MalformedRowError struct {
	Line   int
	Column string
	Value  string
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row at line %d: column %q value %q: %s",
		e.Line, e.Column, e.Value, e.Reason)
}

// UnknownStateError reports a state identifier absent from the reference
// set. This almost always indicates a naming-convention mismatch between the
// grants table and the abbreviations file.
type UnknownStateError struct {
	Line  int
	State string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown state %q at line %d: not in reference list", e.State, e.Line)
}

// Summary describes one reconciliation run.
type Summary struct {
	RowsIn      int       `json:"rows_in"`
	RowsOut     int       `json:"rows_out"`
	Synthesized int       `json:"synthesized"`
	States      int       `json:"states"`
	Years       []int     `json:"years"`
	CompletedAt time.Time `json:"completed_at"`
}

// rowKey pairs a parsed (state, year) key with its row for sorting.
type rowKey struct {
	state string
	year  int
	row   Row
}

// Reconcile ensures every (state, year) combination exists in the table,
// synthesizing zero-valued rows for the missing ones. Years are derived from
// the input; the expected key space is the product of the reference states
// and those years. Original rows pass through byte-identical; output rows are
// sorted by (year ascending, state ascending).
//
// The transformation is pure: the input table is never mutated, and running
// Reconcile on its own output returns an identical table.
func Reconcile(tbl Table, mapping Mapping, states StateSet) (Table, Summary, error) {
	stateIdx := tbl.ColumnIndex(mapping.StateColumn)
	yearIdx := tbl.ColumnIndex(mapping.YearColumn)
	measureIdx := tbl.ColumnIndex(mapping.MeasureColumn)
	if stateIdx < 0 {
		return Table{}, Summary{}, fmt.Errorf("grants table missing state column %q", mapping.StateColumn)
	}
	if yearIdx < 0 {
		return Table{}, Summary{}, fmt.Errorf("grants table missing year column %q", mapping.YearColumn)
	}
	if measureIdx < 0 {
		return Table{}, Summary{}, fmt.Errorf("grants table missing measure column %q", mapping.MeasureColumn)
	}
	if len(tbl.Rows) == 0 {
		return Table{}, Summary{}, fmt.Errorf("grants table has no data rows")
	}

	keyed := make([]rowKey, 0, len(tbl.Rows))
	seen := make(map[GrantKey]int, len(tbl.Rows)) // key -> line of first occurrence
	years := make(map[int]bool)

	for _, row := range tbl.Rows {
		state, year, err := parseKey(row, stateIdx, yearIdx, mapping, states)
		if err != nil {
			return Table{}, Summary{}, err
		}
		if err := checkMeasure(row, measureIdx, mapping.MeasureColumn); err != nil {
			return Table{}, Summary{}, err
		}

		key := GrantKey{State: state, Year: year}
		if first, dup := seen[key]; dup {
			return Table{}, Summary{}, &MalformedRowError{
				Line:   row.Line,
				Column: mapping.StateColumn,
				Value:  row.Field(stateIdx),
				Reason: fmt.Sprintf("duplicate (state, year) pair, first seen at line %d", first),
			}
		}
		seen[key] = row.Line
		years[year] = true
		keyed = append(keyed, rowKey{state: state, year: year, row: row})
	}

	// Synthesize the missing combinations of the expected key space.
	synthesized := 0
	for _, code := range states.Codes() {
		for year := range years {
			key := GrantKey{State: code, Year: year}
			if _, ok := seen[key]; ok {
				continue
			}
			keyed = append(keyed, rowKey{
				state: code,
				year:  year,
				row:   syntheticRow(tbl.Header, mapping, stateIdx, yearIdx, measureIdx, code, year),
			})
			synthesized++
		}
	}

	sort.SliceStable(keyed, func(i, j int) bool {
		if keyed[i].year != keyed[j].year {
			return keyed[i].year < keyed[j].year
		}
		return keyed[i].state < keyed[j].state
	})

	out := Table{Header: tbl.Header, Rows: make([]Row, len(keyed))}
	for i, k := range keyed {
		out.Rows[i] = k.row
	}

	return out, Summary{
		RowsIn:      len(tbl.Rows),
		RowsOut:     len(out.Rows),
		Synthesized: synthesized,
		States:      states.Len(),
		Years:       sortedYears(years),
		CompletedAt: clock.Now().UTC(),
	}, nil
}

// GrantKey identifies a grant aggregate row by canonical state code and year.
type GrantKey struct {
	State string
	Year  int
}

func parseKey(row Row, stateIdx, yearIdx int, mapping Mapping, states StateSet) (string, int, error) {
	rawState := strings.TrimSpace(row.Field(stateIdx))
	if rawState == "" {
		return "", 0, &MalformedRowError{
			Line:   row.Line,
			Column: mapping.StateColumn,
			Value:  rawState,
			Reason: "state is empty",
		}
	}
	state, ok := states.Resolve(rawState)
	if !ok {
		return "", 0, &UnknownStateError{Line: row.Line, State: rawState}
	}

	rawYear := strings.TrimSpace(row.Field(yearIdx))
	if rawYear == "" {
		return "", 0, &MalformedRowError{
			Line:   row.Line,
			Column: mapping.YearColumn,
			Value:  rawYear,
			Reason: "year is empty",
		}
	}
	year, err := strconv.Atoi(rawYear)
	if err != nil || year <= 0 {
		// Year 0 is the "all years" sentinel downstream and never occurs in
		// raw data; it is a coerced missing value here.
		return "", 0, &MalformedRowError{
			Line:   row.Line,
			Column: mapping.YearColumn,
			Value:  rawYear,
			Reason: "year is not a positive integer",
		}
	}
	return state, year, nil
}

func checkMeasure(row Row, measureIdx int, column string) error {
	raw := strings.TrimSpace(row.Field(measureIdx))
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return &MalformedRowError{
			Line:   row.Line,
			Column: column,
			Value:  raw,
			Reason: "measure is not a number",
		}
	}
	if v.IsNegative() {
		return &MalformedRowError{
			Line:   row.Line,
			Column: column,
			Value:  raw,
			Reason: "measure is negative",
		}
	}
	return nil
}

// syntheticRow builds a zero-valued row for a missing (state, year) key.
// Passthrough columns take their mapped default, empty string otherwise.
func syntheticRow(header []string, mapping Mapping, stateIdx, yearIdx, measureIdx int, state string, year int) Row {
	fields := make([]string, len(header))
	for i, col := range header {
		switch i {
		case stateIdx:
			fields[i] = state
		case yearIdx:
			fields[i] = strconv.Itoa(year)
		case measureIdx:
			fields[i] = "0"
		default:
			fields[i] = mapping.DefaultFor(col)
		}
	}
	return Row{Fields: fields}
}

func sortedYears(set map[int]bool) []int {
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
