// Command validate performs integrity checks on a reconciled grants CSV
// against the original input and the state reference: key-space completeness,
// non-destruction of input rows, zero-fill of synthesized rows, and output
// ordering.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input data/nsf_grants_raw.csv \
//	  -output data/nsf_grants_clean.csv \
//	  -states data/state_abbreviations.csv
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/couchcryptid/grant-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/grant-data-etl/internal/config"
	"github.com/couchcryptid/grant-data-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	inputPath := flag.String("input", "", "original grants CSV (pre-reconciliation)")
	outputPath := flag.String("output", "", "reconciled grants CSV to validate")
	statesPath := flag.String("states", "", "state abbreviations reference CSV")
	mappingPath := flag.String("mapping", "", "optional YAML column mapping file")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" || *statesPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*inputPath, *outputPath, *statesPath, *mappingPath); code != 0 {
		os.Exit(code)
	}
}

func run(inputPath, outputPath, statesPath, mappingPath string) int {
	fmt.Println("=== Grant Data Reconciliation Validation ===")
	fmt.Println()

	mapping, err := config.LoadMapping(mappingPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load mapping: %v\n", err)
		return 1
	}

	states, err := csvfile.LoadStates(statesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load state reference: %v\n", err)
		return 1
	}

	input, err := csvfile.LoadTable(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load input CSV: %v\n", err)
		return 1
	}

	output, err := csvfile.LoadTable(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load output CSV: %v\n", err)
		return 1
	}

	inKeys, err := tableKeys(input, mapping, states)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: index input rows: %v\n", err)
		return 1
	}
	outKeys, err := tableKeys(output, mapping, states)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: index output rows: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCompleteness(outKeys, inKeys, states),
		validateNonDestruction(input, output),
		validateZeroFill(output, mapping, states, inKeys),
		validateOrdering(outKeys),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d input, %d output, %d synthesized\n",
		len(input.Rows), len(output.Rows), len(output.Rows)-len(input.Rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// keyedRow pairs a reconciliation key with its source row.
type keyedRow struct {
	key domain.GrantKey
	row domain.Row
}

// tableKeys extracts the (state, year) key of every row, resolving state
// values through the reference set the same way the reconciler does.
func tableKeys(tbl domain.Table, mapping domain.Mapping, states domain.StateSet) ([]keyedRow, error) {
	stateIdx := tbl.ColumnIndex(mapping.StateColumn)
	yearIdx := tbl.ColumnIndex(mapping.YearColumn)
	if stateIdx < 0 || yearIdx < 0 {
		return nil, fmt.Errorf("missing %q or %q column", mapping.StateColumn, mapping.YearColumn)
	}

	keyed := make([]keyedRow, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		code, ok := states.Resolve(row.Field(stateIdx))
		if !ok {
			return nil, fmt.Errorf("line %d: unknown state %q", row.Line, row.Field(stateIdx))
		}
		year, err := parseYear(row.Field(yearIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", row.Line, err)
		}
		keyed = append(keyed, keyedRow{key: domain.GrantKey{State: code, Year: year}, row: row})
	}
	return keyed, nil
}

func parseYear(s string) (int, error) {
	var year int
	if _, err := fmt.Sscanf(s, "%d", &year); err != nil || year <= 0 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return year, nil
}

// ── Phase 1: Completeness ──
// Every (state, year) combination must appear in the output exactly once.

func validateCompleteness(outKeys, inKeys []keyedRow, states domain.StateSet) *phase {
	p := &phase{name: "Phase 1: Key-Space Completeness"}

	years := map[int]bool{}
	for _, kr := range inKeys {
		years[kr.key.Year] = true
	}

	seen := map[domain.GrantKey]int{}
	for _, kr := range outKeys {
		seen[kr.key]++
	}

	for _, code := range states.Codes() {
		for year := range years {
			key := domain.GrantKey{State: code, Year: year}
			switch seen[key] {
			case 0:
				p.errorf("missing combination (%s, %d)", key.State, key.Year)
			case 1:
			default:
				p.errorf("combination (%s, %d) appears %d times", key.State, key.Year, seen[key])
			}
		}
	}

	expected := states.Len() * len(years)
	if len(outKeys) != expected {
		p.errorf("output has %d rows, expected %d (%d states x %d years)",
			len(outKeys), expected, states.Len(), len(years))
	}
	return p
}

// ── Phase 2: Non-Destruction ──
// Every input row must appear in the output byte-for-byte.

func validateNonDestruction(input, output domain.Table) *phase {
	p := &phase{name: "Phase 2: Non-Destruction (input rows)"}

	if fmt.Sprint(input.Header) != fmt.Sprint(output.Header) {
		p.errorf("header mismatch: input=%v output=%v", input.Header, output.Header)
		return p
	}

	outRows := map[string]bool{}
	for _, row := range output.Rows {
		outRows[fmt.Sprint(row.Fields)] = true
	}

	for _, row := range input.Rows {
		if !outRows[fmt.Sprint(row.Fields)] {
			p.errorf("input line %d not found in output: %v", row.Line, row.Fields)
		}
	}
	return p
}

// ── Phase 3: Zero-Fill ──
// Rows for combinations absent from the input must carry a zero measure.

func validateZeroFill(output domain.Table, mapping domain.Mapping, states domain.StateSet, inKeys []keyedRow) *phase {
	p := &phase{name: "Phase 3: Zero-Fill (synthesized rows)"}

	measureIdx := output.ColumnIndex(mapping.MeasureColumn)
	stateIdx := output.ColumnIndex(mapping.StateColumn)
	yearIdx := output.ColumnIndex(mapping.YearColumn)
	if measureIdx < 0 {
		p.errorf("output missing measure column %q", mapping.MeasureColumn)
		return p
	}

	inputKeys := map[domain.GrantKey]bool{}
	for _, kr := range inKeys {
		inputKeys[kr.key] = true
	}

	for _, row := range output.Rows {
		code, ok := states.Resolve(row.Field(stateIdx))
		if !ok {
			continue
		}
		year, err := parseYear(row.Field(yearIdx))
		if err != nil {
			continue
		}
		if inputKeys[domain.GrantKey{State: code, Year: year}] {
			continue
		}
		if got := row.Field(measureIdx); got != "0" {
			p.errorf("synthesized row (%s, %d) at line %d has measure %q, expected \"0\"", code, year, row.Line, got)
		}
	}
	return p
}

// ── Phase 4: Ordering ──
// Output rows must be sorted by year, then state code.

func validateOrdering(outKeys []keyedRow) *phase {
	p := &phase{name: "Phase 4: Output Ordering (year, state)"}

	sorted := sort.SliceIsSorted(outKeys, func(i, j int) bool {
		a, b := outKeys[i].key, outKeys[j].key
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.State < b.State
	})
	if !sorted {
		for i := 1; i < len(outKeys); i++ {
			a, b := outKeys[i-1].key, outKeys[i].key
			if a.Year > b.Year || (a.Year == b.Year && a.State > b.State) {
				p.errorf("line %d: (%s, %d) appears after (%s, %d)",
					outKeys[i].row.Line, b.State, b.Year, a.State, a.Year)
			}
		}
	}
	return p
}
