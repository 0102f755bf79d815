package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PopulationRow is one (state, year, population) observation in long form.
type PopulationRow struct {
	State      string
	Year       int
	Population int64
}

// MeltPopulation converts the wide estimated-population table, which carries
// one pop_YYYY column per year, into long form keyed by canonical state code.
// Rows whose state name does not resolve through the reference set and cells
// that do not parse as a positive integer are dropped, matching how the
// population file is joined upstream: it names states in full while the
// grants table uses codes, and territories without estimates are simply
// absent from per-capita views rather than fatal.
func MeltPopulation(tbl Table, states StateSet) ([]PopulationRow, error) {
	stateIdx := tbl.ColumnIndex("state")
	if stateIdx < 0 {
		return nil, fmt.Errorf("population table missing state column")
	}

	type yearCol struct {
		idx  int
		year int
	}
	var yearCols []yearCol
	for i, h := range tbl.Header {
		name := strings.ToLower(strings.TrimSpace(h))
		if !strings.HasPrefix(name, "pop_") {
			continue
		}
		year, err := strconv.Atoi(strings.TrimPrefix(name, "pop_"))
		if err != nil {
			continue
		}
		yearCols = append(yearCols, yearCol{idx: i, year: year})
	}
	if len(yearCols) == 0 {
		return nil, fmt.Errorf("population table has no pop_YYYY columns")
	}

	var out []PopulationRow
	for _, row := range tbl.Rows {
		code, ok := states.Resolve(row.Field(stateIdx))
		if !ok {
			continue
		}
		for _, yc := range yearCols {
			pop, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(row.Field(yc.idx)), ",", ""), 10, 64)
			if err != nil || pop <= 0 {
				continue
			}
			out = append(out, PopulationRow{State: code, Year: yc.year, Population: pop})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].State < out[j].State
	})
	return out, nil
}
