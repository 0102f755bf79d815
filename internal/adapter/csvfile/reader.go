// Package csvfile reads and writes the CSV files the ETL exchanges with the
// outside world: the grants working table, the state abbreviations reference,
// and the population estimates. Writes go through a temp file and rename so
// an interrupted run never leaves a half-written output behind.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/grant-data-etl/internal/domain"
)

// TableReader loads a CSV file into a domain.Table.
// It implements pipeline.TableSource.
type TableReader struct {
	Path string
}

func (r *TableReader) LoadTable(_ context.Context) (domain.Table, error) {
	return LoadTable(r.Path)
}

// LoadTable reads a CSV file, trimming whitespace from header names and
// recording each row's source line number for error reporting.
func LoadTable(path string) (domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return domain.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return domain.Table{}, fmt.Errorf("read %s: file is empty", path)
	}

	header := make([]string, len(all[0]))
	for i, h := range all[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]domain.Row, 0, len(all)-1)
	for i, fields := range all[1:] {
		rows = append(rows, domain.Row{Line: i + 2, Fields: fields})
	}
	return domain.Table{Header: header, Rows: rows}, nil
}

// StateReader loads the reference abbreviations CSV into a domain.StateSet.
// It implements pipeline.StateSource.
type StateReader struct {
	Path string
}

func (r *StateReader) LoadStates(_ context.Context) (domain.StateSet, error) {
	return LoadStates(r.Path)
}

// LoadStates reads the state reference file. Columns are discovered by name:
// the full-name column contains "name" (or is exactly "state") and the code
// column contains "abbr" or "code". A single-column file is treated as a
// bare list of codes.
func LoadStates(path string) (domain.StateSet, error) {
	tbl, err := LoadTable(path)
	if err != nil {
		return domain.StateSet{}, err
	}

	if len(tbl.Header) == 1 {
		entries := make([]domain.StateEntry, 0, len(tbl.Rows))
		for _, row := range tbl.Rows {
			entries = append(entries, domain.StateEntry{Code: row.Field(0)})
		}
		return domain.NewStateSet(entries), nil
	}

	nameIdx, abbrIdx := -1, -1
	for i, h := range tbl.Header {
		name := strings.ToLower(h)
		switch {
		case abbrIdx < 0 && (strings.Contains(name, "abbr") || strings.Contains(name, "code")):
			abbrIdx = i
		case nameIdx < 0 && (strings.Contains(name, "name") || name == "state"):
			nameIdx = i
		}
	}
	if abbrIdx < 0 {
		return domain.StateSet{}, fmt.Errorf("state reference %s: no abbreviation column found", path)
	}

	entries := make([]domain.StateEntry, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		e := domain.StateEntry{Code: row.Field(abbrIdx)}
		if nameIdx >= 0 {
			e.Name = row.Field(nameIdx)
		}
		entries = append(entries, e)
	}
	return domain.NewStateSet(entries), nil
}
