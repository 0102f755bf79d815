package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/grant-data-etl/internal/domain"
)

// TableWriter writes a domain.Table to a CSV file with overwrite semantics.
// It implements pipeline.TableSink.
type TableWriter struct {
	Path string
}

func (w *TableWriter) WriteTable(_ context.Context, tbl domain.Table) error {
	return WriteTableAtomic(w.Path, tbl)
}

// WriteTableAtomic writes the table to a temp file in the destination
// directory and renames it into place, so readers never observe a partial
// file.
func WriteTableAtomic(path string, tbl domain.Table) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	w := csv.NewWriter(tmp)
	if err := w.Write(tbl.Header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range tbl.Rows {
		if err := w.Write(row.Fields); err != nil {
			tmp.Close()
			return fmt.Errorf("write row %d: %w", row.Line, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
