package csvfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/grant-data-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTable(t *testing.T) {
	t.Run("trims header and numbers lines", func(t *testing.T) {
		path := writeFile(t, "grants.csv", " state ,year,award_amount\nCA,2020,100\nNY,2021,250.50\n")

		tbl, err := LoadTable(path)
		require.NoError(t, err)

		assert.Equal(t, []string{"state", "year", "award_amount"}, tbl.Header)
		require.Len(t, tbl.Rows, 2)
		assert.Equal(t, 2, tbl.Rows[0].Line)
		assert.Equal(t, []string{"CA", "2020", "100"}, tbl.Rows[0].Fields)
		assert.Equal(t, 3, tbl.Rows[1].Line)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, "empty.csv", "")
		_, err := LoadTable(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTable(filepath.Join(t.TempDir(), "nope.csv"))
		require.Error(t, err)
	})
}

func TestLoadStates(t *testing.T) {
	t.Run("name and abbreviation columns", func(t *testing.T) {
		path := writeFile(t, "abbr.csv", "state_name,abbreviation\nCalifornia,CA\nNew York,NY\n")

		states, err := LoadStates(path)
		require.NoError(t, err)

		assert.Equal(t, []string{"CA", "NY"}, states.Codes())
		code, ok := states.Resolve("new york")
		assert.True(t, ok)
		assert.Equal(t, "NY", code)
	})

	t.Run("code column named code", func(t *testing.T) {
		path := writeFile(t, "abbr.csv", "state,code\nTexas,TX\n")

		states, err := LoadStates(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"TX"}, states.Codes())
	})

	t.Run("single column of codes", func(t *testing.T) {
		path := writeFile(t, "states.csv", "state\nCA\nNY\nTX\n")

		states, err := LoadStates(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"CA", "NY", "TX"}, states.Codes())
	})

	t.Run("no abbreviation column", func(t *testing.T) {
		path := writeFile(t, "abbr.csv", "state_name,population\nCalifornia,39500000\n")

		_, err := LoadStates(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "abbreviation")
	})
}

func TestWriteTableAtomic(t *testing.T) {
	tbl := domain.Table{
		Header: []string{"state", "year", "award_amount"},
		Rows: []domain.Row{
			{Line: 2, Fields: []string{"CA", "2020", "100"}},
			{Fields: []string{"NY", "2020", "0"}},
		},
	}

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, WriteTableAtomic(path, tbl))

		got, err := LoadTable(path)
		require.NoError(t, err)

		assert.Equal(t, tbl.Header, got.Header)
		require.Len(t, got.Rows, 2)
		assert.Equal(t, tbl.Rows[0].Fields, got.Rows[0].Fields)
		assert.Equal(t, tbl.Rows[1].Fields, got.Rows[1].Fields)
	})

	t.Run("overwrites existing output", func(t *testing.T) {
		path := writeFile(t, "out.csv", "stale,content\nx,y\n")
		require.NoError(t, WriteTableAtomic(path, tbl))

		got, err := LoadTable(path)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(tbl.Header, got.Header))
		assert.Len(t, got.Rows, 2)
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.csv")
		require.NoError(t, WriteTableAtomic(path, tbl))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "out.csv", entries[0].Name())
	})
}
