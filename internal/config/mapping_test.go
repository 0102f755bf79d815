package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/grant-data-etl/internal/domain"
)

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMapping(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		mapping, err := LoadMapping("")
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultMapping(), mapping)
	})

	t.Run("full mapping file", func(t *testing.T) {
		path := writeMapping(t, `
state_column: st
year_column: fiscal_year
measure_column: amount
defaults:
  directorate: "n/a"
`)

		mapping, err := LoadMapping(path)
		require.NoError(t, err)

		assert.Equal(t, "st", mapping.StateColumn)
		assert.Equal(t, "fiscal_year", mapping.YearColumn)
		assert.Equal(t, "amount", mapping.MeasureColumn)
		assert.Equal(t, "n/a", mapping.DefaultFor("directorate"))
	})

	t.Run("partial mapping keeps defaults", func(t *testing.T) {
		path := writeMapping(t, "measure_column: obligated_amount\n")

		mapping, err := LoadMapping(path)
		require.NoError(t, err)

		assert.Equal(t, "state", mapping.StateColumn)
		assert.Equal(t, "year", mapping.YearColumn)
		assert.Equal(t, "obligated_amount", mapping.MeasureColumn)
	})

	t.Run("duplicate role columns rejected", func(t *testing.T) {
		path := writeMapping(t, "state_column: year\nyear_column: year\n")

		_, err := LoadMapping(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "more than one role")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadMapping(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeMapping(t, "state_column: [unterminated\n")
		_, err := LoadMapping(path)
		require.Error(t, err)
	})
}
