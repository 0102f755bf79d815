package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/couchcryptid/grant-data-etl/internal/domain"
)

// LoadMapping reads a column-mapping YAML file, filling unset fields from
// the default NSF export mapping. An empty path returns the defaults, so the
// mapping file stays optional:
//
//	state_column: state
//	year_column: year
//	measure_column: award_amount
//	defaults:
//	  directorate: "n/a"
func LoadMapping(path string) (domain.Mapping, error) {
	mapping := domain.DefaultMapping()
	if path == "" {
		return mapping, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Mapping{}, fmt.Errorf("read mapping %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return domain.Mapping{}, fmt.Errorf("parse mapping %s: %w", path, err)
	}

	defaults := domain.DefaultMapping()
	if mapping.StateColumn == "" {
		mapping.StateColumn = defaults.StateColumn
	}
	if mapping.YearColumn == "" {
		mapping.YearColumn = defaults.YearColumn
	}
	if mapping.MeasureColumn == "" {
		mapping.MeasureColumn = defaults.MeasureColumn
	}

	if err := validateMapping(mapping); err != nil {
		return domain.Mapping{}, fmt.Errorf("mapping %s: %w", path, err)
	}
	return mapping, nil
}

// validateMapping rejects mappings where two roles share a column.
func validateMapping(m domain.Mapping) error {
	cols := []string{m.StateColumn, m.YearColumn, m.MeasureColumn}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		key := strings.ToLower(strings.TrimSpace(c))
		if seen[key] {
			return fmt.Errorf("column %q mapped to more than one role", c)
		}
		seen[key] = true
	}
	return nil
}
