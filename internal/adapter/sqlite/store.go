// Package sqlite persists the cleaned grant datasets and serves the
// aggregation queries behind the stats API. The serve binary reloads all
// three datasets on startup, so the schema favors simple full reloads over
// migrations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/couchcryptid/grant-data-etl/internal/domain"
)

// Store implements the stats queries on SQLite. Use ":memory:" for an
// in-memory database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and ensures the schema exists.
func New(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		// WAL keeps concurrent API reads from blocking each other.
		dsn = path + "?_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS grants (
		award_id     TEXT,
		state        TEXT NOT NULL,
		year         INTEGER NOT NULL,
		directorate  TEXT,
		amount_cents INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_grants_state_year ON grants(state, year);
	CREATE INDEX IF NOT EXISTS idx_grants_directorate ON grants(directorate);

	CREATE TABLE IF NOT EXISTS cancelled (
		award_id     TEXT,
		state        TEXT NOT NULL,
		year         INTEGER NOT NULL,
		directorate  TEXT,
		amount_cents INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cancelled_directorate ON cancelled(directorate);

	CREATE TABLE IF NOT EXISTS population (
		state      TEXT NOT NULL,
		year       INTEGER NOT NULL,
		population INTEGER NOT NULL,
		PRIMARY KEY (state, year)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadGrants replaces the grants table with the rows of the cleaned CSV.
// Rows whose key or amount does not parse are skipped, mirroring the
// dropna join semantics of the dashboards this store feeds; the returned
// count lets the caller report how many made it in.
func (s *Store) LoadGrants(ctx context.Context, tbl domain.Table, mapping domain.Mapping) (int, error) {
	return s.loadAwards(ctx, "grants", tbl, mapping)
}

// LoadCancelled replaces the cancelled-grants table.
func (s *Store) LoadCancelled(ctx context.Context, tbl domain.Table, mapping domain.Mapping) (int, error) {
	return s.loadAwards(ctx, "cancelled", tbl, mapping)
}

func (s *Store) loadAwards(ctx context.Context, table string, tbl domain.Table, mapping domain.Mapping) (int, error) {
	stateIdx := tbl.ColumnIndex(mapping.StateColumn)
	yearIdx := tbl.ColumnIndex(mapping.YearColumn)
	amountIdx := tbl.ColumnIndex(mapping.MeasureColumn)
	if stateIdx < 0 || yearIdx < 0 || amountIdx < 0 {
		return 0, fmt.Errorf("load %s: table missing %q, %q, or %q column",
			table, mapping.StateColumn, mapping.YearColumn, mapping.MeasureColumn)
	}
	idIdx := tbl.ColumnIndex("award_id")
	dirIdx := tbl.ColumnIndex("directorate")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("load %s: begin: %w", table, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return 0, fmt.Errorf("load %s: clear: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+table+" (award_id, state, year, directorate, amount_cents) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("load %s: prepare: %w", table, err)
	}
	defer stmt.Close()

	loaded := 0
	for _, row := range tbl.Rows {
		state := strings.TrimSpace(row.Field(stateIdx))
		year, yearErr := parseYear(row.Field(yearIdx))
		cents, amountErr := amountCents(row.Field(amountIdx))
		if state == "" || yearErr != nil || amountErr != nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			strings.TrimSpace(row.Field(idIdx)),
			state,
			year,
			strings.TrimSpace(row.Field(dirIdx)),
			cents,
		); err != nil {
			return 0, fmt.Errorf("load %s: insert row %d: %w", table, row.Line, err)
		}
		loaded++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("load %s: commit: %w", table, err)
	}
	return loaded, nil
}

// LoadPopulation replaces the population table with the given long-form rows.
func (s *Store) LoadPopulation(ctx context.Context, rows []domain.PopulationRow) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("load population: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM population"); err != nil {
		return 0, fmt.Errorf("load population: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO population (state, year, population) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("load population: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.State, r.Year, r.Population); err != nil {
			return 0, fmt.Errorf("load population: insert %s/%d: %w", r.State, r.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("load population: commit: %w", err)
	}
	return len(rows), nil
}

// StateTotals returns grant counts and dollar totals per state. Year 0
// aggregates all years.
func (s *Store) StateTotals(ctx context.Context, year int) ([]domain.StateTotal, error) {
	rows, err := s.groupTotals(ctx, "grants", "state", year)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StateTotal, len(rows))
	for i, r := range rows {
		out[i] = domain.StateTotal{State: r.key, Year: year, GrantsCount: r.count, TotalAmount: r.amount}
	}
	return out, nil
}

// DirectorateTotals returns grant counts and dollar totals per directorate.
// Year 0 aggregates all years.
func (s *Store) DirectorateTotals(ctx context.Context, year int) ([]domain.DirectorateTotal, error) {
	rows, err := s.groupTotals(ctx, "grants", "directorate", year)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DirectorateTotal, len(rows))
	for i, r := range rows {
		out[i] = domain.DirectorateTotal{Directorate: r.key, Year: year, GrantsCount: r.count, TotalAmount: r.amount}
	}
	return out, nil
}

// YearTotals returns nationwide grant volume per year, ascending.
func (s *Store) YearTotals(ctx context.Context) ([]domain.YearTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT year, COUNT(*), COALESCE(SUM(amount_cents), 0) FROM grants GROUP BY year ORDER BY year")
	if err != nil {
		return nil, fmt.Errorf("year totals: %w", err)
	}
	defer rows.Close()

	var out []domain.YearTotal
	for rows.Next() {
		var t domain.YearTotal
		var cents int64
		if err := rows.Scan(&t.Year, &t.GrantsCount, &cents); err != nil {
			return nil, fmt.Errorf("year totals: scan: %w", err)
		}
		t.TotalAmount = decimal.New(cents, -2)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CancellationsByDirectorate outer-joins active and cancelled aggregates per
// directorate. A directorate with no active awards reports its rate against
// a base of one rather than dividing by zero.
func (s *Store) CancellationsByDirectorate(ctx context.Context) ([]domain.CancellationStat, error) {
	base := make(map[string]int)
	baseRows, err := s.db.QueryContext(ctx,
		"SELECT directorate, COUNT(*) FROM grants GROUP BY directorate")
	if err != nil {
		return nil, fmt.Errorf("cancellations: base query: %w", err)
	}
	defer baseRows.Close()
	for baseRows.Next() {
		var dir string
		var n int
		if err := baseRows.Scan(&dir, &n); err != nil {
			return nil, fmt.Errorf("cancellations: scan base: %w", err)
		}
		base[dir] = n
	}
	if err := baseRows.Err(); err != nil {
		return nil, err
	}

	type cancelAgg struct {
		count int
		cents int64
	}
	cancels := make(map[string]cancelAgg)
	cancelRows, err := s.db.QueryContext(ctx,
		"SELECT directorate, COUNT(*), COALESCE(SUM(amount_cents), 0) FROM cancelled GROUP BY directorate")
	if err != nil {
		return nil, fmt.Errorf("cancellations: cancelled query: %w", err)
	}
	defer cancelRows.Close()
	for cancelRows.Next() {
		var dir string
		var agg cancelAgg
		if err := cancelRows.Scan(&dir, &agg.count, &agg.cents); err != nil {
			return nil, fmt.Errorf("cancellations: scan cancelled: %w", err)
		}
		cancels[dir] = agg
	}
	if err := cancelRows.Err(); err != nil {
		return nil, err
	}

	dirs := make(map[string]bool, len(base)+len(cancels))
	for d := range base {
		dirs[d] = true
	}
	for d := range cancels {
		dirs[d] = true
	}

	out := make([]domain.CancellationStat, 0, len(dirs))
	for dir := range dirs {
		b := base[dir]
		c := cancels[dir]
		divisor := b
		if divisor == 0 {
			divisor = 1
		}
		out = append(out, domain.CancellationStat{
			Directorate: dir,
			BaseCount:   b,
			CancelCount: c.count,
			LostAmount:  decimal.New(c.cents, -2),
			Rate:        float64(c.count) / float64(divisor),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Directorate < out[j].Directorate })
	return out, nil
}

// PerCapita joins state grant totals with population estimates and derives
// dollars per person. Year 0 uses all-years grant totals against the mean
// population; states without a population estimate are omitted.
func (s *Store) PerCapita(ctx context.Context, year int) ([]domain.PerCapitaStat, error) {
	totals, err := s.groupTotals(ctx, "grants", "state", year)
	if err != nil {
		return nil, err
	}

	pops, err := s.populationByState(ctx, year)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PerCapitaStat, 0, len(totals))
	for _, t := range totals {
		pop, ok := pops[t.key]
		if !ok || pop <= 0 {
			continue
		}
		out = append(out, domain.PerCapitaStat{
			State:       t.key,
			Year:        year,
			GrantsCount: t.count,
			TotalAmount: t.amount,
			Population:  pop,
			PerCapita:   t.amount.Div(decimal.NewFromInt(pop)).Round(2),
		})
	}
	return out, nil
}

// groupTotal is one aggregate row keyed by state or directorate.
type groupTotal struct {
	key    string
	count  int
	amount decimal.Decimal
}

func (s *Store) groupTotals(ctx context.Context, table, column string, year int) ([]groupTotal, error) {
	query := "SELECT " + column + ", COUNT(*), COALESCE(SUM(amount_cents), 0) FROM " + table
	args := []any{}
	if year != 0 {
		query += " WHERE year = ?"
		args = append(args, year)
	}
	query += " GROUP BY " + column + " ORDER BY " + column

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s totals by %s: %w", table, column, err)
	}
	defer rows.Close()

	var out []groupTotal
	for rows.Next() {
		var g groupTotal
		var cents int64
		if err := rows.Scan(&g.key, &g.count, &cents); err != nil {
			return nil, fmt.Errorf("%s totals by %s: scan: %w", table, column, err)
		}
		g.amount = decimal.New(cents, -2)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) populationByState(ctx context.Context, year int) (map[string]int64, error) {
	query := "SELECT state, population FROM population WHERE year = ?"
	args := []any{year}
	if year == 0 {
		query = "SELECT state, CAST(ROUND(AVG(population)) AS INTEGER) FROM population GROUP BY state"
		args = nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("population by state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var state string
		var pop int64
		if err := rows.Scan(&state, &pop); err != nil {
			return nil, fmt.Errorf("population by state: scan: %w", err)
		}
		out[state] = pop
	}
	return out, rows.Err()
}

func parseYear(s string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if year <= 0 {
		return 0, fmt.Errorf("year %d out of range", year)
	}
	return year, nil
}

// amountCents converts a dollar string to integer cents exactly.
func amountCents(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
