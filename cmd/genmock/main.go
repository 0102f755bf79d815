// Command genmock generates deterministic mock data fixtures for local
// development and the integration suite: a state abbreviations reference, a
// raw grants CSV with deliberate (state, year) gaps, a cancelled grants CSV,
// a wide-format population estimates CSV, and the reconciled clean CSV
// produced by the actual domain reconciler so fixtures match real pipeline
// behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir data/mock
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/grant-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/grant-data-etl/internal/domain"
)

// Fixed seed keeps every generated fixture byte-identical across runs.
const seed = 20170101

var mockStates = []domain.StateEntry{
	{Name: "California", Code: "CA"},
	{Name: "Colorado", Code: "CO"},
	{Name: "Massachusetts", Code: "MA"},
	{Name: "New York", Code: "NY"},
	{Name: "Texas", Code: "TX"},
	{Name: "Virginia", Code: "VA"},
}

var mockDirectorates = []string{"BIO", "CSE", "EHR", "ENG", "GEO", "MPS"}

var mockYears = []int{2017, 2018, 2019, 2020, 2021}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "data/mock", "directory to write fixture CSVs into")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2022, time.January, 15, 12, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(seed))

	statesTable := statesFixture()
	if err := csvfile.WriteTableAtomic(*outDir+"/state_abbreviations.csv", statesTable); err != nil {
		return fmt.Errorf("write states fixture: %w", err)
	}
	log.Printf("wrote %s/state_abbreviations.csv: %d states", *outDir, len(mockStates))

	grants := grantsFixture(rng)
	if err := csvfile.WriteTableAtomic(*outDir+"/nsf_grants_raw.csv", grants); err != nil {
		return fmt.Errorf("write raw grants fixture: %w", err)
	}
	log.Printf("wrote %s/nsf_grants_raw.csv: %d rows", *outDir, len(grants.Rows))

	cancelled := cancelledFixture(rng)
	if err := csvfile.WriteTableAtomic(*outDir+"/cancelled_grants.csv", cancelled); err != nil {
		return fmt.Errorf("write cancelled fixture: %w", err)
	}
	log.Printf("wrote %s/cancelled_grants.csv: %d rows", *outDir, len(cancelled.Rows))

	population := populationFixture(rng)
	if err := csvfile.WriteTableAtomic(*outDir+"/estimated_population.csv", population); err != nil {
		return fmt.Errorf("write population fixture: %w", err)
	}
	log.Printf("wrote %s/estimated_population.csv: %d rows", *outDir, len(population.Rows))

	// Run the actual reconciler so the clean fixture matches pipeline output.
	states := domain.NewStateSet(mockStates)
	clean, summary, err := domain.Reconcile(grants, domain.DefaultMapping(), states)
	if err != nil {
		return fmt.Errorf("reconcile raw fixture: %w", err)
	}
	if err := csvfile.WriteTableAtomic(*outDir+"/nsf_grants_clean.csv", clean); err != nil {
		return fmt.Errorf("write clean fixture: %w", err)
	}
	log.Printf("wrote %s/nsf_grants_clean.csv: %d rows (%d synthesized)",
		*outDir, summary.RowsOut, summary.Synthesized)

	printStats(grants, clean, summary)
	return nil
}

func statesFixture() domain.Table {
	tbl := domain.Table{Header: []string{"state", "abbreviation"}}
	for i, s := range mockStates {
		tbl.Rows = append(tbl.Rows, domain.Row{Line: i + 2, Fields: []string{s.Name, s.Code}})
	}
	return tbl
}

// grantsFixture emits one aggregated row per (state, year) but skips roughly
// a fifth of the combinations entirely so the reconciler has gaps to fill.
func grantsFixture(rng *rand.Rand) domain.Table {
	tbl := domain.Table{Header: []string{"award_id", "state", "year", "directorate", "award_amount"}}

	awardID := 1700000
	line := 2
	for _, year := range mockYears {
		for _, s := range mockStates {
			if rng.Intn(5) == 0 {
				continue
			}
			amount := float64(50000+rng.Intn(950000)) + float64(rng.Intn(100))/100
			tbl.Rows = append(tbl.Rows, domain.Row{Line: line, Fields: []string{
				strconv.Itoa(awardID),
				s.Code,
				strconv.Itoa(year),
				mockDirectorates[rng.Intn(len(mockDirectorates))],
				strconv.FormatFloat(amount, 'f', 2, 64),
			}})
			awardID++
			line++
		}
	}
	return tbl
}

func cancelledFixture(rng *rand.Rand) domain.Table {
	tbl := domain.Table{Header: []string{"award_id", "state", "year", "directorate", "award_amount"}}

	awardID := 1900000
	for i := 0; i < 25; i++ {
		s := mockStates[rng.Intn(len(mockStates))]
		amount := float64(25000+rng.Intn(400000)) + float64(rng.Intn(100))/100
		tbl.Rows = append(tbl.Rows, domain.Row{Line: i + 2, Fields: []string{
			strconv.Itoa(awardID),
			s.Code,
			strconv.Itoa(mockYears[rng.Intn(len(mockYears))]),
			mockDirectorates[rng.Intn(len(mockDirectorates))],
			strconv.FormatFloat(amount, 'f', 2, 64),
		}})
		awardID++
	}
	return tbl
}

// populationFixture emits the wide format the census estimates ship in: one
// row per state with a pop_YYYY column per year.
func populationFixture(rng *rand.Rand) domain.Table {
	header := []string{"state"}
	for _, year := range mockYears {
		header = append(header, fmt.Sprintf("pop_%d", year))
	}

	tbl := domain.Table{Header: header}
	for i, s := range mockStates {
		base := int64(1_000_000 + rng.Intn(38_000_000))
		fields := []string{s.Name}
		for range mockYears {
			fields = append(fields, strconv.FormatInt(base, 10))
			base += int64(rng.Intn(300_000))
		}
		tbl.Rows = append(tbl.Rows, domain.Row{Line: i + 2, Fields: fields})
	}
	return tbl
}

func printStats(raw, clean domain.Table, summary domain.Summary) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Raw rows: %d\n", len(raw.Rows))
	fmt.Printf("Clean rows: %d (%d states x %d years)\n", len(clean.Rows), summary.States, summary.Years)
	fmt.Printf("Synthesized: %d\n", summary.Synthesized)
	fmt.Printf("Completed at: %s\n", summary.CompletedAt.Format(time.RFC3339))
}
