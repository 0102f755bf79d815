// Command reconcile runs one load-reconcile-write cycle: it reads the grants
// CSV and the state reference, fills in missing (state, year) combinations
// with zero-valued rows, and writes the cleaned CSV atomically. When a Kafka
// sink topic is configured the cleaned records are published as well.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/grant-data-etl/internal/adapter/csvfile"
	kafkaadapter "github.com/couchcryptid/grant-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/grant-data-etl/internal/config"
	"github.com/couchcryptid/grant-data-etl/internal/domain"
	"github.com/couchcryptid/grant-data-etl/internal/observability"
	"github.com/couchcryptid/grant-data-etl/internal/pipeline"
)

func main() {
	grantsPath := flag.String("grants", "data/nsf_grants_clean.csv", "grants CSV to reconcile")
	statesPath := flag.String("states", "data/state_abbreviations.csv", "state abbreviations reference CSV")
	outPath := flag.String("out", "", "output path for the cleaned CSV (default: overwrite -grants)")
	mappingPath := flag.String("mapping", "", "optional YAML column mapping file")
	flag.Parse()

	if *outPath == "" {
		*outPath = *grantsPath
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	mapping, err := config.LoadMapping(*mappingPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: load mapping: %v\n", err)
		os.Exit(1)
	}

	var publisher pipeline.RecordPublisher
	if cfg.KafkaEnabled {
		kp := kafkaadapter.NewPublisher(cfg, mapping, logger)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = kp
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(
		&csvfile.TableReader{Path: *grantsPath},
		&csvfile.StateReader{Path: *statesPath},
		&csvfile.TableWriter{Path: *outPath},
		publisher,
		mapping,
		logger,
		metrics,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx)
	if err != nil {
		reportRunError(err)
		os.Exit(1)
	}

	fmt.Printf("reconciled %s: %d rows in, %d rows out, %d synthesized (%d states x %d years)\n",
		*grantsPath, summary.RowsIn, summary.RowsOut, summary.Synthesized, summary.States, summary.Years)
}

// reportRunError unwraps the reconciliation failure modes into messages that
// point at the offending input line instead of a bare error chain.
func reportRunError(err error) {
	var malformed *domain.MalformedRowError
	var unknown *domain.UnknownStateError

	switch {
	case errors.As(err, &malformed):
		fmt.Fprintf(os.Stderr, "reconcile: input rejected: %v\n", malformed)
		fmt.Fprintln(os.Stderr, "fix the offending row (or the column mapping) and re-run; no output was written")
	case errors.As(err, &unknown):
		fmt.Fprintf(os.Stderr, "reconcile: input rejected: %v\n", unknown)
		fmt.Fprintln(os.Stderr, "the state is not in the reference list; correct the row or extend the reference CSV")
	default:
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
	}
}
