// Package pipeline orchestrates the one-shot reconciliation run:
// load the grants table and the state reference, reconcile, write the
// cleaned CSV, and optionally publish the cleaned records.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/grant-data-etl/internal/domain"
	"github.com/couchcryptid/grant-data-etl/internal/observability"
)

// TableSource loads the grants working table.
type TableSource interface {
	LoadTable(ctx context.Context) (domain.Table, error)
}

// StateSource loads the canonical state reference set.
type StateSource interface {
	LoadStates(ctx context.Context) (domain.StateSet, error)
}

// TableSink writes the reconciled table to its destination.
type TableSink interface {
	WriteTable(ctx context.Context, tbl domain.Table) error
}

// RecordPublisher emits the cleaned records to downstream consumers.
type RecordPublisher interface {
	PublishTable(ctx context.Context, tbl domain.Table, summary domain.Summary) error
}

// Pipeline wires the reconciliation stages together.
type Pipeline struct {
	source    TableSource
	states    StateSource
	sink      TableSink
	publisher RecordPublisher // nil disables publishing
	mapping   domain.Mapping
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline. Pass a nil publisher to skip the publish stage.
func New(source TableSource, states StateSource, sink TableSink, publisher RecordPublisher,
	mapping domain.Mapping, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:    source,
		states:    states,
		sink:      sink,
		publisher: publisher,
		mapping:   mapping,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes one load-reconcile-write cycle. Nothing is written when any
// stage fails, so a partially cleaned file never reaches consumers.
func (p *Pipeline) Run(ctx context.Context) (domain.Summary, error) {
	start := time.Now()

	states, err := p.states.LoadStates(ctx)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("load states: %w", err)
	}
	p.logger.Info("state reference loaded", "states", states.Len())

	tbl, err := p.source.LoadTable(ctx)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("load grants: %w", err)
	}
	p.metrics.RowsRead.Add(float64(len(tbl.Rows)))
	p.logger.Info("grants table loaded", "rows", len(tbl.Rows), "columns", len(tbl.Header))

	out, summary, err := domain.Reconcile(tbl, p.mapping, states)
	if err != nil {
		p.metrics.ReconcileFailures.Inc()
		return domain.Summary{}, fmt.Errorf("reconcile: %w", err)
	}
	p.metrics.RowsSynthesized.Add(float64(summary.Synthesized))

	if err := p.sink.WriteTable(ctx, out); err != nil {
		return domain.Summary{}, fmt.Errorf("write cleaned table: %w", err)
	}
	p.metrics.RowsWritten.Add(float64(summary.RowsOut))

	if p.publisher != nil {
		if err := p.publisher.PublishTable(ctx, out, summary); err != nil {
			return domain.Summary{}, fmt.Errorf("publish cleaned records: %w", err)
		}
	}

	p.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("reconciliation complete",
		"rows_in", summary.RowsIn,
		"rows_out", summary.RowsOut,
		"synthesized", summary.Synthesized,
		"states", summary.States,
		"years", summary.Years,
	)
	return summary, nil
}
