// Package kafka publishes cleaned grant records to the sink topic for
// downstream consumers that prefer a stream over re-reading the CSV.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/grant-data-etl/internal/config"
	"github.com/couchcryptid/grant-data-etl/internal/domain"
)

// Publisher produces cleaned records to a Kafka topic.
// It implements pipeline.RecordPublisher.
type Publisher struct {
	writer  *kafkago.Writer
	mapping domain.Mapping
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(cfg *config.Config, mapping domain.Mapping, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, mapping: mapping, logger: logger}
}

// PublishTable serializes every cleaned row as a JSON object keyed by column
// name and publishes the batch in a single WriteMessages call.
func (p *Publisher) PublishTable(ctx context.Context, tbl domain.Table, summary domain.Summary) error {
	if len(tbl.Rows) == 0 {
		return nil
	}

	stateIdx := tbl.ColumnIndex(p.mapping.StateColumn)
	yearIdx := tbl.ColumnIndex(p.mapping.YearColumn)

	msgs := make([]kafkago.Message, len(tbl.Rows))
	for i, row := range tbl.Rows {
		msg, err := serializeToMessage(tbl.Header, row, stateIdx, yearIdx, summary.CompletedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	p.logger.Info("publishing cleaned records", "topic", p.writer.Topic, "count", len(msgs))
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals one cleaned row into a Kafka message. The key
// is "<state>|<year>" so a compacted topic retains exactly one record per
// reconciliation key.
func serializeToMessage(header []string, row domain.Row, stateIdx, yearIdx int, cleanedAt time.Time) (kafkago.Message, error) {
	fields := make(map[string]string, len(header))
	for i, col := range header {
		fields[col] = row.Field(i)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize cleaned record: %w", err)
	}

	state := strings.TrimSpace(row.Field(stateIdx))
	year := strings.TrimSpace(row.Field(yearIdx))
	return kafkago.Message{
		Key:   []byte(state + "|" + year),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "state", Value: []byte(state)},
			{Key: "year", Value: []byte(year)},
			{Key: "cleaned_at", Value: []byte(cleanedAt.Format(time.RFC3339))},
		},
	}, nil
}
