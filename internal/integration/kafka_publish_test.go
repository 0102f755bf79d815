//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/couchcryptid/grant-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/grant-data-etl/internal/config"
	"github.com/couchcryptid/grant-data-etl/internal/domain"
)

const testSinkTopic = "grants-cleaned-test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-broker Kafka container and returns its
// bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// cleanedMessage holds a deserialized record read from the sink topic.
type cleanedMessage struct {
	Record  map[string]string
	Key     string
	Headers map[string]string
}

func readCleaned(ctx context.Context, t *testing.T, consumer *kafkago.Reader) cleanedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var record map[string]string
	require.NoError(t, json.Unmarshal(msg.Value, &record), "unmarshal sink message")

	return cleanedMessage{
		Record:  record,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

// TestPublishReconciledTable reconciles a small grants table and publishes it
// through real Kafka, verifying keys, headers, and record payloads including
// the synthesized zero rows.
func TestPublishReconciledTable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	states := domain.NewStateSet([]domain.StateEntry{
		{Name: "California", Code: "CA"},
		{Name: "New York", Code: "NY"},
	})
	tbl := domain.Table{
		Header: []string{"award_id", "state", "year", "award_amount"},
		Rows: []domain.Row{
			{Line: 2, Fields: []string{"1700001", "CA", "2020", "125000.50"}},
			{Line: 3, Fields: []string{"1700002", "NY", "2021", "98000.00"}},
		},
	}

	cleaned, summary, err := domain.Reconcile(tbl, domain.DefaultMapping(), states)
	require.NoError(t, err)
	require.Equal(t, 4, summary.RowsOut)
	require.Equal(t, 2, summary.Synthesized)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
		KafkaEnabled:   true,
	}
	publisher := kafkaadapter.NewPublisher(cfg, domain.DefaultMapping(), discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	require.NoError(t, publisher.PublishTable(ctx, cleaned, summary))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make(map[string]cleanedMessage, summary.RowsOut)
	for len(received) < summary.RowsOut {
		cm := readCleaned(ctx, t, consumer)
		received[cm.Key] = cm
	}

	require.Len(t, received, 4)

	// Original row round-trips with its award ID intact.
	ca2020, ok := received["CA|2020"]
	require.True(t, ok, "expected CA|2020 message")
	assert.Equal(t, "1700001", ca2020.Record["award_id"])
	assert.Equal(t, "125000.50", ca2020.Record["award_amount"])
	assert.Equal(t, "CA", ca2020.Headers["state"])
	assert.Equal(t, "2020", ca2020.Headers["year"])

	// Synthesized row carries a zero measure and empty defaults.
	ny2020, ok := received["NY|2020"]
	require.True(t, ok, "expected NY|2020 message")
	assert.Equal(t, "0", ny2020.Record["award_amount"])
	assert.Equal(t, "", ny2020.Record["award_id"])

	// Every message carries the run's completion timestamp.
	for key, cm := range received {
		cleanedAt, ok := cm.Headers["cleaned_at"]
		require.True(t, ok, "message %s missing cleaned_at header", key)
		parsed, err := time.Parse(time.RFC3339, cleanedAt)
		assert.NoError(t, err, "cleaned_at should be valid RFC3339")
		assert.Equal(t, summary.CompletedAt.Truncate(time.Second), parsed.Truncate(time.Second))
	}
}
