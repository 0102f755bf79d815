package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
// The one-shot reconcile binary takes its file paths from flags instead; this
// configuration drives the serve binary and the optional Kafka publisher.
type Config struct {
	GrantsCSV     string
	CancelledCSV  string
	PopulationCSV string
	StatesCSV     string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	SQLitePath     string
	StatsCacheSize int
	CORSOrigins    []string

	// Kafka publishing of cleaned records, enabled when a sink topic is set.
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	sinkTopic := os.Getenv("KAFKA_SINK_TOPIC")

	cfg := &Config{
		GrantsCSV:     sharedcfg.EnvOrDefault("GRANTS_CSV", "data/nsf_grants_clean.csv"),
		CancelledCSV:  sharedcfg.EnvOrDefault("CANCELLED_CSV", "data/cancelled_grants.csv"),
		PopulationCSV: sharedcfg.EnvOrDefault("POPULATION_CSV", "data/estimated_population.csv"),
		StatesCSV:     sharedcfg.EnvOrDefault("STATES_CSV", "data/state_abbreviations.csv"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SQLitePath:     sharedcfg.EnvOrDefault("SQLITE_PATH", ":memory:"),
		StatsCacheSize: parseStatsCacheSize(),
		CORSOrigins:    splitList(sharedcfg.EnvOrDefault("CORS_ORIGINS", "http://localhost:5173")),

		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sinkTopic,
		KafkaEnabled:   sinkTopic != "",
	}

	if cfg.GrantsCSV == "" {
		return nil, errors.New("GRANTS_CSV is required")
	}
	if cfg.StatesCSV == "" {
		return nil, errors.New("STATES_CSV is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_SINK_TOPIC is set but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseStatsCacheSize() int {
	if s := os.Getenv("STATS_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 256
}
