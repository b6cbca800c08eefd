// Package config loads service configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Store selects and parameterizes a snapshot store backend.
type Store struct {
	Backend     string `env:"MEMENTO_STORE_BACKEND" envDefault:"memory"`
	SQLitePath  string `env:"MEMENTO_SQLITE_PATH"   envDefault:"memento.db"`
	PostgresURL string `env:"MEMENTO_POSTGRES_URL"`
	DynamoTable string `env:"MEMENTO_DYNAMO_TABLE"  envDefault:"memento-snapshots"`
}

// API configures the HTTP API server.
type API struct {
	Addr          string   `env:"MEMENTO_API_ADDR"       envDefault:":8080"`
	KafkaBrokers  []string `env:"MEMENTO_KAFKA_BROKERS"  envSeparator:"," envDefault:"localhost:9092"`
	CaptureTopic  string   `env:"MEMENTO_CAPTURE_TOPIC"  envDefault:"memento.capture-requests"`
	ConsumerGroup string   `env:"MEMENTO_CONSUMER_GROUP" envDefault:"memento-api"`
	Store         Store
}

// Worker configures the standalone capture worker.
type Worker struct {
	KafkaBrokers  []string `env:"MEMENTO_KAFKA_BROKERS"  envSeparator:"," envDefault:"localhost:9092"`
	CaptureTopic  string   `env:"MEMENTO_CAPTURE_TOPIC"  envDefault:"memento.capture-requests"`
	ConsumerGroup string   `env:"MEMENTO_CONSUMER_GROUP" envDefault:"memento-worker"`
	MetricsAddr   string   `env:"MEMENTO_METRICS_ADDR"   envDefault:":9091"`
	Store         Store
}

// Load parses configuration from environment variables into target.
func Load(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
