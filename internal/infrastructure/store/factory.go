package store

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/example/memento/internal/config"
)

// NewStoreFromConfig creates a SnapshotStoreInterface implementation based
// on the configured backend, instrumented with append counters.
func NewStoreFromConfig(ctx context.Context, cfg config.Store) (SnapshotStoreInterface, error) {
	inner, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewInstrumentedStore(inner, cfg.Backend), nil
}

func newBackend(ctx context.Context, cfg config.Store) (SnapshotStoreInterface, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path required for sqlite store")
		}
		return NewSQLiteSnapshotStore(cfg.SQLitePath)
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("postgres url required for postgres store")
		}
		db, err := ConnectPostgres(cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return NewPostgresSnapshotStore(db)
	case "dynamodb":
		if cfg.DynamoTable == "" {
			return nil, fmt.Errorf("dynamo table required for dynamodb store")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewDynamoSnapshotStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
