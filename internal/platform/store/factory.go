package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hirosato/checklist-portal/backend/internal/common/config"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
	ddbclient "github.com/hirosato/checklist-portal/backend/internal/platform/dynamodb/client"
	"github.com/hirosato/checklist-portal/backend/internal/platform/dynamodb/repository"
	"github.com/hirosato/checklist-portal/backend/internal/platform/sqlite"
)

// Store is an opened client repository and the function that releases it
type Store struct {
	Repository portal.Repository
	Close      func() error
}

// Open creates the repository selected by cfg.StoreBackend
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		client, err := ddbclient.NewDynamoDBClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
		}
		factory := repository.NewFactory(client, cfg.DynamoDBTableName, logger)
		return &Store{
			Repository: factory.ClientRepository(),
			Close:      func() error { return nil },
		}, nil

	case config.BackendSQLite:
		repo, err := sqlite.NewClientRepository(cfg.SQLitePath, logger.With("repository", "client"))
		if err != nil {
			return nil, err
		}
		return &Store{Repository: repo, Close: repo.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
