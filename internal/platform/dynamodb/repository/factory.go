package repository

import (
	"log/slog"

	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
	"github.com/hirosato/checklist-portal/backend/internal/platform/dynamodb/client"
)

// Factory creates repository instances
type Factory struct {
	client    client.Client
	tableName string
	logger    *slog.Logger
}

// NewFactory creates a new repository factory
func NewFactory(client client.Client, tableName string, logger *slog.Logger) *Factory {
	return &Factory{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// ClientRepository returns an implementation of the portal.Repository interface
func (f *Factory) ClientRepository() portal.Repository {
	return NewDynamoDBClientRepository(f.client, f.tableName, f.logger.With("repository", "client"))
}
