package portal

import (
	"context"
)

// Repository is the per client document store
type Repository interface {
	// Get the whole document of a client, NOT_FOUND if it does not exist
	GetClient(ctx context.Context, id string) (*ClientRecord, error)

	// Apply a partial update to an existing client, NOT_FOUND if it does not exist
	UpdateClient(ctx context.Context, id string, fields Fields) error

	// Create a new client document and return its id
	CreateClient(ctx context.Context, record *ClientRecord) (string, error)

	// List every client, oldest first
	ListClients(ctx context.Context) ([]ClientSummary, error)
}
