package identity

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"
)

// NewSecretCache returns a cached Secrets Manager source for service token secrets
func NewSecretCache(client *secretsmanager.Client) (*secretcache.Cache, error) {
	cache, err := secretcache.New(
		func(c *secretcache.Cache) {
			c.Client = client
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secret cache: %w", err)
	}
	return cache, nil
}
