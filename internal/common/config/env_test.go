package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AWS_LAMBDA_FUNCTION_NAME", "ENVIRONMENT", "REGION", "AWS_REGION", "STORE_BACKEND",
		"DYNAMODB_TABLE_NAME", "DYNAMODB_ENDPOINT", "SQLITE_PATH", "USER_POOL_ID", "USER_POOL_CLIENT_ID",
		"STAFF_GROUP", "SERVICE_TOKEN_SECRET_ID", "AUTOSAVE_DELAY", "DEFAULT_YEAR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("local defaults", func(t *testing.T) {
		// Setup
		clearEnv(t)

		// Act
		cfg, err := LoadFromEnv()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, BackendSQLite, cfg.StoreBackend)
		assert.Equal(t, "./data/portal.db", cfg.SQLitePath)
		assert.Equal(t, "ap-northeast-1", cfg.AWSRegion)
		assert.Equal(t, "staff", cfg.StaffGroup)
		assert.Equal(t, 2*time.Second, cfg.AutosaveDelay)
		assert.Equal(t, time.Now().Year(), cfg.DefaultYear)
		assert.False(t, cfg.IsLambda())
	})

	t.Run("lambda defaults to dynamodb", func(t *testing.T) {
		// Setup
		clearEnv(t)
		t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "portal-mcp")
		t.Setenv("DYNAMODB_TABLE_NAME", "portal")
		t.Setenv("REGION", "eu")

		// Act
		cfg, err := LoadFromEnv()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, BackendDynamoDB, cfg.StoreBackend)
		assert.Equal(t, "eu-west-1", cfg.AWSRegion)
		assert.True(t, cfg.IsLambda())
	})

	t.Run("explicit values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AUTOSAVE_DELAY", "500ms")
		t.Setenv("DEFAULT_YEAR", "2024")
		t.Setenv("ENVIRONMENT", "prod")

		cfg, err := LoadFromEnv()

		require.NoError(t, err)
		assert.Equal(t, 500*time.Millisecond, cfg.AutosaveDelay)
		assert.Equal(t, 2024, cfg.DefaultYear)
		assert.True(t, cfg.IsProd())
	})

	t.Run("every problem is reported", func(t *testing.T) {
		// Setup
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "dynamodb")
		t.Setenv("AUTOSAVE_DELAY", "soon")
		t.Setenv("DEFAULT_YEAR", "1999")

		// Act
		_, err := LoadFromEnv()

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DYNAMODB_TABLE_NAME")
		assert.Contains(t, err.Error(), "AUTOSAVE_DELAY")
		assert.Contains(t, err.Error(), "DEFAULT_YEAR must be between")
	})

	t.Run("unknown backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "postgres")

		_, err := LoadFromEnv()

		assert.ErrorContains(t, err, "STORE_BACKEND")
	})
}

func TestValidateAuthorizer(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateAuthorizer()
	assert.ErrorContains(t, err, "USER_POOL_ID")
	assert.ErrorContains(t, err, "USER_POOL_CLIENT_ID")

	cfg = &Config{UserPoolID: "pool", UserPoolClientID: "client"}
	assert.NoError(t, cfg.ValidateAuthorizer())
}
