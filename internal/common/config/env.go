package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
)

// Config represents the application configuration
// This struct contains all configuration parameters for the application
type Config struct {
	// AWS-specific configuration
	AWSRegion         string
	DynamoDBTableName string
	// DynamoDBEndpoint points the client at a local DynamoDB when set
	DynamoDBEndpoint string
	UserPoolID       string
	UserPoolClientID string

	// Environment and region info
	Environment string
	Region      string

	// Store selection
	StoreBackend string
	SQLitePath   string

	// Roles
	StaffGroup           string
	ServiceTokenSecretID string

	// Editing
	AutosaveDelay time.Duration
	DefaultYear   int

	// Lambda detection flag (cached)
	isLambda bool
}

// LoadFromEnv loads the configuration from environment variables.
// Every problem found is reported in the returned error.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.isLambda = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	// Environment and region info
	cfg.Environment = getenv("ENVIRONMENT", "dev")
	cfg.Region = getenv("REGION", "jp")

	// AWS Region
	cfg.AWSRegion = os.Getenv("AWS_REGION")
	if cfg.AWSRegion == "" {
		// Default AWS regions based on our region code
		switch cfg.Region {
		case "us":
			cfg.AWSRegion = "us-west-2"
		case "eu":
			cfg.AWSRegion = "eu-west-1"
		default:
			cfg.AWSRegion = "ap-northeast-1"
		}
	}

	defaultBackend := BackendSQLite
	if cfg.isLambda {
		defaultBackend = BackendDynamoDB
	}
	cfg.StoreBackend = getenv("STORE_BACKEND", defaultBackend)
	cfg.DynamoDBTableName = os.Getenv("DYNAMODB_TABLE_NAME")
	cfg.DynamoDBEndpoint = os.Getenv("DYNAMODB_ENDPOINT")
	cfg.SQLitePath = getenv("SQLITE_PATH", "./data/portal.db")

	cfg.UserPoolID = os.Getenv("USER_POOL_ID")
	cfg.UserPoolClientID = os.Getenv("USER_POOL_CLIENT_ID")
	cfg.StaffGroup = getenv("STAFF_GROUP", "staff")
	cfg.ServiceTokenSecretID = os.Getenv("SERVICE_TOKEN_SECRET_ID")

	cfg.AutosaveDelay = 2 * time.Second
	if v := os.Getenv("AUTOSAVE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUTOSAVE_DELAY: %w", err))
		} else {
			cfg.AutosaveDelay = d
		}
	}

	cfg.DefaultYear = time.Now().Year()
	if v := os.Getenv("DEFAULT_YEAR"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DEFAULT_YEAR: %w", err))
		} else {
			cfg.DefaultYear = y
		}
	}

	if err := errors.Join(append(errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the store settings and value ranges
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case BackendDynamoDB:
		if c.DynamoDBTableName == "" {
			errs = append(errs, errors.New("DYNAMODB_TABLE_NAME environment variable is required for the dynamodb store"))
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %s or %s, got %q", BackendDynamoDB, BackendSQLite, c.StoreBackend))
	}
	if c.AutosaveDelay < 0 {
		errs = append(errs, errors.New("AUTOSAVE_DELAY must not be negative"))
	}
	if c.DefaultYear < 2000 || c.DefaultYear > 2100 {
		errs = append(errs, fmt.Errorf("DEFAULT_YEAR must be between 2000 and 2100, got %d", c.DefaultYear))
	}
	return errors.Join(errs...)
}

// ValidateAuthorizer checks the settings the token verifier needs
func (c *Config) ValidateAuthorizer() error {
	var errs []error
	if c.UserPoolID == "" {
		errs = append(errs, errors.New("USER_POOL_ID environment variable is required"))
	}
	if c.UserPoolClientID == "" {
		errs = append(errs, errors.New("USER_POOL_CLIENT_ID environment variable is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// IsLambda returns true if the application is running in AWS Lambda
func (c *Config) IsLambda() bool {
	return c.isLambda
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
