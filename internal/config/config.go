package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Chain     ChainConfig
	Collector CollectorConfig
	Secrets   SecretsConfig
	Logger    LoggerConfig
}

// ServerConfig holds the ops HTTP server configuration
type ServerConfig struct {
	MetricsPort int
	CronSecret  string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// ChainConfig holds RPC endpoint and contract addresses
type ChainConfig struct {
	RPCURL              string
	ChainID             int64
	DelegationManager   string
	SubscriptionManager string
	ReceiptTimeout      time.Duration
}

// CollectorConfig holds the collection loop tuning knobs
type CollectorConfig struct {
	// OperatingKey is the collector's signing key as a hex string. Left
	// empty when the key comes from a secret manager instead.
	OperatingKey string

	// OperatingKeySecretPath, when set, fetches the key through the
	// configured secret manager.
	OperatingKeySecretPath string

	BatchSize       int // concurrent charge workflows per cycle
	BacklogMultiple int // scan cap = BatchSize * BacklogMultiple
	PollInterval    time.Duration
	ErrorBackoff    time.Duration
}

// SecretsConfig selects and configures the secret manager backend
type SecretsConfig struct {
	// Manager: "local", "vault", or "aws". Empty disables secret lookups.
	Manager string

	LocalBasePath string

	VaultAddress string
	VaultToken   string

	AWSRegion string

	// DBPasswordSecretPath, when set, overrides DB_PASSWORD with the value
	// fetched from the secret manager.
	DBPasswordSecretPath string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
			CronSecret:  getEnv("CRON_SECRET", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "billing"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Chain: ChainConfig{
			RPCURL:              getEnv("RPC_URL", ""),
			ChainID:             int64(getEnvAsInt("CHAIN_ID", 0)),
			DelegationManager:   getEnv("DELEGATION_MANAGER_ADDRESS", ""),
			SubscriptionManager: getEnv("SUBSCRIPTION_MANAGER_ADDRESS", ""),
			ReceiptTimeout:      getEnvAsDuration("RECEIPT_TIMEOUT", 2*time.Minute),
		},
		Collector: CollectorConfig{
			OperatingKey:           getEnv("COLLECTOR_PRIVATE_KEY", ""),
			OperatingKeySecretPath: getEnv("COLLECTOR_KEY_SECRET_PATH", ""),
			BatchSize:              getEnvAsInt("BATCH_SIZE", 5),
			BacklogMultiple:        getEnvAsInt("BACKLOG_MULTIPLE", 4),
			PollInterval:           getEnvAsDuration("POLL_INTERVAL", time.Minute),
			ErrorBackoff:           getEnvAsDuration("ERROR_BACKOFF", 10*time.Second),
		},
		Secrets: SecretsConfig{
			Manager:              getEnv("SECRET_MANAGER", ""),
			LocalBasePath:        getEnv("SECRETS_BASE_PATH", "./secrets"),
			VaultAddress:         getEnv("VAULT_ADDR", ""),
			VaultToken:           getEnv("VAULT_TOKEN", ""),
			AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
			DBPasswordSecretPath: getEnv("DB_PASSWORD_SECRET_PATH", ""),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces the fatal-at-startup rules: a missing required value is
// a startup error, never a runtime-recoverable one.
func (c *Config) validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID is required and must be positive")
	}
	if !common.IsHexAddress(c.Chain.DelegationManager) {
		return fmt.Errorf("DELEGATION_MANAGER_ADDRESS is required and must be a hex address")
	}
	if !common.IsHexAddress(c.Chain.SubscriptionManager) {
		return fmt.Errorf("SUBSCRIPTION_MANAGER_ADDRESS is required and must be a hex address")
	}
	if c.Collector.OperatingKey == "" && c.Collector.OperatingKeySecretPath == "" {
		return fmt.Errorf("COLLECTOR_PRIVATE_KEY or COLLECTOR_KEY_SECRET_PATH is required")
	}
	if c.Collector.OperatingKeySecretPath != "" && c.Secrets.Manager == "" {
		return fmt.Errorf("SECRET_MANAGER is required when COLLECTOR_KEY_SECRET_PATH is set")
	}
	if c.Database.Password == "" && c.Secrets.DBPasswordSecretPath == "" {
		return fmt.Errorf("DB_PASSWORD or DB_PASSWORD_SECRET_PATH is required")
	}
	if c.Collector.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1")
	}
	if c.Collector.BacklogMultiple < 1 {
		return fmt.Errorf("BACKLOG_MULTIPLE must be at least 1")
	}
	if c.Collector.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	return nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
