package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cascade modes
const (
	CascadeModeTransaction = "transaction"
	CascadeModeSaga        = "saga"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port           string
	RequestTimeout time.Duration

	// Database configuration
	DBType                string // mysql, mariadb, postgres, sqlite, sqlite-pure, sqlserver
	DBHost                string
	DBPort                string
	DBDatabase            string
	DBAppUser             string
	DBAppPassword         string
	DBAppConnectionLimit  int
	DBReadUser            string
	DBReadPassword        string
	DBReadConnectionLimit int
	DBLogLevel            string

	// CascadeMode selects how multi-record mutations are applied
	CascadeMode string

	// Authorizer configuration
	AuthzURL      string
	AuthzClientID string

	// External collaborators
	BlobDir         string
	SearchIndexPath string
}

// Load loads configuration from environment variables, after reading an
// optional .env file named by ENV_FILE (or ./.env when present).
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "3000"),
		RequestTimeout:       time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		DBType:               getEnv("DB_TYPE", "mysql"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "3306"),
		DBDatabase:           getEnv("DB_DATABASE", ""),
		DBAppUser:            getEnv("DB_APP_USER", ""),
		DBAppPassword:        getEnv("DB_APP_PASSWORD", ""),
		DBAppConnectionLimit: getEnvAsInt("DB_APP_CONNECTION_LIMIT", 5),
		DBLogLevel:           getEnv("DB_LOG_LEVEL", "warn"),
		CascadeMode:          strings.ToLower(getEnv("CASCADE_MODE", CascadeModeTransaction)),
		AuthzURL:             getEnv("AUTHZ_URL", ""),
		AuthzClientID:        getEnv("AUTHZ_CLIENT_ID", ""),
		BlobDir:              getEnv("BLOB_DIR", "./uploads"),
		SearchIndexPath:      getEnv("SEARCH_INDEX_PATH", "./search.db"),
	}
	// The reader pool falls back to the app credentials
	cfg.DBReadUser = getEnv("DB_READ_USER", cfg.DBAppUser)
	cfg.DBReadPassword = getEnv("DB_READ_PASSWORD", cfg.DBAppPassword)
	cfg.DBReadConnectionLimit = getEnvAsInt("DB_READ_CONNECTION_LIMIT", cfg.DBAppConnectionLimit)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields
func (cfg *Config) Validate() error {
	if cfg.DBDatabase == "" {
		return fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBAppUser == "" && !cfg.IsSQLite() {
		return fmt.Errorf("DB_APP_USER is required")
	}
	if cfg.AuthzURL == "" {
		return fmt.Errorf("AUTHZ_URL is required")
	}
	if cfg.AuthzClientID == "" {
		return fmt.Errorf("AUTHZ_CLIENT_ID is required")
	}
	switch cfg.CascadeMode {
	case CascadeModeTransaction, CascadeModeSaga:
	default:
		return fmt.Errorf("CASCADE_MODE must be %q or %q, got %q", CascadeModeTransaction, CascadeModeSaga, cfg.CascadeMode)
	}
	return nil
}

// IsSQLite reports whether the configured database is a SQLite file
func (cfg *Config) IsSQLite() bool {
	return cfg.DBType == "sqlite" || cfg.DBType == "sqlite-pure"
}

func loadEnvFile() error {
	if name := os.Getenv("ENV_FILE"); name != "" {
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
		log.Printf("Loaded environment from %s", name)
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		// Existing environment variables take precedence over .env
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
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
