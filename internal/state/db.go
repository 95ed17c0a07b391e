// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool. Nil when the service runs without
// persistence; callers must treat that as journaling disabled, not an error.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// LoadDBConfigFromEnv reads DB_* environment variables. The second return is
// false when DB_HOST is unset, which means the operator chose to run without
// persistence.
func LoadDBConfigFromEnv() (DBConfig, bool, error) {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return DBConfig{}, false, nil
	}

	port := 5432
	if portStr := os.Getenv("DB_PORT"); portStr != "" {
		parsed, err := strconv.Atoi(portStr)
		if err != nil {
			return DBConfig{}, false, fmt.Errorf("DB_PORT must be a valid integer, got: %s", portStr)
		}
		port = parsed
	}

	cfg := DBConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}
	if cfg.User == "" || cfg.DBName == "" {
		return DBConfig{}, false, fmt.Errorf("DB_USER and DB_NAME are required when DB_HOST is set")
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	return cfg, true, nil
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// Enabled reports whether the estimate journal is available.
func Enabled() bool {
	return DB != nil
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS estimate_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			kind VARCHAR(20) NOT NULL,
			pool_address VARCHAR(64),
			chain_id INTEGER,
			il_percent DECIMAL(20, 8) NOT NULL,
			fee_apr DECIMAL(20, 8) NOT NULL,
			net_apr DECIMAL(20, 8) NOT NULL,
			recommendation TEXT NOT NULL,
			notes JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_estimate_snapshots_created_at ON estimate_snapshots(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_estimate_snapshots_pool ON estimate_snapshots(pool_address);
		CREATE INDEX IF NOT EXISTS idx_estimate_snapshots_kind ON estimate_snapshots(kind);

		-- Request counter table for persistent global request tracking
		CREATE TABLE IF NOT EXISTS request_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			total_requests BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO request_counter (id, total_requests)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured (estimate_snapshots and request_counter).")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
