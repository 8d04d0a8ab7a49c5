package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// OpenDB opens and pings a PostgreSQL connection pool.
func OpenDB(cfg DBConfig) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("Connected to the PostgreSQL snapshot store")
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sql.DB) {
	if db != nil {
		log.Info().Msg("Closing database connection...")
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS pool_snapshots (
		block_number BIGINT NOT NULL,
		variant VARCHAR(255) NOT NULL,
		pool_address VARCHAR(42) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (block_number, variant)
	);
	CREATE INDEX IF NOT EXISTS idx_pool_snapshots_block ON pool_snapshots(block_number DESC);
	CREATE INDEX IF NOT EXISTS idx_pool_snapshots_pool ON pool_snapshots(pool_address);
`

// EnsureSchema creates the snapshot tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured (pool_snapshots).")
	return nil
}

// DropSchema removes every snapshot table. Used by the reset script.
func DropSchema(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := db.Exec(`DROP TABLE IF EXISTS pool_snapshots CASCADE;`); err != nil {
		return fmt.Errorf("failed to drop snapshot tables: %w", err)
	}
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
