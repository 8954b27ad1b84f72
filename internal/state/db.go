// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
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

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
//
// All D18 share amounts and raw token balances are stored as NUMERIC(78, 0):
// wide enough for any 256-bit integer, and exact, unlike DOUBLE PRECISION.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS protocol_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			params JSONB NOT NULL,
			CONSTRAINT uq_protocol_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_protocol_parameters_config_active ON protocol_parameters(config_name, is_active, activated_at DESC);

		-- One row per basket this keeper manages. Share amounts are D18.
		CREATE TABLE IF NOT EXISTS basket_state (
			basket_id BIGINT PRIMARY KEY,
			tvl_fee_rate NUMERIC(78, 0) NOT NULL,
			mint_fee_rate NUMERIC(78, 0) NOT NULL,
			dao_pending_fee_shares NUMERIC(78, 0) NOT NULL,
			fee_recipients_pending_fee_shares NUMERIC(78, 0) NOT NULL,
			last_poke BIGINT NOT NULL,
			total_supply NUMERIC(78, 0) NOT NULL,
			fee_recipients JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS auctions (
			auction_id BIGINT PRIMARY KEY,
			sell_token VARCHAR(128) NOT NULL,
			buy_token VARCHAR(128) NOT NULL,
			record JSONB NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_auctions_window ON auctions(start_time, end_time);
		CREATE INDEX IF NOT EXISTS idx_auctions_sell_token ON auctions(sell_token);

		CREATE TABLE IF NOT EXISTS fee_distributions (
			distribution_id UUID PRIMARY KEY,
			amount_to_distribute NUMERIC(78, 0) NOT NULL,
			recipients JSONB NOT NULL,
			distributed BOOLEAN[] NOT NULL,
			initiator VARCHAR(128) NOT NULL,
			closed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_fee_distributions_open ON fee_distributions(closed) WHERE NOT closed;

		CREATE TABLE IF NOT EXISTS reward_tokens (
			token VARCHAR(128) PRIMARY KEY,
			decimals SMALLINT NOT NULL,
			reward_index NUMERIC(78, 0) NOT NULL,
			balance_accounted NUMERIC(78, 0) NOT NULL,
			balance_last_known NUMERIC(78, 0) NOT NULL,
			total_claimed NUMERIC(78, 0) NOT NULL,
			payout_last_paid BIGINT NOT NULL,
			disallowed BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS user_rewards (
			user_address VARCHAR(128) NOT NULL,
			token VARCHAR(128) NOT NULL,
			last_reward_index NUMERIC(78, 0) NOT NULL,
			accrued_rewards NUMERIC(78, 0) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_address, token)
		);

		-- Append-only log of keeper pokes, for operational visibility.
		CREATE TABLE IF NOT EXISTS poke_log (
			poke_id SERIAL PRIMARY KEY,
			basket_id BIGINT NOT NULL,
			poke_timestamp BIGINT NOT NULL,
			elapsed_seconds BIGINT NOT NULL,
			fee_shares_minted NUMERIC(78, 0) NOT NULL,
			dao_shares NUMERIC(78, 0) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_poke_log_basket_time ON poke_log(basket_id, poke_timestamp DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
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
