package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/viper"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// GetConfig returns database configuration with defaults
func GetConfig() *DBConfig {
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", "vaultbank")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", time.Minute*5)

	return &DBConfig{
		Host:            viper.GetString("database.host"),
		Port:            viper.GetString("database.port"),
		User:            viper.GetString("database.user"),
		Password:        viper.GetString("database.password"),
		Name:            viper.GetString("database.name"),
		SSLMode:         viper.GetString("database.ssl_mode"),
		MaxOpenConns:    viper.GetInt("database.max_open_conns"),
		MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
	}
}

// InitDB opens and verifies the database connection
func InitDB() (*sql.DB, error) {
	config := GetConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Name, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	log.Println("Database connection established")
	return db, nil
}

// Migrate creates the ledger schema if it does not exist yet. Accounts and
// transactions are never dropped; the transaction log is append-only.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_number VARCHAR(10) PRIMARY KEY,
			account_type   VARCHAR(16) NOT NULL,
			currency       VARCHAR(3) NOT NULL,
			balance        NUMERIC(19,4) NOT NULL DEFAULT 0,
			status         VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
			owner_id       VARCHAR(64) NOT NULL,
			version        INTEGER NOT NULL DEFAULT 1,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT balance_non_negative CHECK (balance >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id                  UUID PRIMARY KEY,
			type                VARCHAR(16) NOT NULL,
			source_account      VARCHAR(10) REFERENCES accounts(account_number),
			destination_account VARCHAR(10) REFERENCES accounts(account_number),
			amount              NUMERIC(19,4) NOT NULL,
			status              VARCHAR(16) NOT NULL DEFAULT 'PENDING',
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at        TIMESTAMPTZ,
			CONSTRAINT amount_positive CHECK (amount > 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_source ON transactions (source_account, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_destination ON transactions (destination_account, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id             BIGSERIAL PRIMARY KEY,
			transaction_id UUID NOT NULL,
			account_number VARCHAR(10) NOT NULL REFERENCES accounts(account_number),
			amount         NUMERIC(19,4) NOT NULL,
			entry_type     VARCHAR(6) NOT NULL,
			balance        NUMERIC(19,4) NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
