package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/viper"
)

var db *sql.DB

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
	viper.SetDefault("database.name", "campreserv_ledger")
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

// InitDB initializes the database connection
func InitDB() (*sql.DB, error) {
	config := GetConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Name, config.SSLMode,
	)

	var err error
	db, err = sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test connection
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	log.Println("Database connection established")
	return db, nil
}

// GetDB returns the database connection
func GetDB() *sql.DB {
	return db
}

// CloseDB closes the database connection
func CloseDB() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// InitDatabase initializes database with error handling
func InitDatabase() *sql.DB {
	db, err := InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := EnsureSchema(db); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}
	return db
}

// EnsureSchema creates the ledger tables when missing. The unique constraints
// here are load-bearing: posting dedupe, payment fact dedupe, and event dedupe
// all resolve through ON CONFLICT against these indexes.
func EnsureSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			gateway_account_id TEXT UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			total_amount_cents BIGINT NOT NULL DEFAULT 0,
			paid_amount_cents BIGINT NOT NULL DEFAULT 0,
			balance_amount_cents BIGINT NOT NULL DEFAULT 0,
			payment_status TEXT NOT NULL DEFAULT 'UNPAID',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tenant_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			reservation_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			method TEXT NOT NULL,
			gateway_reference_id TEXT NOT NULL,
			charge_reference_id TEXT,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (tenant_id, gateway_reference_id)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			account_code TEXT NOT NULL,
			direction TEXT NOT NULL,
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			dedupe_key TEXT NOT NULL,
			line_no INT NOT NULL,
			reservation_id TEXT,
			reference_id TEXT,
			occurred_at TIMESTAMPTZ NOT NULL,
			posted_at TIMESTAMPTZ NOT NULL,
			UNIQUE (tenant_id, dedupe_key, line_no)
		)`,
		`CREATE TABLE IF NOT EXISTS gl_periods (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			starts_on DATE NOT NULL,
			ends_on DATE NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN'
		)`,
		`CREATE TABLE IF NOT EXISTS gateway_events (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (tenant_id, event_id)
		)`,
		`CREATE TABLE IF NOT EXISTS payout_lines (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			payout_id TEXT NOT NULL,
			balance_transaction_id TEXT NOT NULL,
			line_type TEXT NOT NULL,
			source_reference TEXT,
			gross_cents BIGINT NOT NULL,
			fee_cents BIGINT NOT NULL,
			net_cents BIGINT NOT NULL,
			matched BOOLEAN NOT NULL DEFAULT FALSE,
			drift_cents BIGINT NOT NULL DEFAULT 0,
			reconciled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (tenant_id, balance_transaction_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_tenant_occurred
			ON ledger_entries (tenant_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_tenant_charge_ref
			ON payments (tenant_id, charge_reference_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
