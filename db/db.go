package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// DB holds the database connection
var DB *sql.DB

// InitDB opens the connection pool and creates the tables this service owns
func InitDB(ctx context.Context, connStr string) error {
	conn, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(ctx, conn); err != nil {
		conn.Close()
		return err
	}

	DB = conn
	log.Info().Msg("✓ Database connection established successfully")
	return nil
}

// Migrate applies the schema idempotently
func Migrate(ctx context.Context, conn *sql.DB) error {
	for i, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS line_item_customizations (
		id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		print_size TEXT NOT NULL,
		unit_price BIGINT NOT NULL DEFAULT 0,
		customization JSONB NOT NULL,
		captures JSONB NOT NULL DEFAULT '{}'::jsonb,
		capture_source TEXT NOT NULL DEFAULT 'client',
		needs_regeneration BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_line_item_customizations_order ON line_item_customizations (order_id)`,
	`CREATE TABLE IF NOT EXISTS generated_files (
		order_id TEXT NOT NULL,
		side TEXT NOT NULL,
		mockup_url TEXT NOT NULL DEFAULT '',
		hd_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (order_id, side)
	)`,
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
