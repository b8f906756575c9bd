package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Init opens the database at dbPath, checks the connection and applies the
// schema. The caller owns the returned handle.
func Init(ctx context.Context, dbPath string) (*sql.DB, error) {
	dsn := formatDBPath(dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Error().Err(err).Msg("failed to open database")
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("failed to ping database")
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug().Msg("database connection successful")

	if err := migrate(ctx, db); err != nil {
		log.Error().Err(err).Msg("failed to run migrations")
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Msg("migrations completed successfully")
	return db, nil
}

func formatDBPath(path string) string {
	if path == "" {
		path = "affiliated.db"
	}
	path = strings.TrimPrefix(path, "file:")

	// See: https://pkg.go.dev/modernc.org/sqlite#pkg-overview
	params := url.Values{}
	params.Set("mode", "rwc")
	params.Set("_time_format", "sqlite")
	params.Set("_txlock", "immediate")
	params.Set("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "busy_timeout(5000)")

	return "file:" + path + "?" + params.Encode()
}

func migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS affiliate_partners (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		platform TEXT NOT NULL,
		api_key TEXT,
		api_secret TEXT,
		username TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS affiliate_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		partner_id INTEGER NOT NULL,
		brand_name TEXT NOT NULL,
		product_name TEXT,
		affiliate_url TEXT NOT NULL,
		original_url TEXT,
		commission_rate REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY(partner_id) REFERENCES affiliate_partners(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS click_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link_id INTEGER NOT NULL,
		ip_address VARCHAR(45),
		user_agent TEXT,
		referrer TEXT,
		clicked_at TEXT NOT NULL,
		FOREIGN KEY(link_id) REFERENCES affiliate_links(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link_id INTEGER NOT NULL,
		order_id TEXT,
		amount_collected REAL NOT NULL DEFAULT 0,
		amount_paid REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		status TEXT NOT NULL DEFAULT 'pending',
		transaction_date TEXT NOT NULL,
		payout_date TEXT,
		notes TEXT,
		FOREIGN KEY(link_id) REFERENCES affiliate_links(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_links_partner_id ON affiliate_links(partner_id);
	CREATE INDEX IF NOT EXISTS idx_links_status ON affiliate_links(status);
	CREATE INDEX IF NOT EXISTS idx_clicks_link_id ON click_events(link_id);
	CREATE INDEX IF NOT EXISTS idx_clicks_clicked_at ON click_events(clicked_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_link_id ON transactions(link_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(transaction_date);
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}
