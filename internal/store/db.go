package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO required
)

// DBTX is the subset of database/sql operations the stores need. Both
// *sql.DB and *sql.Tx satisfy it, so every store method can run inside or
// outside a transaction as the caller decides.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (or creates) the SQLite database at path, applies the WAL and
// busy-timeout pragmas, and creates the schema. Use ":memory:" for an
// ephemeral database in tests.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	}
	dsn += "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite supports a single writer; a one-connection pool also keeps
	// an in-memory database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return db, nil
}

func createTables(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		user_id    TEXT PRIMARY KEY,
		balance    INTEGER NOT NULL CHECK (balance >= 0),
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inventories (
		id             TEXT PRIMARY KEY,
		owner_id       TEXT NOT NULL,
		item_id        TEXT NOT NULL,
		amount         INTEGER NOT NULL CHECK (amount > 0),
		unique_id      TEXT,
		metadata       TEXT,
		sellable       INTEGER NOT NULL DEFAULT 0,
		purchase_price INTEGER
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_inventories_stack
		ON inventories(owner_id, item_id, sellable, ifnull(purchase_price, -1))
		WHERE unique_id IS NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_inventories_unique
		ON inventories(owner_id, item_id, unique_id)
		WHERE unique_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_inventories_owner ON inventories(owner_id);

	CREATE TABLE IF NOT EXISTS trades (
		trade_id           TEXT PRIMARY KEY,
		from_user_id       TEXT NOT NULL,
		to_user_id         TEXT NOT NULL,
		pair_key           TEXT NOT NULL,
		from_user_items    TEXT NOT NULL,
		to_user_items      TEXT NOT NULL,
		approved_from_user INTEGER NOT NULL DEFAULT 0,
		approved_to_user   INTEGER NOT NULL DEFAULT 0,
		status             TEXT NOT NULL,
		created_at         INTEGER NOT NULL,
		updated_at         INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_pending_pair
		ON trades(pair_key) WHERE status = 'pending';

	CREATE TABLE IF NOT EXISTS market_listings (
		listing_id     TEXT PRIMARY KEY,
		seller_id      TEXT NOT NULL,
		item_id        TEXT NOT NULL,
		price          INTEGER NOT NULL,
		status         TEXT NOT NULL,
		unique_id      TEXT,
		metadata       TEXT,
		purchase_price INTEGER,
		created_at     INTEGER NOT NULL,
		updated_at     INTEGER NOT NULL,
		sold_at        INTEGER,
		buyer_id       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_listings_item_status
		ON market_listings(item_id, status);
	CREATE INDEX IF NOT EXISTS idx_listings_seller ON market_listings(seller_id);

	CREATE TABLE IF NOT EXISTS buy_orders (
		order_id     TEXT PRIMARY KEY,
		buyer_id     TEXT NOT NULL,
		item_id      TEXT NOT NULL,
		price        INTEGER NOT NULL,
		status       TEXT NOT NULL,
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL,
		fulfilled_at INTEGER,
		sale_id      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_orders_item_status
		ON buy_orders(item_id, status);
	CREATE INDEX IF NOT EXISTS idx_orders_buyer ON buy_orders(buyer_id);
	`
	_, err := db.Exec(schema)
	return err
}
