// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage, and the
// moderation workload (a few writes per reviewer click) is far below what a
// single SQLite writer handles.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so no C
// compiler needed, works everywhere Go works.
//
// SCHEMA:
// Tables are created by goose migrations embedded from migrations/*.sql, so a
// fresh file and an old file both end up on the same schema version.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"

	// BLANK IMPORT:
	// The sqlite package's init() registers a database/sql driver named "sqlite".
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps a sql.DB connection pool and provides repository methods.
// One DB value implements CardRepository, ActivityRepository, UserRepository
// and TxManager, which is what lets a transition update a card and append
// its activity entry in the same transaction.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the SQLite file at dbPath and migrates it.
//
// CONNECTION PRAGMAS:
// Pragmas in the DSN are applied by the driver to EVERY pooled connection,
// not just the first one:
//   - journal_mode(WAL): readers don't block the writer
//   - busy_timeout(5000): a writer waits up to 5s for the lock instead of failing
//   - foreign_keys(1): card_tags rows go away with their card
//
// _txlock=immediate makes every BeginTx take the write lock up front. Without
// it, two transactions that both read first would deadlock on upgrade and one
// would fail with SQLITE_BUSY regardless of busy_timeout.
func New(dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate",
		dbPath,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping verifies the connection actually works.
	// Without this, a bad path or permissions issue would only surface
	// on the first query, which is much harder to debug.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies every pending embedded migration.
func (db *DB) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Timestamps are stored as INTEGER unix nanoseconds. Text timestamps sort
// wrongly once fractional seconds vary in length, and search ordering
// depends on created_at sorting exactly.
func toUnix(t time.Time) int64 { return t.UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }
