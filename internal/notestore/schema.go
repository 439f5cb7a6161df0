// Package notestore provides SQLite-backed note persistence with a push-style
// collection feed.
package notestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT    NOT NULL DEFAULT '',
	description TEXT    NOT NULL DEFAULT '',
	timestamp   INTEGER NOT NULL DEFAULT 0,
	color       INTEGER NOT NULL DEFAULT 0,
	image       BLOB
);

CREATE INDEX IF NOT EXISTS idx_notes_timestamp ON notes(timestamp);
`

// Change kinds passed to ChangeFunc.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// ChangeFunc is called after every committed write.
type ChangeFunc func(kind string, id int64)

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for non-fatal feed errors.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		db.logger = l
	}
}

// WithChangeFunc registers a callback invoked after each committed write.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(db *DB) {
		db.onChange = fn
	}
}

// DB is the SQLite note store.
//
// Writes are serialized by writeMu so that feed emissions follow the order in
// which writes were committed. Reads go straight to the connection pool.
type DB struct {
	conn     *sqlx.DB
	feed     *feed
	logger   *slog.Logger
	onChange ChangeFunc

	writeMu sync.Mutex
}

// Open opens (or creates) the SQLite database at dsn and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sqlx.Open("sqlite3", dsn+sep+"_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("notestore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("notestore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("notestore: apply schema: %w", err)
	}

	db := &DB{
		conn:   conn,
		feed:   newFeed(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close stops every subscription and closes the database.
func (db *DB) Close() error {
	db.feed.close()
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
