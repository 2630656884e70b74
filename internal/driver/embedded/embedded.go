// Package embedded is a graph store kept in SQLite.
//
// It executes the structured statements of package cypher natively
// instead of parsing Cypher: nodes, labels and relationships live in
// their own tables and properties are stored as JSON. Arbitrary Cypher
// (cypher.RawQuery) is not supported.
package embedded

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"graphogm/internal/cypher"
	"graphogm/internal/driver"
	"graphogm/internal/logging"
	"graphogm/internal/model"
)

// MemoryPath opens a private in-memory store
const MemoryPath = ":memory:"

// Driver implements driver.Driver on top of SQLite
type Driver struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	closed atomic.Bool
}

// Open opens or creates the store at path; MemoryPath keeps it in memory
func Open(ctx context.Context, path string, logger *slog.Logger) (*Driver, error) {
	logger = logging.OrDefault(logger).With("driver", "embedded")

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == MemoryPath {
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == MemoryPath {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	d := &Driver{db: db, path: path, logger: logger}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Debug("opened graph store", "path", path)
	return d, nil
}

func (d *Driver) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		properties JSON NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS node_labels (
		node_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		PRIMARY KEY (node_id, label),
		FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS relationships (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		start_id INTEGER NOT NULL,
		end_id INTEGER NOT NULL,
		properties JSON NOT NULL DEFAULT '{}',
		FOREIGN KEY (start_id) REFERENCES nodes(id) ON DELETE CASCADE,
		FOREIGN KEY (end_id) REFERENCES nodes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS constraints (
		label TEXT NOT NULL,
		property TEXT NOT NULL,
		PRIMARY KEY (label, property)
	);

	CREATE INDEX IF NOT EXISTS idx_node_labels_label ON node_labels(label);
	CREATE INDEX IF NOT EXISTS idx_relationships_start ON relationships(start_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_end ON relationships(end_id);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Request runs stmt in its own SQL transaction
func (d *Driver) Request(ctx context.Context, stmt cypher.Statement) (*model.Response, error) {
	if d.closed.Load() {
		return nil, driver.ErrDriverClosed
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	resp, err := execute(ctx, tx, stmt)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return resp, nil
}

// BeginTransaction opens an explicit transaction. In-memory stores hold a
// single connection, so autocommit requests wait until it finishes.
func (d *Driver) BeginTransaction(ctx context.Context, mode driver.AccessMode) (driver.Transaction, error) {
	if d.closed.Load() {
		return nil, driver.ErrDriverClosed
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	id := uuid.NewString()
	d.logger.Debug("transaction started", "tx", id, "mode", mode)
	return &Transaction{tx: tx, id: id, logger: d.logger}, nil
}

// Close closes the database
func (d *Driver) Close(ctx context.Context) error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.db.Close()
}

// Transaction implements driver.Transaction over a SQL transaction
type Transaction struct {
	tx     *sql.Tx
	id     string
	logger *slog.Logger

	mu   sync.Mutex
	done bool
}

// Request runs stmt inside the transaction
func (t *Transaction) Request(ctx context.Context, stmt cypher.Statement) (*model.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, driver.ErrTransactionClosed
	}
	return execute(ctx, t.tx, stmt)
}

// Commit makes the transaction's writes durable
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return driver.ErrTransactionClosed
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	t.logger.Debug("transaction committed", "tx", t.id)
	return nil
}

// Rollback discards the transaction's writes
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return driver.ErrTransactionClosed
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	t.logger.Debug("transaction rolled back", "tx", t.id)
	return nil
}
