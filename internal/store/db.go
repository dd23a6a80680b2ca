// Package store is the embedded SQLite persistence layer for BitTask.
//
// The database runs in embedded mode through ncruces/go-sqlite3 with WAL
// journaling so readers proceed while a writer holds the lock. Every
// transaction begins IMMEDIATE, which serializes writers inside SQLite and
// makes read-then-write sequences (sequential IDs, reorders, cascades) safe
// without application-level locks.
//
// Layout:
//   - Database file: <data dir>/BitTask.db
//   - Tables: tasks, boards, subtasks, attachments, offline_ops, settings,
//     sync_state, counters, schema_migrations
//   - Schema evolves through ordered, numbered migrations (see migrations.go)
//
// Writes are only possible inside RunInTransaction. After a transaction
// commits, subscribers of the tables it declared are notified; this is what
// drives the live query layer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"
)

// AppName identifies the application's database instance.
const AppName = "BitTask"

// FileName is the database file name inside the data directory.
const FileName = AppName + ".db"

// Table names a durable table that subscribers can observe.
type Table string

const (
	TableTasks       Table = "tasks"
	TableBoards      Table = "boards"
	TableSubtasks    Table = "subtasks"
	TableAttachments Table = "attachments"
	TableOfflineOps  Table = "offline_ops"
	TableSettings    Table = "settings"
	TableSyncState   Table = "sync_state"
)

// AllTables lists every observable table.
var AllTables = []Table{
	TableTasks, TableBoards, TableSubtasks, TableAttachments,
	TableOfflineOps, TableSettings, TableSyncState,
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader holds the read queries shared by DB and Tx.
type reader struct {
	q querier
}

// DB wraps the SQLite connection pool.
type DB struct {
	reader
	conn     *sql.DB
	path     string
	notifier *Notifier
	logger   *zap.Logger
}

// Tx is an open write transaction. It exposes every read of DB plus the
// write operations, all bound to the same transaction.
type Tx struct {
	reader
	tx *sql.Tx
}

// Option configures Open.
type Option func(*DB)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *zap.Logger) Option {
	return func(db *DB) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// Open creates or opens the database at path. The schema is not touched;
// call Migrate before use. The caller must call Close.
//
// Example:
//
//	db, err := store.Open(filepath.Join(dataDir, store.FileName))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
func Open(path string, opts ...Option) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + filepath.ToSlash(path) +
		"?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(wal)" +
		"&_pragma=synchronous(normal)"

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(4)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		reader:   reader{q: conn},
		conn:     conn,
		path:     path,
		notifier: NewNotifier(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(db)
	}

	db.logger.Debug("database opened", zap.String("path", path))
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Notifier returns the change notifier fed by committed transactions.
func (db *DB) Notifier() *Notifier {
	return db.notifier
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close checkpoints the WAL and closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.logger.Warn("failed to checkpoint WAL", zap.Error(err))
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	db.logger.Debug("database closed", zap.String("path", db.path))
	return nil
}

// RunInTransaction runs fn in one IMMEDIATE transaction. If fn returns an
// error the transaction is rolled back and the error returned unchanged.
// On commit, subscribers of tables are notified.
//
// tables must list every table fn writes; it is what live queries key on.
func (db *DB) RunInTransaction(ctx context.Context, tables []Table, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{reader: reader{q: sqlTx}, tx: sqlTx}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.notifier.Notify(tables)
	return nil
}

// NotifyExternal tells every subscriber that the database may have been
// changed by another process.
func (db *DB) NotifyExternal() {
	db.notifier.Notify(AllTables)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
