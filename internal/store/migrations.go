package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// migration is one numbered schema step. Versions start at 1 and are
// contiguous; each is applied at most once per database, inside its own
// transaction, and recorded in schema_migrations.
type migration struct {
	version int
	name    string
	sql     string
}

const nowMillis = `CAST(strftime('%s', 'now') AS INTEGER) * 1000`

var migrations = []migration{
	{
		version: 1,
		name:    "initial schema",
		sql: `
CREATE TABLE IF NOT EXISTS tasks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL,
	description TEXT,
	tags        TEXT NOT NULL DEFAULT '[]', -- JSON array, order preserved
	priority    TEXT NOT NULL DEFAULT 'medium',
	completed   INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL, -- unix ms
	updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id    INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	filename   TEXT NOT NULL,
	mime_type  TEXT NOT NULL,
	size       INTEGER NOT NULL,
	data       BLOB,
	url        TEXT,
	thumbnail  BLOB,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS offline_ops (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	op_id       TEXT NOT NULL,
	op_type     TEXT NOT NULL,
	entity      TEXT NOT NULL,
	entity_id   INTEGER NOT NULL,
	payload     TEXT,
	timestamp   INTEGER NOT NULL,
	synced      INTEGER NOT NULL DEFAULT 0,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT
);

CREATE TABLE IF NOT EXISTS settings (
	id                  INTEGER PRIMARY KEY CHECK (id = 1),
	theme               TEXT NOT NULL DEFAULT 'system',
	mode                TEXT NOT NULL DEFAULT 'kanban',
	max_attachment_size INTEGER NOT NULL DEFAULT 10485760,
	image_compression   INTEGER NOT NULL DEFAULT 1,
	thumbnails          INTEGER NOT NULL DEFAULT 1,
	link_previews       INTEGER NOT NULL DEFAULT 1,
	updated_at          INTEGER NOT NULL
);

INSERT OR IGNORE INTO settings (id, updated_at) VALUES (1, ` + nowMillis + `);

CREATE INDEX IF NOT EXISTS idx_attachments_task ON attachments(task_id);
`,
	},
	{
		version: 2,
		name:    "boards",
		sql: `
CREATE TABLE IF NOT EXISTS boards (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	"order"    INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

INSERT INTO boards (name, "order", created_at, updated_at)
SELECT 'Inbox', 0, ` + nowMillis + `, ` + nowMillis + `
WHERE NOT EXISTS (SELECT 1 FROM boards);

ALTER TABLE tasks ADD COLUMN board_id INTEGER NOT NULL DEFAULT 0;

-- Pre-board tasks land on the default board.
UPDATE tasks SET board_id = (SELECT MIN(id) FROM boards) WHERE board_id = 0;

CREATE INDEX IF NOT EXISTS idx_tasks_board ON tasks(board_id);
CREATE INDEX IF NOT EXISTS idx_boards_order ON boards("order", id);
`,
	},
	{
		version: 3,
		name:    "subtasks",
		sql: `
CREATE TABLE IF NOT EXISTS subtasks (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id    INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	completed  INTEGER NOT NULL DEFAULT 0,
	"order"    INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_subtasks_task_order ON subtasks(task_id, "order");
`,
	},
	{
		version: 4,
		name:    "sequential task ids",
		sql: `
ALTER TABLE tasks ADD COLUMN sequential_id INTEGER NOT NULL DEFAULT 0;

-- Existing tasks are numbered in creation order.
UPDATE tasks SET sequential_id = (
	SELECT rn FROM (
		SELECT id, ROW_NUMBER() OVER (ORDER BY created_at, id) AS rn FROM tasks
	) numbered
	WHERE numbered.id = tasks.id
);

-- High-water marks survive deletion of the rows that reached them.
CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);

INSERT OR IGNORE INTO counters (name, value)
SELECT 'task_sequential_id', COALESCE(MAX(sequential_id), 0) FROM tasks;

CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_sequential ON tasks(sequential_id);
`,
	},
	{
		version: 5,
		name:    "offline queue indexes and sync state",
		sql: `
CREATE UNIQUE INDEX IF NOT EXISTS idx_offline_ops_op_id ON offline_ops(op_id);
CREATE INDEX IF NOT EXISTS idx_offline_ops_pending ON offline_ops(synced, timestamp, id);
CREATE INDEX IF NOT EXISTS idx_offline_ops_entity ON offline_ops(entity, entity_id);

CREATE TABLE IF NOT EXISTS sync_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`,
	},
}

// LatestVersion is the schema version Migrate brings a database to.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate applies every pending migration in order. It is safe to call on
// every start and from several processes at once.
func (db *DB) Migrate(ctx context.Context) error {
	return db.migrateTo(ctx, LatestVersion())
}

func (db *DB) migrateTo(ctx context.Context, target int) error {
	const bootstrap = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`
	if _, err := db.conn.ExecContext(ctx, bootstrap); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		if m.version > target {
			break
		}

		applied := false
		err := db.RunInTransaction(ctx, AllTables, func(tx *Tx) error {
			var n int
			if err := tx.tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version,
			).Scan(&n); err != nil {
				return fmt.Errorf("failed to read schema_migrations: %w", err)
			}
			if n > 0 {
				return nil
			}

			if _, err := tx.tx.ExecContext(ctx, m.sql); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
			}
			if _, err := tx.tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, toMillis(time.Now()),
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.version, err)
			}
			applied = true
			return nil
		})
		if err != nil {
			return err
		}
		if applied {
			db.logger.Info("applied migration",
				zap.Int("version", m.version), zap.String("name", m.name))
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 for a fresh file.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var exists int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var v int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}
