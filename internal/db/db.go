package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB with leadflow-specific helpers.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// _txlock=immediate makes write transactions take the write lock at
	// BEGIN, so concurrent version computations serialize instead of
	// failing mid-transaction.
	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every new pool connection to :memory: is a fresh, empty database;
	// the pool must stay on a single connection.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. New tables are added here.
//
// flow_versions is append-only: every saved draft is a new row, and the
// (flow_id, version) primary key is what turns a concurrent next-version
// race into a constraint violation the store can retry.
const schema = `
CREATE TABLE IF NOT EXISTS flows (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    slug TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'draft' CHECK(status IN ('draft','active','paused','archived')),
    settings TEXT NOT NULL DEFAULT '{}',
    style_config TEXT NOT NULL DEFAULT '{}',
    google_ads_config TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- Slug uniqueness holds among live flows only; archiving a flow frees
-- its slug for reuse.
CREATE UNIQUE INDEX IF NOT EXISTS idx_flows_slug_live ON flows(slug) WHERE status != 'archived';
CREATE INDEX IF NOT EXISTS idx_flows_status ON flows(status);

CREATE TABLE IF NOT EXISTS flow_versions (
    flow_id TEXT NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
    version INTEGER NOT NULL,
    slug TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft' CHECK(status IN ('draft','published')),
    payload TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY(flow_id, version)
);

CREATE INDEX IF NOT EXISTS idx_flow_versions_slug ON flow_versions(slug, status);

CREATE TABLE IF NOT EXISTS flow_audit (
    id TEXT PRIMARY KEY,
    flow_id TEXT NOT NULL,
    action TEXT NOT NULL,
    meta TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_flow_audit_flow ON flow_audit(flow_id, created_at);
CREATE INDEX IF NOT EXISTS idx_flow_audit_action ON flow_audit(action);

-- Legacy relational representation, read-only input for the migration
-- adapter. Populated by the old application, never written here.
CREATE TABLE IF NOT EXISTS legacy_flows (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    slug TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'draft',
    settings TEXT NOT NULL DEFAULT '{}',
    style_config TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS flow_steps (
    id TEXT PRIMARY KEY,
    flow_id TEXT NOT NULL REFERENCES legacy_flows(id) ON DELETE CASCADE,
    step_order INTEGER NOT NULL,
    step_type TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    subtitle TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    button_text TEXT NOT NULL DEFAULT '',
    is_required INTEGER NOT NULL DEFAULT 0,
    skip_logic TEXT,
    settings TEXT NOT NULL DEFAULT '{}',
    redirect_url TEXT NOT NULL DEFAULT '',
    redirect_delay INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_flow_steps_flow ON flow_steps(flow_id, step_order);

CREATE TABLE IF NOT EXISTS flow_fields (
    id TEXT PRIMARY KEY,
    step_id TEXT NOT NULL REFERENCES flow_steps(id) ON DELETE CASCADE,
    field_order INTEGER NOT NULL,
    field_type TEXT NOT NULL,
    field_name TEXT NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    placeholder TEXT NOT NULL DEFAULT '',
    help_text TEXT NOT NULL DEFAULT '',
    is_required INTEGER NOT NULL DEFAULT 0,
    validation_rules TEXT NOT NULL DEFAULT '{}',
    options TEXT NOT NULL DEFAULT '[]',
    default_value TEXT,
    conditional_logic TEXT
);

CREATE INDEX IF NOT EXISTS idx_flow_fields_step ON flow_fields(step_id, field_order);
`
