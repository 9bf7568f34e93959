package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// migration is one forward-only schema change.
type migration struct {
	version     int
	description string
	up          string
}

// migrations are applied in order. Never edit a released migration; append a new one.
var migrations = []migration{
	{1, "baseline", `
	CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		member_id TEXT,
		created_at TEXT NOT NULL,
		failed_logins INTEGER NOT NULL DEFAULT 0,
		locked_until TEXT,
		password_change_required INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS guardian (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		id_type TEXT NOT NULL,
		id_number TEXT NOT NULL,
		relationship TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS member (
		id TEXT PRIMARY KEY,
		membership_number TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		id_type TEXT NOT NULL,
		id_number TEXT NOT NULL UNIQUE,
		date_of_birth TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		program TEXT NOT NULL,
		status TEXT NOT NULL,
		guardian_id TEXT,
		account_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (guardian_id) REFERENCES guardian(id)
	);

	CREATE TABLE IF NOT EXISTS registration (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		guardian_id TEXT,
		kind TEXT NOT NULL,
		parq TEXT NOT NULL,
		training TEXT NOT NULL DEFAULT '',
		medical TEXT NOT NULL DEFAULT '',
		readiness TEXT NOT NULL DEFAULT '',
		parq_flagged INTEGER NOT NULL DEFAULT 0,
		submitted_ip TEXT NOT NULL DEFAULT '',
		submitted_at TEXT NOT NULL,
		FOREIGN KEY (member_id) REFERENCES member(id)
	);

	CREATE TABLE IF NOT EXISTS consent (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		type TEXT NOT NULL,
		granted INTEGER NOT NULL,
		granted_at TEXT NOT NULL,
		revoked_at TEXT,
		source TEXT NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL,
		FOREIGN KEY (member_id) REFERENCES member(id)
	);

	CREATE TABLE IF NOT EXISTS document (
		id TEXT PRIMARY KEY,
		member_id TEXT,
		kind TEXT NOT NULL,
		blob_key TEXT NOT NULL,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		uploaded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payment (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		reference TEXT NOT NULL,
		status TEXT NOT NULL,
		link_url TEXT NOT NULL DEFAULT '',
		gateway_ref TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		completed_at TEXT,
		FOREIGN KEY (member_id) REFERENCES member(id)
	);

	CREATE TABLE IF NOT EXISTS event (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT,
		public INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		action_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 5,
		last_attempted_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT ''
	);
	`},
	{2, "indexes", `
	CREATE INDEX IF NOT EXISTS idx_member_status ON member(status);
	CREATE INDEX IF NOT EXISTS idx_consent_member ON consent(member_id);
	CREATE INDEX IF NOT EXISTS idx_payment_member ON payment(member_id);
	CREATE INDEX IF NOT EXISTS idx_event_start ON event(start_date);
	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status);
	`},
	{3, "event fee", `
	ALTER TABLE event ADD COLUMN fee_cents INTEGER NOT NULL DEFAULT 0;
	`},
}

// LatestSchemaVersion is the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion reports the applied schema version, 0 for an unmigrated database.
// PRE: db is a valid database connection
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check schema_version: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB applies pending migrations, each in its own transaction.
// A file database is snapshotted next to dbPath before the first pending migration.
// PRE: db is a valid database connection
// POST: SchemaVersion(db) == LatestSchemaVersion()
func MigrateDB(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current >= LatestSchemaVersion() {
		return nil
	}

	if current > 0 && dbPath != "" && !strings.Contains(dbPath, ":memory:") {
		backup := fmt.Sprintf("%s.v%d.bak", dbPath, current)
		if _, err := db.Exec("VACUUM INTO ?", backup); err != nil {
			return fmt.Errorf("failed to back up database before migration: %w", err)
		}
		slog.Info("db_backup_created", "path", backup, "version", current)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(db, m); err != nil {
			return err
		}
		slog.Info("db_migration_applied", "version", m.version, "description", m.description)
	}
	return nil
}

func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.up); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, ?)",
		m.version, m.description, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}
	return tx.Commit()
}
