package database

import (
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB is the server's SQLite store
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// sqliteMigrations are applied in order; the index+1 is the version
// recorded in schema_migrations. Append only.
var sqliteMigrations = []string{
	`CREATE TABLE session_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		event_data TEXT NOT NULL,
		ingested_at INTEGER NOT NULL
	)`,
	`CREATE INDEX idx_session_events_session ON session_events(session_id)`,
	`CREATE INDEX idx_session_events_ingested ON session_events(ingested_at)`,
}

// New opens the SQLite database at storagePath and brings the schema up
// to date. storagePath may be a plain file path or a "file:" URI.
func New(storagePath string, logger *zap.Logger) (*DB, error) {
	sep := "?"
	if strings.Contains(storagePath, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite", storagePath+sep+"_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// one writer at a time; sqlite serialises writes anyway
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to reach sqlite store: %w", err)
	}

	db := &DB{DB: conn, logger: logger}
	applied, err := db.migrate()
	if err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("SQLite store ready",
		zap.String("path", storagePath),
		zap.Int("migrations_applied", applied),
		zap.Int("schema_version", len(sqliteMigrations)),
	)
	return db, nil
}

// SchemaVersion returns the highest applied migration version
func (db *DB) SchemaVersion() (int, error) {
	var version sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}

// migrate applies pending migrations, each in its own transaction, and
// returns how many ran.
func (db *DB) migrate() (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := db.SchemaVersion()
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := current; i < len(sqliteMigrations); i++ {
		version := i + 1
		tx, err := db.Begin()
		if err != nil {
			return applied, fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.Exec(sqliteMigrations[i]); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("migration %d failed: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("migration %d: failed to record version: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("migration %d: %w", version, err)
		}
		applied++
	}
	return applied, nil
}

func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("failed to close sqlite store: %w", err)
	}
	db.logger.Info("SQLite store closed")
	return nil
}
