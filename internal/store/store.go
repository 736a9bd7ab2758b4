// ABOUTME: SQLite store backing the rowview server: the paged row collection and the request log.
// ABOUTME: Opens the database, tunes the connection pool and applies versioned schema migrations.

package store

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Migration version constants
const (
	MigrationV1 = 1 // Rows table holding the paged collection
	MigrationV2 = 2 // Request logs table and indexes
)

// CurrentSchemaVersion is the target version for the database schema
const CurrentSchemaVersion = MigrationV2

type migration struct {
	version     int
	description string
	schema      string
}

// migrations are applied in order, each in its own transaction.
var migrations = []migration{
	{
		version:     MigrationV1,
		description: "Create rows table",
		// seq fixes each row's absolute position in the collection
		schema: `
		CREATE TABLE IF NOT EXISTS rows (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			country TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT '',
			fields TEXT NOT NULL DEFAULT '{}',
			inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
	},
	{
		version:     MigrationV2,
		description: "Create request_logs table and indexes",
		schema: `
		CREATE TABLE IF NOT EXISTS request_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			grid_name TEXT DEFAULT '',
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			status_code INTEGER,
			duration_ms INTEGER,
			ip_address TEXT,
			user_agent TEXT,
			request_body TEXT,
			response_body TEXT,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_request_logs_timestamp ON request_logs(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_request_logs_path ON request_logs(path);
		CREATE INDEX IF NOT EXISTS idx_request_logs_grid_method_status ON request_logs(grid_name, method, status_code);`,
	},
}

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates it.
// ":memory:" gives a private in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Every connection to :memory: opens its own empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(0)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs all pending migrations
func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := s.getCurrentMigrationVersion()
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}
	log.Printf("Database schema version: %d, target version: %d", current, CurrentSchemaVersion)

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(m); err != nil {
			return fmt.Errorf("migration v%d failed: %w", m.version, err)
		}
		log.Printf("Applied migration v%d: %s", m.version, m.description)
	}
	return nil
}

func (s *Store) apply(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.schema); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
		m.version, m.description); err != nil {
		return err
	}
	return tx.Commit()
}

// getCurrentMigrationVersion retrieves the current schema version
func (s *Store) getCurrentMigrationVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	return version, err
}
