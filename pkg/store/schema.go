package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// CreateSchema creates the database schema if it doesn't exist.
func CreateSchema(db *sql.DB) error {
	if err := createSchemaVersionTable(db); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"blobs", blobsTable},
		{"rules", rulesTable},
		{"matches", matchesTable},
		{"findings", findingsTable},
		{"provenance", provenanceTable},
	}
	for _, t := range tables {
		if _, err := db.Exec(t.ddl); err != nil {
			return fmt.Errorf("creating %s table: %w", t.name, err)
		}
	}

	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_provenance_blob_id ON provenance(blob_id)`)
	if err != nil {
		return fmt.Errorf("creating provenance index: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_matches_blob_id ON matches(blob_id)`)
	if err != nil {
		return fmt.Errorf("creating matches index: %w", err)
	}
	return nil
}

func createSchemaVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	var version int
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return err
	}
	if version != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", version, SchemaVersion)
	}
	return nil
}

const blobsTable = `
	CREATE TABLE IF NOT EXISTS blobs (
		id TEXT PRIMARY KEY NOT NULL,
		size INTEGER NOT NULL
	)`

const rulesTable = `
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY NOT NULL,
		sid INTEGER NOT NULL,
		name TEXT NOT NULL,
		patterns_json TEXT NOT NULL,
		structural_id TEXT NOT NULL
	)`

const matchesTable = `
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blob_id TEXT NOT NULL REFERENCES blobs(id),
		rule_id TEXT NOT NULL,
		rule_name TEXT NOT NULL,
		sid INTEGER NOT NULL,
		structural_id TEXT NOT NULL UNIQUE,
		finding_id TEXT NOT NULL,
		pattern BLOB,
		nocase INTEGER NOT NULL DEFAULT 0,
		offset_start INTEGER NOT NULL,
		offset_end INTEGER NOT NULL,
		snippet_before BLOB,
		snippet_matching BLOB,
		snippet_after BLOB,
		start_line INTEGER,
		start_column INTEGER,
		end_line INTEGER,
		end_column INTEGER
	)`

const findingsTable = `
	CREATE TABLE IF NOT EXISTS findings (
		id TEXT PRIMARY KEY NOT NULL,
		rule_id TEXT NOT NULL,
		content BLOB
	)`

const provenanceTable = `
	CREATE TABLE IF NOT EXISTS provenance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blob_id TEXT NOT NULL REFERENCES blobs(id),
		type TEXT NOT NULL,
		path TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		UNIQUE(blob_id, type, payload_json)
	)`
