package store

import (
	"database/sql"
	"fmt"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	BlobsMerged      int
	RulesMerged      int
	MatchesMerged    int
	FindingsMerged   int
	ProvenanceMerged int
	SourcesProcessed int
}

// mergeTables lists the copied tables and columns in dependency order.
var mergeTables = []struct {
	name    string
	columns string
	params  string
}{
	{"blobs", "id, size", "?, ?"},
	{"rules", "id, sid, name, patterns_json, structural_id", "?, ?, ?, ?, ?"},
	{"matches", `blob_id, rule_id, rule_name, sid, structural_id, finding_id, pattern, nocase,
		offset_start, offset_end, snippet_before, snippet_matching, snippet_after,
		start_line, start_column, end_line, end_column`, "?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?"},
	{"findings", "id, rule_id, content", "?, ?, ?"},
	{"provenance", "blob_id, type, path, payload_json", "?, ?, ?, ?"},
}

// Merge combines multiple scan databases into one.
// Deduplication is handled via INSERT OR IGNORE on unique keys.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	dest, err := NewSQLite(cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer dest.Close()

	stats := &MergeStats{}
	for _, sourcePath := range cfg.SourcePaths {
		sourceStats, err := mergeFrom(dest.db, sourcePath)
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.BlobsMerged += sourceStats.BlobsMerged
		stats.RulesMerged += sourceStats.RulesMerged
		stats.MatchesMerged += sourceStats.MatchesMerged
		stats.FindingsMerged += sourceStats.FindingsMerged
		stats.ProvenanceMerged += sourceStats.ProvenanceMerged
		stats.SourcesProcessed++
	}

	return stats, nil
}

// mergeFrom copies data from a source database to the destination.
func mergeFrom(destDB *sql.DB, sourcePath string) (*MergeStats, error) {
	sourceDB, err := sql.Open(driverName, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source database: %w", err)
	}
	defer sourceDB.Close()

	tx, err := destDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	counts := make(map[string]int, len(mergeTables))
	for _, t := range mergeTables {
		n, err := copyTable(tx, sourceDB, t.name, t.columns, t.params)
		if err != nil {
			return nil, fmt.Errorf("merging %s: %w", t.name, err)
		}
		counts[t.name] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return &MergeStats{
		BlobsMerged:      counts["blobs"],
		RulesMerged:      counts["rules"],
		MatchesMerged:    counts["matches"],
		FindingsMerged:   counts["findings"],
		ProvenanceMerged: counts["provenance"],
	}, nil
}

// copyTable inserts every row of table from src into tx and returns the
// number of rows that were new.
func copyTable(tx *sql.Tx, src *sql.DB, table, columns, params string) (int, error) {
	rows, err := src.Query(fmt.Sprintf("SELECT %s FROM %s", columns, table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	stmt, err := tx.Prepare(fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, columns, params))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		if affected, _ := result.RowsAffected(); affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}
