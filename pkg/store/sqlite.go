package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/sieve/pkg/types"
	_ "modernc.org/sqlite"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AddBlob stores a blob record.
func (s *SQLiteStore) AddBlob(id types.BlobID, size int64) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO blobs (id, size) VALUES (?, ?)", id.Hex(), size)
	if err != nil {
		return fmt.Errorf("inserting blob: %w", err)
	}
	return nil
}

// AddRule stores a detection rule.
func (s *SQLiteStore) AddRule(r *types.Rule) error {
	patterns, err := json.Marshal(r.Patterns)
	if err != nil {
		return fmt.Errorf("marshaling patterns: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO rules (id, sid, name, patterns_json, structural_id)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.SID, r.Name, string(patterns), r.StructuralID)
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

// AddMatch stores a match record.
func (s *SQLiteStore) AddMatch(m *types.Match) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO matches (
			blob_id, rule_id, rule_name, sid, structural_id, finding_id, pattern, nocase,
			offset_start, offset_end, snippet_before, snippet_matching, snippet_after,
			start_line, start_column, end_line, end_column)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.BlobID.Hex(),
		m.RuleID,
		m.RuleName,
		m.SID,
		m.StructuralID,
		m.FindingID,
		m.Pattern,
		m.NoCase,
		m.Location.Offset.Start,
		m.Location.Offset.End,
		m.Snippet.Before,
		m.Snippet.Matching,
		m.Snippet.After,
		m.Location.Source.Start.Line,
		m.Location.Source.Start.Column,
		m.Location.Source.End.Line,
		m.Location.Source.End.Column,
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return nil
}

// AddFinding stores a finding (deduplicated).
func (s *SQLiteStore) AddFinding(f *types.Finding) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO findings (id, rule_id, content)
		VALUES (?, ?, ?)
	`, f.ID, f.RuleID, f.Content)
	if err != nil {
		return fmt.Errorf("inserting finding: %w", err)
	}
	return nil
}

// AddProvenance associates provenance with a blob.
func (s *SQLiteStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	payload, err := encodeProvenance(prov)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO provenance (blob_id, type, path, payload_json)
		VALUES (?, ?, ?, ?)
	`, blobID.Hex(), prov.Kind(), prov.Path(), payload)
	if err != nil {
		return fmt.Errorf("inserting provenance: %w", err)
	}
	return nil
}

const selectMatches = `
	SELECT blob_id, rule_id, rule_name, sid, structural_id, finding_id, pattern, nocase,
		offset_start, offset_end, snippet_before, snippet_matching, snippet_after,
		start_line, start_column, end_line, end_column
	FROM matches`

// GetMatches retrieves matches for a blob.
func (s *SQLiteStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	return s.queryMatches(selectMatches+" WHERE blob_id = ? ORDER BY offset_start, id", blobID.Hex())
}

// GetAllMatches retrieves all matches (for JSON export).
func (s *SQLiteStore) GetAllMatches() ([]*types.Match, error) {
	return s.queryMatches(selectMatches + " ORDER BY id")
}

func (s *SQLiteStore) queryMatches(query string, args ...any) ([]*types.Match, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	matches := []*types.Match{}
	for rows.Next() {
		var m types.Match
		err := rows.Scan(
			&m.BlobID,
			&m.RuleID,
			&m.RuleName,
			&m.SID,
			&m.StructuralID,
			&m.FindingID,
			&m.Pattern,
			&m.NoCase,
			&m.Location.Offset.Start,
			&m.Location.Offset.End,
			&m.Snippet.Before,
			&m.Snippet.Matching,
			&m.Snippet.After,
			&m.Location.Source.Start.Line,
			&m.Location.Source.Start.Column,
			&m.Location.Source.End.Line,
			&m.Location.Source.End.Column,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

// GetFindings retrieves all findings (for reporting).
func (s *SQLiteStore) GetFindings() ([]*types.Finding, error) {
	rows, err := s.db.Query(`SELECT id, rule_id, content FROM findings ORDER BY rule_id, id`)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var findings []*types.Finding
	for rows.Next() {
		var f types.Finding
		if err := rows.Scan(&f.ID, &f.RuleID, &f.Content); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		findings = append(findings, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating findings: %w", err)
	}
	return findings, nil
}

// GetProvenance retrieves every provenance record of a blob.
func (s *SQLiteStore) GetProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	rows, err := s.db.Query(`SELECT type, payload_json FROM provenance WHERE blob_id = ? ORDER BY id`, blobID.Hex())
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	defer rows.Close()

	provs := []types.Provenance{}
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("scanning provenance: %w", err)
		}
		prov, err := decodeProvenance(kind, payload)
		if err != nil {
			return nil, err
		}
		provs = append(provs, prov)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provenance: %w", err)
	}
	return provs, nil
}

// GetRules retrieves stored rules ordered by sid.
func (s *SQLiteStore) GetRules() ([]*types.Rule, error) {
	rows, err := s.db.Query(`
		SELECT id, sid, name, patterns_json, structural_id
		FROM rules ORDER BY sid, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []*types.Rule
	for rows.Next() {
		r := &types.Rule{}
		var patterns string
		if err := rows.Scan(&r.ID, &r.SID, &r.Name, &patterns, &r.StructuralID); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		if err := json.Unmarshal([]byte(patterns), &r.Patterns); err != nil {
			return nil, fmt.Errorf("decoding patterns of %s: %w", r.ID, err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// FindingExists checks if a finding with this ID exists.
func (s *SQLiteStore) FindingExists(id string) (bool, error) {
	return s.exists("SELECT COUNT(*) FROM findings WHERE id = ?", id)
}

// BlobExists checks if a blob has already been scanned.
func (s *SQLiteStore) BlobExists(id types.BlobID) (bool, error) {
	return s.exists("SELECT COUNT(*) FROM blobs WHERE id = ?", id.Hex())
}

func (s *SQLiteStore) exists(query string, arg any) (bool, error) {
	var count int
	if err := s.db.QueryRow(query, arg).Scan(&count); err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}
	return count > 0, nil
}

// Stats returns record counts.
func (s *SQLiteStore) Stats() (Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"blobs", &st.Blobs},
		{"rules", &st.Rules},
		{"matches", &st.Matches},
		{"findings", &st.Findings},
		{"provenance", &st.Provenance},
	}
	for _, c := range counts {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return st, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
