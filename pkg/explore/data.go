package explore

import (
	"fmt"
	"os"
	"sort"

	"github.com/praetorian-inc/sieve/pkg/store"
	"github.com/praetorian-inc/sieve/pkg/types"
)

// exploreData holds everything the TUI shows, loaded once at startup.
type exploreData struct {
	store    store.Store
	ruleMap  map[string]*types.Rule
	findings []*findingRow
}

// loadData opens a scan database and loads its rules, findings, matches
// and provenance.
func loadData(storePath string) (*exploreData, error) {
	if _, err := os.Stat(storePath); err != nil {
		return nil, fmt.Errorf("database not found: %s", storePath)
	}

	s, err := store.New(store.Config{Path: storePath})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	data, err := buildData(s)
	if err != nil {
		s.Close()
		return nil, err
	}
	return data, nil
}

// buildData denormalizes the contents of s into view rows.
func buildData(s store.Store) (*exploreData, error) {
	rules, err := s.GetRules()
	if err != nil {
		return nil, fmt.Errorf("retrieving rules: %w", err)
	}
	ruleMap := make(map[string]*types.Rule, len(rules))
	for _, r := range rules {
		ruleMap[r.ID] = r
	}

	findings, err := s.GetFindings()
	if err != nil {
		return nil, fmt.Errorf("retrieving findings: %w", err)
	}

	matches, err := s.GetAllMatches()
	if err != nil {
		return nil, fmt.Errorf("retrieving matches: %w", err)
	}
	matchesByFinding := make(map[string][]*types.Match)
	for _, m := range matches {
		matchesByFinding[m.FindingID] = append(matchesByFinding[m.FindingID], m)
	}

	provs := newProvenanceLookup(s)
	rows := make([]*findingRow, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, buildFindingRow(f, matchesByFinding[f.ID], ruleMap, provs))
	}

	return &exploreData{
		store:    s,
		ruleMap:  ruleMap,
		findings: rows,
	}, nil
}

// provenanceLookup caches provenance per blob; many matches share a blob.
type provenanceLookup struct {
	store store.Store
	cache map[types.BlobID][]types.Provenance
}

func newProvenanceLookup(s store.Store) *provenanceLookup {
	return &provenanceLookup{store: s, cache: make(map[types.BlobID][]types.Provenance)}
}

func (l *provenanceLookup) get(id types.BlobID) []types.Provenance {
	if l == nil || l.store == nil {
		return nil
	}
	if provs, ok := l.cache[id]; ok {
		return provs
	}
	provs, err := l.store.GetProvenance(id)
	if err != nil {
		provs = nil
	}
	l.cache[id] = provs
	return provs
}

// buildFindingRow creates a findingRow from a Finding and its matches.
func buildFindingRow(f *types.Finding, matches []*types.Match, ruleMap map[string]*types.Rule, provs *provenanceLookup) *findingRow {
	row := &findingRow{
		FindingID:  f.ID,
		RuleID:     f.RuleID,
		RuleName:   f.RuleID,
		Content:    f.Content,
		MatchCount: len(matches),
	}

	if r, ok := ruleMap[f.RuleID]; ok {
		row.RuleName = r.Name
		row.Severity = r.Severity
		row.Categories = r.Categories
	}

	blobs := make(map[types.BlobID]bool)
	kinds := make(map[string]bool)
	row.Matches = make([]*matchRow, 0, len(matches))
	for _, m := range matches {
		mr := buildMatchRow(m, provs)
		row.Matches = append(row.Matches, mr)
		blobs[m.BlobID] = true
		for _, p := range mr.Provenance {
			kinds[p.Kind()] = true
		}
	}
	row.BlobCount = len(blobs)
	for k := range kinds {
		row.Sources = append(row.Sources, k)
	}
	sort.Strings(row.Sources)

	return row
}

// buildMatchRow creates a matchRow from a Match.
func buildMatchRow(m *types.Match, provs *provenanceLookup) *matchRow {
	return &matchRow{
		StructuralID: m.StructuralID,
		BlobID:       m.BlobID,
		SID:          m.SID,
		Pattern:      m.Pattern,
		NoCase:       m.NoCase,
		Location:     m.Location,
		Snippet:      m.Snippet,
		Provenance:   provs.get(m.BlobID),
	}
}

func (d *exploreData) close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
