package store

import (
	"slices"
	"sort"
	"sync"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu         sync.RWMutex
	blobs      map[types.BlobID]int64
	rules      map[string]*types.Rule
	matches    []*types.Match
	matchIDs   map[string]bool // structural IDs already stored
	findings   map[string]*types.Finding
	provenance map[types.BlobID][]types.Provenance
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		blobs:      make(map[types.BlobID]int64),
		rules:      make(map[string]*types.Rule),
		matchIDs:   make(map[string]bool),
		findings:   make(map[string]*types.Finding),
		provenance: make(map[types.BlobID][]types.Provenance),
	}
}

// AddBlob stores a blob record.
func (m *MemoryStore) AddBlob(id types.BlobID, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blobs[id]; !exists {
		m.blobs[id] = size
	}
	return nil
}

// AddRule stores a detection rule.
func (m *MemoryStore) AddRule(r *types.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules[r.ID] = r
	return nil
}

// AddMatch stores a match record.
func (m *MemoryStore) AddMatch(match *types.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.matchIDs[match.StructuralID] {
		return nil
	}
	m.matchIDs[match.StructuralID] = true
	m.matches = append(m.matches, match)
	return nil
}

// AddFinding stores a finding (deduplicated).
func (m *MemoryStore) AddFinding(f *types.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.findings[f.ID]; !exists {
		m.findings[f.ID] = f
	}
	return nil
}

// AddProvenance associates provenance with a blob.
func (m *MemoryStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	payload, err := encodeProvenance(prov)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.provenance[blobID] {
		if existing, _ := encodeProvenance(p); p.Kind() == prov.Kind() && existing == payload {
			return nil
		}
	}
	m.provenance[blobID] = append(m.provenance[blobID], prov)
	return nil
}

// GetMatches retrieves matches for a blob ordered by offset.
func (m *MemoryStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Match{}
	for _, match := range m.matches {
		if match.BlobID == blobID {
			result = append(result, match)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Location.Offset.Start < result[j].Location.Offset.Start
	})
	return result, nil
}

// GetAllMatches retrieves all matches in insertion order.
func (m *MemoryStore) GetAllMatches() ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.matches), nil
}

// GetFindings retrieves all findings ordered by rule and ID.
func (m *MemoryStore) GetFindings() ([]*types.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Finding, 0, len(m.findings))
	for _, finding := range m.findings {
		result = append(result, finding)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RuleID != result[j].RuleID {
			return result[i].RuleID < result[j].RuleID
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetProvenance retrieves every provenance record of a blob.
func (m *MemoryStore) GetProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provs := m.provenance[blobID]
	if provs == nil {
		return []types.Provenance{}, nil
	}
	return slices.Clone(provs), nil
}

// GetRules retrieves stored rules ordered by sid.
func (m *MemoryStore) GetRules() ([]*types.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := make([]*types.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].SID != rules[j].SID {
			return rules[i].SID < rules[j].SID
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

// FindingExists checks if a finding with this ID exists.
func (m *MemoryStore) FindingExists(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.findings[id]
	return exists, nil
}

// BlobExists checks if a blob has already been scanned.
func (m *MemoryStore) BlobExists(id types.BlobID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.blobs[id]
	return exists, nil
}

// Stats returns record counts.
func (m *MemoryStore) Stats() (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{
		Blobs:    len(m.blobs),
		Rules:    len(m.rules),
		Matches:  len(m.matches),
		Findings: len(m.findings),
	}
	for _, provs := range m.provenance {
		st.Provenance += len(provs)
	}
	return st, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
