package explore

import (
	"sort"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// facetID identifies a facet category.
type facetID int

const (
	facetRuleName facetID = iota
	facetCategory
	facetSeverity
	facetSource
)

type facetDef struct {
	ID    facetID
	Label string
}

var facetDefs = []facetDef{
	{facetRuleName, "Rule Name"},
	{facetCategory, "Category"},
	{facetSeverity, "Severity"},
	{facetSource, "Source"},
}

// noValue stands in for an empty severity.
const noValue = "-"

// facetValue is a single selectable value within a facet.
type facetValue struct {
	FacetID  facetID
	Value    string
	Count    int
	Selected bool
}

// facetState holds the complete filter state.
type facetState struct {
	Values map[facetID][]*facetValue
}

func newFacetState() *facetState {
	return &facetState{Values: make(map[facetID][]*facetValue)}
}

// valuesOf returns the values a finding carries for a facet.
func valuesOf(id facetID, f *findingRow) []string {
	switch id {
	case facetRuleName:
		return []string{f.RuleName}
	case facetCategory:
		return f.Categories
	case facetSeverity:
		if f.Severity == "" {
			return []string{noValue}
		}
		return []string{f.Severity}
	case facetSource:
		return f.Sources
	}
	return nil
}

// buildFacets collects every facet value present in findings.
func buildFacets(findings []*findingRow) *facetState {
	fs := newFacetState()
	for _, def := range facetDefs {
		counts := make(map[string]int)
		for _, f := range findings {
			for _, v := range valuesOf(def.ID, f) {
				counts[v]++
			}
		}
		fs.Values[def.ID] = mapToFacetValues(def.ID, counts)
	}
	return fs
}

func mapToFacetValues(id facetID, counts map[string]int) []*facetValue {
	values := make([]*facetValue, 0, len(counts))
	for v, c := range counts {
		values = append(values, &facetValue{FacetID: id, Value: v, Count: c})
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].Value < values[j].Value
	})
	return values
}

func (fs *facetState) selectedValues(id facetID) map[string]bool {
	selected := make(map[string]bool)
	for _, v := range fs.Values[id] {
		if v.Selected {
			selected[v.Value] = true
		}
	}
	return selected
}

func (fs *facetState) hasActiveFilters() bool {
	for _, values := range fs.Values {
		for _, v := range values {
			if v.Selected {
				return true
			}
		}
	}
	return false
}

func (fs *facetState) resetAll() {
	for _, values := range fs.Values {
		for _, v := range values {
			v.Selected = false
		}
	}
}

// matchesFinding reports whether f passes all active filters.
// Within a facet: OR. Across facets: AND.
func (fs *facetState) matchesFinding(f *findingRow) bool {
	for _, def := range facetDefs {
		selected := fs.selectedValues(def.ID)
		if len(selected) == 0 {
			continue
		}
		found := false
		for _, v := range valuesOf(def.ID, f) {
			if selected[v] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// updateCounts recounts facet values over the findings passing the
// current filters.
func (fs *facetState) updateCounts(findings []*findingRow) {
	index := make(map[facetID]map[string]*facetValue, len(fs.Values))
	for id, values := range fs.Values {
		index[id] = make(map[string]*facetValue, len(values))
		for _, v := range values {
			v.Count = 0
			index[id][v.Value] = v
		}
	}

	for _, f := range findings {
		if !fs.matchesFinding(f) {
			continue
		}
		for _, def := range facetDefs {
			for _, v := range valuesOf(def.ID, f) {
				if fv, ok := index[def.ID][v]; ok {
					fv.Count++
				}
			}
		}
	}
}

// findingRow is the denormalized view model for a finding.
type findingRow struct {
	FindingID  string
	RuleID     string
	RuleName   string
	Severity   string
	Categories []string
	Content    []byte
	MatchCount int
	BlobCount  int
	Sources    []string // provenance kinds, sorted
	Matches    []*matchRow
}

// matchRow is the denormalized view model for a match.
type matchRow struct {
	StructuralID string
	BlobID       types.BlobID
	SID          uint32
	Pattern      []byte
	NoCase       bool
	Location     types.Location
	Snippet      types.Snippet
	Provenance   []types.Provenance
}
