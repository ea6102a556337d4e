package dfc

import "time"

// Stats summarises a compiled engine.
type Stats struct {
	Patterns int `json:"patterns"`
	SIDs     int `json:"sids"`

	SinglePatterns int `json:"single_patterns"`
	ShortPatterns  int `json:"short_patterns"`
	FourPatterns   int `json:"four_patterns"`
	EightPatterns  int `json:"eight_patterns"`

	TableEntries   int `json:"table_entries"`
	RefinedEntries int `json:"refined_entries"`

	Filters FilterDensity `json:"filters"`

	CompileTime time.Duration `json:"compile_time"`
}
