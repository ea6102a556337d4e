package types

// Snippet contains context around a match.
type Snippet struct {
	Before   []byte // bytes before match
	Matching []byte // the matched content
	After    []byte // bytes after match
}

// Len returns the total snippet size.
func (s Snippet) Len() int {
	return len(s.Before) + len(s.Matching) + len(s.After)
}
