package library

// Index maps sheet identifiers to their library entries. It is built once
// per run and never modified afterwards.
type Index struct {
	byID    map[string]Entry
	entries []Entry
}

// NewIndex builds an index over entries. When an id occurs twice the first
// entry wins.
func NewIndex(entries []Entry) *Index {
	idx := &Index{
		byID:    make(map[string]Entry, len(entries)),
		entries: make([]Entry, 0, len(entries)),
	}
	for _, e := range entries {
		if _, dup := idx.byID[e.ID]; dup {
			continue
		}
		idx.byID[e.ID] = e
		idx.entries = append(idx.entries, e)
	}
	return idx
}

// Lookup returns the entry for id. A miss means the sheet no longer exists
// in the library.
func (x *Index) Lookup(id string) (Entry, bool) {
	e, ok := x.byID[id]
	return e, ok
}

// Len returns the number of indexed sheets
func (x *Index) Len() int {
	return len(x.entries)
}

// Entries returns the indexed entries in scan order
func (x *Index) Entries() []Entry {
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}
