package flatten

import (
	"strings"
)

// NullValue stands in for any leaf that is absent, null or unresolvable, so
// every record of a spec has the same arity.
const NullValue = "null"

// Cell is one leaf of a record keyed by its full path.
type Cell struct {
	Path  string
	Value string
}

// FlatRecord is an ordered tuple of leaf values.
type FlatRecord struct {
	cells []Cell
}

// NewRecord builds a record from cells in order.
func NewRecord(cells ...Cell) FlatRecord {
	return FlatRecord{cells: append([]Cell(nil), cells...)}
}

func (r FlatRecord) Len() int { return len(r.cells) }

func (r FlatRecord) Cells() []Cell {
	return append([]Cell(nil), r.cells...)
}

func (r FlatRecord) Values() []string {
	out := make([]string, len(r.cells))
	for i, c := range r.cells {
		out[i] = c.Value
	}
	return out
}

func (r FlatRecord) Paths() []string {
	out := make([]string, len(r.cells))
	for i, c := range r.cells {
		out[i] = c.Path
	}
	return out
}

// Get returns the value stored under path.
func (r FlatRecord) Get(path string) (string, bool) {
	for _, c := range r.cells {
		if c.Path == path {
			return c.Value, true
		}
	}
	return "", false
}

// Merge concatenates two records with disjoint paths into a new record.
func (r FlatRecord) Merge(o FlatRecord) FlatRecord {
	cells := make([]Cell, 0, len(r.cells)+len(o.cells))
	cells = append(cells, r.cells...)
	cells = append(cells, o.cells...)
	return FlatRecord{cells: cells}
}

// Line joins the values with sep.
func (r FlatRecord) Line(sep rune) string {
	return strings.Join(r.Values(), string(sep))
}

// IsNull reports whether every value is the null placeholder, which is what an
// empty or missing array produces.
func (r FlatRecord) IsNull() bool {
	for _, c := range r.cells {
		if c.Value != NullValue {
			return false
		}
	}
	return true
}
