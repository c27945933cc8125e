package sqlgraph

import (
	"github.com/syssam/formulite/dialect/sql"
)

// Level is one table of an inheritance hierarchy.
type Level struct {
	Table     string
	Columns   []string
	Surrogate string
	// Link is the column referencing the parent's surrogate key.
	// It is empty for the first level.
	Link string
	// Parent is the index of the parent level, -1 for the first level.
	Parent int
}

// Hierarchy lists the tables of an inheritance hierarchy, parents before
// children. The first Inner levels form a chain every row must have
// (INNER JOIN); the remaining levels are optional descendants (LEFT JOIN).
type Hierarchy struct {
	Levels []Level
	Inner  int
}

// Selector returns the SELECT statement joining all levels. The column list
// is, per level in order, its attribute columns followed by its surrogate key.
func (h *Hierarchy) Selector() *sql.Selector {
	var columns []string
	selector := sql.Select().From(h.Levels[0].Table)
	for i, l := range h.Levels {
		for _, c := range l.Columns {
			columns = append(columns, l.Table+"."+c)
		}
		columns = append(columns, l.Table+"."+l.Surrogate)
		if i == 0 {
			continue
		}
		if i < h.Inner {
			selector.Join(l.Table)
		} else {
			selector.LeftJoin(l.Table)
		}
		p := h.Levels[l.Parent]
		selector.On(l.Table+"."+l.Link, p.Table+"."+p.Surrogate)
	}
	return selector.Select(columns...)
}

// Split cuts a row produced by Selector into per-level attribute values and
// surrogate keys. A nil key means the row has no entry at that level.
func (h *Hierarchy) Split(row []any) (values [][]any, keys []any) {
	values = make([][]any, len(h.Levels))
	keys = make([]any, len(h.Levels))
	off := 0
	for i, l := range h.Levels {
		n := len(l.Columns)
		if off+n >= len(row) {
			break
		}
		values[i] = row[off : off+n]
		keys[i] = row[off+n]
		off += n + 1
	}
	return values, keys
}

// Resolve returns the most specific level present in a row: the deepest
// level with a non-nil key whose ancestors are all present. Between levels
// of equal depth the earlier one wins.
func (h *Hierarchy) Resolve(keys []any) int {
	best, bestDepth := 0, 0
	for i := range h.Levels {
		depth, ok := h.present(i, keys)
		if ok && depth > bestDepth {
			best, bestDepth = i, depth
		}
	}
	return best
}

func (h *Hierarchy) present(i int, keys []any) (int, bool) {
	depth := 0
	for ; i >= 0; i = h.Levels[i].Parent {
		if i >= len(keys) || keys[i] == nil {
			return 0, false
		}
		depth++
	}
	return depth, true
}

// Path returns the level indexes from the first level down to level i.
func (h *Hierarchy) Path(i int) []int {
	var path []int
	for ; i >= 0; i = h.Levels[i].Parent {
		path = append([]int{i}, path...)
	}
	return path
}
