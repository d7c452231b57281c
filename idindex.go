package nanocol

import (
	"sort"

	"github.com/nolandb/nanocol/errors"
)

// idIndex is the parallel sequence of identifiers aligned to Data position,
// strictly increasing by the append-only-MaxId invariant, enabling O(log n)
// lookup by id via binary search.
type idIndex struct {
	ids []int64
}

func newIDIndex() *idIndex {
	return &idIndex{}
}

func (x *idIndex) len() int {
	return len(x.ids)
}

// append records a newly assigned id at the next position (always len(ids))
func (x *idIndex) append(id int64) {
	x.ids = append(x.ids, id)
}

// removeAt splices out the identifier at position p
func (x *idIndex) removeAt(p int) {
	x.ids = append(x.ids[:p], x.ids[p+1:]...)
}

// find performs a binary search for id and returns its position, or (-1, false)
// if absent. Fails TypeError only at the caller, which validates id's type
// before reaching here - the index itself only knows about int64s.
func (x *idIndex) find(id int64) (int, bool) {
	n := len(x.ids)
	i := sort.Search(n, func(i int) bool { return x.ids[i] >= id })
	if i < n && x.ids[i] == id {
		return i, true
	}
	return -1, false
}

// clone returns an independent copy, used to snapshot the index on
// transaction entry.
func (x *idIndex) clone() *idIndex {
	cp := make([]int64, len(x.ids))
	copy(cp, x.ids)
	return &idIndex{ids: cp}
}

// coerceID validates and coerces a raw id value pulled off a document, failing
// TypeError for anything that isn't a whole number.
func coerceID(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, errors.TypeError("$id must be an integer, got %v", v)
		}
		return int64(n), nil
	default:
		return 0, errors.TypeError("$id must be an integer, got %v (%T)", v, v)
	}
}
