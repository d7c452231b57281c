package nanocol

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/nolandb/nanocol/errors"
	"github.com/nolandb/nanocol/internal/util"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// RangeOp names the operators calculateRange understands
type RangeOp string

const (
	RangeEq      RangeOp = "$eq"
	RangeAeq     RangeOp = "$aeq"
	RangeDteq    RangeOp = "$dteq"
	RangeGt      RangeOp = "$gt"
	RangeGte     RangeOp = "$gte"
	RangeLt      RangeOp = "$lt"
	RangeLte     RangeOp = "$lte"
	RangeBetween RangeOp = "$between"
)

// binaryIndex represents a sorted permutation of Data positions by a single
// field's values. values[i] is a Data position; values is sorted so that
// Data[values[i]][field] <= Data[values[i+1]][field] under compareValues.
type binaryIndex struct {
	field    string
	dirty    bool
	values   []int
	adaptive bool

	// accessor extracts the comparison value for a document; defaults to a
	// plain dotted-path Get, overridden with a registered nestedProperty's
	// resolve when the index's field name names one (spec.md §6
	// "nestedProperties" - virtual accessors indexes can be declared over).
	accessor func(doc *Document) any

	group singleflight.Group
}

func newBinaryIndex(field string, adaptive bool) *binaryIndex {
	return &binaryIndex{field: field, adaptive: adaptive, accessor: func(doc *Document) any { return doc.Get(field) }}
}

func (b *binaryIndex) clone() *binaryIndex {
	cp := make([]int, len(b.values))
	copy(cp, b.values)
	return &binaryIndex{field: b.field, dirty: b.dirty, values: cp, adaptive: b.adaptive, accessor: b.accessor}
}

// compareValues implements the three-way total order: nil/undefined before
// numbers before strings; numbers compare numerically, strings (and any other
// value, through its JSON text) lexicographically. This is
// pinned by the test suite and must not be "improved" to a natural Go
// ordering (e.g. mixing numeric and string comparisons) without re-checking
// every caller.
func compareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNil:
		return 0
	case rankNumber:
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	default:
		as, bs := toStr(a), toStr(b)
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
}

type valueRankT int

const (
	rankNil valueRankT = iota
	rankNumber
	rankString
)

func valueRank(v any) valueRankT {
	if v == nil {
		return rankNil
	}
	switch v.(type) {
	case float64, float32, int, int64, int32:
		return rankNumber
	default:
		return rankString
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	}
	return 0
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return util.JSONString(v)
}

// valueAt extracts the comparison value for a Data position, via the owning
// collection's document accessor.
func (b *binaryIndex) valueAt(data Documents, pos int) any {
	return b.accessor(data[pos])
}

// lowerBound returns the smallest index k in [0,len(values)] such that
// compareValues(data[values[k]], v) >= 0 (the insertion point under adaptive
// ordering, a.k.a. the lower bound).
func (b *binaryIndex) lowerBound(data Documents, v any) int {
	return sort.Search(len(b.values), func(i int) bool {
		return compareValues(b.valueAt(data, b.values[i]), v) >= 0
	})
}

// upperBound returns the smallest index k such that
// compareValues(data[values[k]], v) > 0.
func (b *binaryIndex) upperBound(data Documents, v any) int {
	return sort.Search(len(b.values), func(i int) bool {
		return compareValues(b.valueAt(data, b.values[i]), v) > 0
	})
}

// calculateRange returns the inclusive [lo,hi] slice of the values array whose
// referenced documents satisfy op against target, or [0,-1] for "no matches".
func (b *binaryIndex) calculateRange(data Documents, op RangeOp, target any, upper any) (int, int) {
	n := len(b.values)
	if n == 0 {
		return 0, -1
	}
	first := b.valueAt(data, b.values[0])
	last := b.valueAt(data, b.values[n-1])
	switch op {
	case RangeEq, RangeAeq, RangeDteq:
		if compareValues(target, first) < 0 || compareValues(target, last) > 0 {
			return 0, -1
		}
		lo := b.lowerBound(data, target)
		hi := b.upperBound(data, target) - 1
		if lo > hi {
			return 0, -1
		}
		return lo, hi
	case RangeGt:
		if compareValues(target, last) >= 0 {
			return 0, -1
		}
		lo := b.upperBound(data, target)
		return lo, n - 1
	case RangeGte:
		if compareValues(target, last) > 0 {
			return 0, -1
		}
		lo := b.lowerBound(data, target)
		return lo, n - 1
	case RangeLt:
		if compareValues(target, first) <= 0 {
			return 0, -1
		}
		hi := b.lowerBound(data, target) - 1
		return 0, hi
	case RangeLte:
		if compareValues(target, first) < 0 {
			return 0, -1
		}
		hi := b.upperBound(data, target) - 1
		return 0, hi
	case RangeBetween:
		if compareValues(upper, first) < 0 || compareValues(target, last) > 0 {
			return 0, -1
		}
		lo := b.lowerBound(data, target)
		hi := b.upperBound(data, upper) - 1
		if lo > hi {
			return 0, -1
		}
		return lo, hi
	default:
		return 0, -1
	}
}

// insert adds a new position p under adaptive maintenance, or marks the index
// dirty under lazy maintenance.
func (b *binaryIndex) insert(data Documents, p int) {
	if !b.adaptive {
		b.dirty = true
		return
	}
	v := b.valueAt(data, p)
	k := b.lowerBound(data, v)
	b.values = append(b.values, 0)
	copy(b.values[k+1:], b.values[k:])
	b.values[k] = p
}

// removeSlotLinear finds the slot in values holding position p via a linear
// scan narrowed to the $eq range for p's current value - ties mean binary
// search alone cannot identify the exact slot.
func (b *binaryIndex) removeSlotLinear(data Documents, p int) int {
	v := b.valueAt(data, p)
	lo, hi := b.calculateRange(data, RangeEq, v, nil)
	for i := lo; i <= hi && i >= 0 && i < len(b.values); i++ {
		if b.values[i] == p {
			return i
		}
	}
	for i, pos := range b.values {
		if pos == p {
			return i
		}
	}
	return -1
}

// update repositions the entry for position p now that its value has changed.
func (b *binaryIndex) update(data Documents, p int) {
	if !b.adaptive {
		b.dirty = true
		return
	}
	slot := b.removeSlotLinear(data, p)
	if slot >= 0 {
		b.values = append(b.values[:slot], b.values[slot+1:]...)
	}
	b.insert(data, p)
}

// remove drops the entry for removed position p, then shifts every stored
// position greater than p down by one so the index keeps tracking the same
// logical documents after Data is spliced. This decrement is the only
// operation permitted to shift stored positions.
func (b *binaryIndex) remove(data Documents, p int) {
	if !b.adaptive {
		b.dirty = true
		return
	}
	slot := b.removeSlotLinear(data, p)
	if slot >= 0 {
		b.values = append(b.values[:slot], b.values[slot+1:]...)
	}
	for i, pos := range b.values {
		if pos > p {
			b.values[i] = pos - 1
		}
	}
}

// rebuild reconstructs values from scratch in sorted order and clears dirty.
func (b *binaryIndex) rebuild(data Documents) {
	values := make([]int, len(data))
	for i := range values {
		values[i] = i
	}
	sort.SliceStable(values, func(i, j int) bool {
		return compareValues(b.valueAt(data, values[i]), b.valueAt(data, values[j])) < 0
	})
	b.values = values
	b.dirty = false
}

// CheckIndexOpts configures checkIndex's integrity verification
type CheckIndexOpts struct {
	RandomSampling       bool
	RandomSamplingFactor float64
	Repair               bool
}

// checkIndex verifies that values.length == len(data) and adjacent pairs are
// correctly ordered, optionally only sampling a subset of adjacent pairs. If a
// check fails and Repair is set, the index is rebuilt from scratch. Returns
// whether the index was found valid (before any repair).
func (b *binaryIndex) checkIndex(data Documents, opts CheckIndexOpts) bool {
	// singleflight collapses concurrent checkIndex calls against the same
	// index into one pass.
	key := b.field
	v, _, _ := b.group.Do(key, func() (any, error) {
		return b.checkIndexOnce(data, opts), nil
	})
	return v.(bool)
}

func (b *binaryIndex) checkIndexOnce(data Documents, opts CheckIndexOpts) bool {
	valid := len(b.values) == len(data)
	if valid {
		pairs := adjacentPairs(len(b.values), opts)
		for _, i := range pairs {
			if i+1 >= len(b.values) {
				continue
			}
			if compareValues(b.valueAt(data, b.values[i]), b.valueAt(data, b.values[i+1])) > 0 {
				valid = false
				break
			}
		}
	}
	if !valid && opts.Repair {
		b.rebuild(data)
	}
	return valid
}

// adjacentPairs returns the adjacent-pair indices to inspect: all of them by
// default, or first+last plus a random sample sized by RandomSamplingFactor.
func adjacentPairs(n int, opts CheckIndexOpts) []int {
	if n < 2 {
		return nil
	}
	if !opts.RandomSampling {
		out := make([]int, n-1)
		for i := range out {
			out[i] = i
		}
		return out
	}
	factor := opts.RandomSamplingFactor
	if factor <= 0 {
		factor = 0.1
	}
	sampleSize := int(float64(n-1) * factor)
	seen := map[int]bool{0: true, n - 2: true}
	out := []int{0, n - 2}
	for len(out) < sampleSize+2 && len(seen) < n-1 {
		i := rand.Intn(n - 1)
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

// checkAllIndexes runs checkIndex over every index in indices concurrently,
// returning the first error encountered (rebuild failures are not possible in
// this in-memory implementation, so this mainly exists to parallelize large
// sampling passes across many indexed fields).
func checkAllIndexes(ctx context.Context, data Documents, indices map[string]*binaryIndex, opts CheckIndexOpts) (map[string]bool, error) {
	results := make(map[string]bool, len(indices))
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for field, idx := range indices {
		field, idx := field, idx
		g.Go(func() error {
			ok := idx.checkIndex(data, opts)
			mu.Lock()
			results[field] = ok
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.Internal, "checkAllIndexes")
	}
	return results, nil
}
