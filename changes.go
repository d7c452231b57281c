package nanocol

import (
	"github.com/nqd/flat"
	"github.com/samber/lo"
	"github.com/segmentio/ksuid"
)

// ChangeOp names the mutation kind recorded in a Change entry
type ChangeOp string

const (
	ChangeInsert ChangeOp = "I"
	ChangeUpdate ChangeOp = "U"
	ChangeRemove ChangeOp = "R"
)

// Change is a single entry in the collection's change log (spec.md §4.8).
// ID is a ksuid so entries sort chronologically and stay stable under
// concurrent flushes.
type Change struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Op         ChangeOp       `json:"op"`
	Obj        map[string]any `json:"obj"`
}

func newChange(collection string, op ChangeOp, obj map[string]any) Change {
	return Change{ID: ksuid.New().String(), Collection: collection, Op: op, Obj: obj}
}

// reservedChangeKeys are always included in full, never diffed, per spec.md
// §4.8 ("or the key is reserved - $id, metadata").
var reservedChangeKeys = map[string]bool{
	idKey:   true,
	metaKey: true,
}

// recordInsert appends an I change with a full deep copy of the inserted document
func (c *Collection) recordInsert(doc *Document) {
	if !c.opts.changesAPI {
		return
	}
	c.changes = append(c.changes, newChange(c.name, ChangeInsert, doc.Value()))
}

// recordRemove appends an R change with the removed document's full value
func (c *Collection) recordRemove(doc *Document) {
	if !c.opts.changesAPI {
		return
	}
	c.changes = append(c.changes, newChange(c.name, ChangeRemove, doc.Value()))
}

// recordUpdate appends a U change: the full new snapshot, or - when delta
// tracking is enabled - the minimal recursive delta between before and after.
func (c *Collection) recordUpdate(before, after *Document) {
	if !c.opts.changesAPI {
		return
	}
	if !c.opts.deltaChangesAPI {
		c.changes = append(c.changes, newChange(c.name, ChangeUpdate, after.Value()))
		return
	}
	delta := computeDelta(before.Value(), after.Value(), c.uniqueFieldSet())
	c.changes = append(c.changes, newChange(c.name, ChangeUpdate, delta))
}

// computeDelta walks after's property set, recursing into nested structured
// values. At each leaf, the new value is included in full when: before had no
// such key, the key names a unique-indexed field, or the key is reserved
// ($id, $meta). Otherwise only a non-empty recursive delta is included.
func computeDelta(before, after map[string]any, uniqueFields map[string]bool) map[string]any {
	delta := map[string]any{}
	for k, newVal := range after {
		oldVal, existed := before[k]
		switch {
		case !existed || uniqueFields[k] || reservedChangeKeys[k]:
			delta[k] = newVal
		default:
			newMap, newIsMap := newVal.(map[string]any)
			oldMap, oldIsMap := oldVal.(map[string]any)
			if newIsMap && oldIsMap {
				nested := computeDelta(oldMap, newMap, uniqueFields)
				if len(nested) > 0 {
					delta[k] = nested
				}
			} else if !lo.IsNotEmpty(oldVal) && !lo.IsNotEmpty(newVal) {
				// both empty/zero, no-op
			} else if !valuesEqual(oldVal, newVal) {
				delta[k] = newVal
			}
		}
	}
	return delta
}

func valuesEqual(a, b any) bool {
	af, aerr := flat.Flatten(map[string]any{"v": a}, nil)
	bf, berr := flat.Flatten(map[string]any{"v": b}, nil)
	if aerr != nil || berr != nil {
		return false
	}
	if len(af) != len(bf) {
		return false
	}
	for k, v := range af {
		if bf[k] != v {
			return false
		}
	}
	return true
}

// flushChanges empties the change log
func (c *Collection) flushChanges() {
	c.changes = nil
}

// getChanges returns the change log
func (c *Collection) getChanges() []Change {
	return c.changes
}

func (c *Collection) uniqueFieldSet() map[string]bool {
	set := make(map[string]bool, len(c.uniqueIndices))
	for f := range c.uniqueIndices {
		set[f] = true
	}
	return set
}
