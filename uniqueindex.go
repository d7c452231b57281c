package nanocol

import (
	"github.com/nolandb/nanocol/errors"
	"github.com/nolandb/nanocol/internal/util"
)

// uniqueIndex is a hash value -> position for a single field, guaranteeing
// distinctness of that field across the collection. Rebuilt from scratch on
// deserialisation because stale position references cannot be persisted
// safely across a load.
type uniqueIndex struct {
	field    string
	keys     map[string]int
	accessor func(doc *Document) any
}

func newUniqueIndex(field string) *uniqueIndex {
	return &uniqueIndex{field: field, keys: map[string]int{}, accessor: func(doc *Document) any { return doc.Get(field) }}
}

func (u *uniqueIndex) clone() *uniqueIndex {
	cp := make(map[string]int, len(u.keys))
	for k, v := range u.keys {
		cp[k] = v
	}
	return &uniqueIndex{field: u.field, keys: cp, accessor: u.accessor}
}

func (u *uniqueIndex) hash(doc *Document) string {
	return string(util.EncodeIndexValue(u.accessor(doc)))
}

// set records doc's value at position pos, failing ConstraintError on collision
func (u *uniqueIndex) set(doc *Document, pos int) error {
	key := u.hash(doc)
	if existing, ok := u.keys[key]; ok && existing != pos {
		return errors.ConstraintError("unique constraint violated on field %q", u.field)
	}
	u.keys[key] = pos
	return nil
}

// update rewrites the mapping for the document now at newPos, removing its old
// value's entry first. Fails ConstraintError if the new value collides with a
// different position.
func (u *uniqueIndex) update(oldDoc, newDoc *Document, newPos int) error {
	oldKey := u.hash(oldDoc)
	newKey := u.hash(newDoc)
	if oldKey == newKey {
		u.keys[newKey] = newPos
		return nil
	}
	if existing, ok := u.keys[newKey]; ok && existing != newPos {
		return errors.ConstraintError("unique constraint violated on field %q", u.field)
	}
	delete(u.keys, oldKey)
	u.keys[newKey] = newPos
	return nil
}

// remove deletes the entry for doc's value, a no-op if absent
func (u *uniqueIndex) remove(doc *Document) {
	delete(u.keys, u.hash(doc))
}

// get returns the position stored for value, or (-1, false)
func (u *uniqueIndex) get(value any) (int, bool) {
	key := string(util.EncodeIndexValue(value))
	pos, ok := u.keys[key]
	return pos, ok
}

// clear empties the index
func (u *uniqueIndex) clear() {
	u.keys = map[string]int{}
}
