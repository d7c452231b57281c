package nanocol

import "time"

// Metadata is the reserved $meta object a document carries when the collection
// has not disabled metadata. version increments on every replace via update;
// revision is an alias kept distinct from version for parity with the spec's
// naming, and is bumped identically.
type Metadata struct {
	Version int64     `json:"version"`
	Revision int64    `json:"revision"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// newMetadata builds the metadata stamped onto a freshly inserted document
func newMetadata(now time.Time) *Metadata {
	return &Metadata{
		Version:  1,
		Revision: 0,
		Created:  now,
		Updated:  now,
	}
}

// touch returns a copy of m with revision incremented and updated set to now,
// the transformation update() applies on every replace.
func (m *Metadata) touch(now time.Time) *Metadata {
	if m == nil {
		return newMetadata(now)
	}
	return &Metadata{
		Version:  m.Version + 1,
		Revision: m.Revision + 1,
		Created:  m.Created,
		Updated:  now,
	}
}

// age reports how old the metadata is relative to now, per spec.md's TTL rule
// of meta.updated || meta.created (updated always set, so it always wins).
func (m *Metadata) age(now time.Time) time.Duration {
	return now.Sub(m.Updated)
}
