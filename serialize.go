package nanocol

import (
	"encoding/json"
	"time"

	"github.com/nolandb/nanocol/errors"
	"github.com/nolandb/nanocol/internal/util"
)

// serialBinaryIndex is the wire shape of a single binary index
type serialBinaryIndex struct {
	Dirty  bool  `json:"dirty"`
	Values []int `json:"values"`
}

// serialCollection is the self-describing record spec.md §6 "Serialisation
// format" names: name, data, idIndex, maxId, dirty, binaryIndices,
// uniqueNames (keys only - indices rebuild on load), dynamicViews (recursive
// via each view's own ToJSON), transforms, nestedProperties, every
// constructor boolean flag, changes, ttl age/interval, and an optional FTS subtree.
type serialCollection struct {
	Name             string                       `json:"name"`
	Data             []json.RawMessage            `json:"data"`
	IDIndex          []int64                      `json:"idIndex"`
	MaxID            int64                        `json:"maxId"`
	Dirty            bool                         `json:"dirty"`
	BinaryIndices    map[string]serialBinaryIndex `json:"binaryIndices"`
	UniqueNames      []string                     `json:"uniqueNames"`
	DynamicViews     []json.RawMessage            `json:"dynamicViews"`
	Transforms       map[string]string            `json:"transforms"`
	NestedProperties []string                     `json:"nestedProperties"`

	AdaptiveBinaryIndices bool `json:"adaptiveBinaryIndices"`
	AsyncListeners        bool `json:"asyncListeners"`
	DisableMeta           bool `json:"disableMeta"`
	ChangesAPI            bool `json:"changesApi"`
	DeltaChangesAPI       bool `json:"deltaChangesApi"`
	Clone                 bool `json:"clone"`
	CloneMethod           string `json:"cloneMethod"`
	SerializableIndices   bool `json:"serializableIndices"`
	Transactional         bool `json:"transactional"`

	Changes []Change `json:"changes"`

	TTLAge      time.Duration `json:"ttlAge"`
	TTLInterval time.Duration `json:"ttlInterval"`

	FTS json.RawMessage `json:"fts,omitempty"`
}

// ToJSON serializes the collection to its self-describing wire format
func (c *Collection) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data := make([]json.RawMessage, len(c.data))
	for i, doc := range c.data {
		data[i] = json.RawMessage(doc.Bytes())
	}

	// When serializableIndices is off, binary indices are persisted as bare
	// field names (via BinaryIndices' keys) with no position data and marked
	// dirty, so they are rebuilt from data on the first read after load instead
	// of trusting a stored sort order - smaller payload, at the cost of a rebuild.
	binIdx := make(map[string]serialBinaryIndex, len(c.binaryIndices))
	for field, b := range c.binaryIndices {
		if c.opts.serializableIndices {
			binIdx[field] = serialBinaryIndex{Dirty: b.dirty, Values: append([]int(nil), b.values...)}
		} else {
			binIdx[field] = serialBinaryIndex{Dirty: true}
		}
	}

	uniqueNames := make([]string, 0, len(c.uniqueIndices))
	for field := range c.uniqueIndices {
		uniqueNames = append(uniqueNames, field)
	}

	var views []json.RawMessage
	for _, v := range c.dynamicViews {
		bits, err := v.ToJSON()
		if err != nil {
			return nil, errors.Wrap(err, errors.Internal, "failed to serialize dynamic view")
		}
		views = append(views, bits)
	}

	transformSrc := make(map[string]string, len(c.transforms))
	for name := range c.transforms {
		transformSrc[name] = c.transformSource[name]
	}

	record := serialCollection{
		Name:                  c.name,
		Data:                  data,
		IDIndex:               append([]int64(nil), c.idIndex.ids...),
		MaxID:                 c.maxID,
		Dirty:                 c.dirty,
		BinaryIndices:         binIdx,
		UniqueNames:           uniqueNames,
		DynamicViews:          views,
		Transforms:            transformSrc,
		NestedProperties:      registeredNames(c.opts.nestedProperties),
		AdaptiveBinaryIndices: c.opts.adaptiveBinaryIndices,
		AsyncListeners:        c.opts.asyncListeners,
		DisableMeta:           c.opts.disableMeta,
		ChangesAPI:            c.opts.changesAPI,
		DeltaChangesAPI:       c.opts.deltaChangesAPI,
		Clone:                 c.opts.clone,
		CloneMethod:           string(c.opts.cloneMethod),
		SerializableIndices:   c.opts.serializableIndices,
		Transactional:         c.opts.transactional,
		Changes:               c.changes,
		TTLAge:                c.opts.ttlAge,
		TTLInterval:           c.opts.ttlInterval,
	}
	if c.fts != nil {
		bits, err := c.fts.ToJSON()
		if err != nil {
			return nil, err
		}
		record.FTS = bits
	}
	return json.Marshal(record)
}

// FromJSONOpts describes struct inflation of revived documents (spec.md §6:
// "per-collection options {proto, inflate}"). FromJSONObject does not accept
// it: documents loaded by FromJSONObject are always left as raw Documents.
type FromJSONOpts struct {
	// Proto, if non-nil, is a prototype value (e.g. new(MyStruct)) describing
	// the shape every document should be inflated into via Inflate.
	Proto any
	// Inflate receives each revived document and decodes it into Proto's type,
	// returning the decoded value for the caller to use; when nil, documents
	// are left as raw Documents.
	Inflate func(doc *Document) (any, error)
}

// FromJSONObject rebuilds a Collection from a serialized record. Unique
// indices are always rebuilt from scratch (stale position references cannot
// be persisted safely); binary indices are restored as given and their dirty
// flags honored as-is.
func FromJSONObject(raw []byte, opts ...Option) (*Collection, error) {
	var record serialCollection
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to parse serialized collection")
	}

	base := []Option{
		WithAdaptiveBinaryIndices(record.AdaptiveBinaryIndices),
		WithAsyncListeners(record.AsyncListeners),
		WithDisableMeta(record.DisableMeta),
		WithChangesAPI(record.ChangesAPI),
		WithDeltaChangesAPI(record.DeltaChangesAPI),
		WithClone(record.Clone, CloneMethod(record.CloneMethod)),
		WithTransactional(record.Transactional),
		WithTTL(record.TTLAge, record.TTLInterval),
		WithUnique(record.UniqueNames...),
	}
	for field := range record.BinaryIndices {
		base = append(base, WithIndices(field))
	}
	base = append(base, opts...)

	c, err := New(record.Name, base...)
	if err != nil {
		return nil, err
	}

	docs := make(Documents, 0, len(record.Data))
	for _, raw := range record.Data {
		doc, err := NewDocumentFromBytes(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	c.data = docs
	c.idIndex = &idIndex{ids: append([]int64(nil), record.IDIndex...)}
	c.maxID = record.MaxID
	c.dirty = record.Dirty
	c.changes = record.Changes

	for field, serial := range record.BinaryIndices {
		b := newBinaryIndex(field, c.opts.adaptiveBinaryIndices)
		if p, ok := findNestedProperty(c.opts.nestedProperties, field); ok {
			b.accessor = p.resolve
		}
		b.values = append([]int(nil), serial.Values...)
		b.dirty = serial.Dirty
		c.binaryIndices[field] = b
	}
	for _, field := range record.UniqueNames {
		u := newUniqueIndex(field)
		if p, ok := findNestedProperty(c.opts.nestedProperties, field); ok {
			u.accessor = p.resolve
		}
		for pos, doc := range c.data {
			if err := u.set(doc, pos); err != nil {
				return nil, err
			}
		}
		c.uniqueIndices[field] = u
	}
	return c, nil
}

// ExportConfig renders the collection's static configuration (name, indices,
// options - not the live data) as YAML, matching the teacher's
// yaml-backed collectionSchema persistence.
func (c *Collection) ExportConfig() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg := map[string]any{
		"name":                  c.name,
		"unique":                uniqueFieldNames(c.uniqueIndices),
		"indices":               binaryFieldNames(c.binaryIndices),
		"adaptiveBinaryIndices": c.opts.adaptiveBinaryIndices,
		"transactional":         c.opts.transactional,
		"disableMeta":           c.opts.disableMeta,
		"changesApi":            c.opts.changesAPI,
		"deltaChangesApi":       c.opts.deltaChangesAPI,
		"cloneMethod":           string(c.opts.cloneMethod),
	}
	bits, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return util.JSONToYAML(bits)
}

func uniqueFieldNames(m map[string]*uniqueIndex) []string {
	out := make([]string, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	return out
}

func binaryFieldNames(m map[string]*binaryIndex) []string {
	out := make([]string, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	return out
}
