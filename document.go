package nanocol

import (
	"encoding/json"
	"io"
	"reflect"

	"github.com/nolandb/nanocol/errors"
	"github.com/nolandb/nanocol/internal/util"
	flat2 "github.com/nqd/flat"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// idKey and metaKey are the two reserved top-level keys the mutation coordinator
// writes and reads through the same gjson/sjson path as every other field -
// there is no separate side table for identity or metadata.
const (
	idKey   = "$id"
	metaKey = "$meta"
)

// Document is a JSON document backed by a gjson.Result over its raw text. It is
// not safe for concurrent mutation from multiple goroutines - the collection
// serializes all mutation through its own coordinator.
type Document struct {
	result gjson.Result
}

// UnmarshalJSON satisfies the json.Unmarshaler interface
func (d *Document) UnmarshalJSON(bytes []byte) error {
	doc, err := NewDocumentFromBytes(bytes)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

// MarshalJSON satisfies the json.Marshaler interface
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.Bytes(), nil
}

// NewDocument creates a new, empty document
func NewDocument() *Document {
	return &Document{result: gjson.Parse("{}")}
}

// NewDocumentFromBytes creates a document from raw json bytes. Fails TypeError
// if the bytes are not a valid json object.
func NewDocumentFromBytes(raw []byte) (*Document, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.TypeError("invalid json: %s", string(raw))
	}
	d := &Document{result: gjson.ParseBytes(raw)}
	if !d.Valid() {
		return nil, errors.TypeError("document must be a non-null json object, got: %s", string(raw))
	}
	return d, nil
}

// NewDocumentFrom creates a document from value, which must be json-marshalable
func NewDocumentFrom(value any) (*Document, error) {
	bits, err := json.Marshal(value)
	if err != nil {
		return nil, errors.TypeError("failed to json encode value: %#v", value)
	}
	return NewDocumentFromBytes(bits)
}

// Valid reports whether the document is a non-null json object
func (d *Document) Valid() bool {
	return gjson.ValidBytes(d.Bytes()) && d.result.IsObject()
}

// String returns the document as a json string
func (d *Document) String() string {
	return d.result.Raw
}

// Bytes returns the document as json bytes
func (d *Document) Bytes() []byte {
	return []byte(d.result.Raw)
}

// Value returns the document as a map
func (d *Document) Value() map[string]any {
	return cast.ToStringMap(d.result.Value())
}

// CloneMethod names one of the closed set of cloning strategies a collection may
// be configured with. See DESIGN.md for why each is implemented distinctly
// rather than collapsing them to one code path.
type CloneMethod string

const (
	// CloneDeep re-realizes the document as an independent tree: marshal to a
	// map, then rebuild fresh json from it, so no nested value is shared with
	// the source document's decoded representation.
	CloneDeep CloneMethod = "deep"
	// CloneParseStringify round-trips through encoding/json, mirroring
	// JSON.parse(JSON.stringify(x)).
	CloneParseStringify CloneMethod = "parse-stringify"
	// CloneShallow wraps the same raw json text in a new Document struct - the
	// cheapest strategy, valid because Document's raw text is immutable once
	// parsed.
	CloneShallow CloneMethod = "shallow"
	// CloneShallowAssign rebuilds the document key by key from its top-level
	// values into a fresh document; each value is re-encoded into the new raw
	// text, so no decoded state is shared with the source.
	CloneShallowAssign CloneMethod = "shallow-assign"
)

// Clone allocates a new document under the given strategy. An empty method
// defaults to CloneDeep.
func (d *Document) Clone(method CloneMethod) *Document {
	switch method {
	case CloneShallow:
		return &Document{result: d.result}
	case CloneShallowAssign:
		out := NewDocument()
		for k, v := range d.Value() {
			_ = out.set(k, v)
		}
		return out
	case CloneParseStringify:
		bits, _ := json.Marshal(d.Value())
		return &Document{result: gjson.ParseBytes(bits)}
	default:
		bits, _ := json.Marshal(d.Value())
		return &Document{result: gjson.ParseBytes(bits)}
	}
}

// ID returns the document's reserved $id and whether it is present
func (d *Document) ID() (int64, bool) {
	f := d.result.Get(idKey)
	if !f.Exists() {
		return 0, false
	}
	return f.Int(), true
}

// SetID sets the reserved $id field
func (d *Document) SetID(id int64) error {
	return d.set(idKey, id)
}

// Meta returns the document's reserved $meta object and whether it is present
func (d *Document) Meta() (*Metadata, bool) {
	f := d.result.Get(metaKey)
	if !f.Exists() {
		return nil, false
	}
	var m Metadata
	if err := util.Decode(cast.ToStringMap(f.Value()), &m); err != nil {
		return nil, false
	}
	return &m, true
}

// SetMeta sets the reserved $meta field
func (d *Document) SetMeta(m *Metadata) error {
	return d.set(metaKey, m)
}

// StripReserved removes $id and $meta, used when returning a removed document
// to the caller.
func (d *Document) StripReserved() error {
	return d.DelAll(idKey, metaKey)
}

// Get gets a field on the document. Supports gjson dot-notation syntax.
func (d *Document) Get(field string) any {
	return d.result.Get(field).Value()
}

// GetString gets a string field
func (d *Document) GetString(field string) string {
	return d.result.Get(field).String()
}

// GetBool gets a bool field
func (d *Document) GetBool(field string) bool {
	return cast.ToBool(d.Get(field))
}

// GetFloat gets a numeric field as a float64
func (d *Document) GetFloat(field string) float64 {
	return cast.ToFloat64(d.Get(field))
}

// GetArray gets an array field
func (d *Document) GetArray(field string) []any {
	return cast.ToSlice(d.Get(field))
}

// Set sets a field on the document. Dot notation is supported.
func (d *Document) Set(field string, val any) error {
	return d.SetAll(map[string]any{field: val})
}

func (d *Document) set(field string, val any) error {
	var (
		result string
		err    error
	)
	switch val := val.(type) {
	case gjson.Result:
		result, err = sjson.Set(d.result.Raw, field, val.Value())
	case []byte:
		result, err = sjson.SetRaw(d.result.Raw, field, string(val))
	default:
		result, err = sjson.Set(d.result.Raw, field, val)
	}
	if err != nil {
		return errors.Wrap(err, errors.Validation, "failed to set field %s", field)
	}
	if !gjson.Valid(result) {
		return errors.TypeError("invalid document after setting field %s", field)
	}
	d.result = gjson.Parse(result)
	return nil
}

// SetAll sets every field in values. Dot notation is supported per key.
func (d *Document) SetAll(values map[string]any) error {
	for k, v := range values {
		if err := d.set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Merge merges with into the document. This is not an overwrite of unrelated fields.
func (d *Document) Merge(with *Document) error {
	if !with.Valid() {
		return errors.TypeError("cannot merge an invalid document")
	}
	flattened, err := flat2.Flatten(with.Value(), nil)
	if err != nil {
		return err
	}
	return d.SetAll(flattened)
}

// Del deletes a field from the document
func (d *Document) Del(field string) error {
	return d.DelAll(field)
}

// DelAll deletes every field named in fields
func (d *Document) DelAll(fields ...string) error {
	for _, field := range fields {
		result, err := sjson.Delete(d.result.Raw, field)
		if err != nil {
			return errors.Wrap(err, errors.Validation, "failed to delete field %s", field)
		}
		d.result = gjson.Parse(result)
	}
	return nil
}

// JSONOp names a field-level diff operation
type JSONOp string

const (
	JSONOpAdd     JSONOp = "add"
	JSONOpReplace JSONOp = "replace"
	JSONOpRemove  JSONOp = "remove"
)

// JSONFieldOp is a single field-level change between two document revisions
type JSONFieldOp struct {
	Path        string
	Op          JSONOp
	Value       any
	BeforeValue any
}

// Diff returns the field-level operations that transform before into d
func (d *Document) Diff(before *Document) []JSONFieldOp {
	var ops []JSONFieldOp
	if before == nil {
		before = NewDocument()
	}
	for _, path := range before.FieldPaths() {
		exists := d.result.Get(path).Exists()
		switch {
		case !exists:
			ops = append(ops, JSONFieldOp{Path: path, Op: JSONOpRemove, BeforeValue: before.Get(path)})
		case !reflect.DeepEqual(d.Get(path), before.Get(path)):
			ops = append(ops, JSONFieldOp{Path: path, Op: JSONOpReplace, Value: d.Get(path), BeforeValue: before.Get(path)})
		}
	}
	for _, path := range d.FieldPaths() {
		if !before.result.Get(path).Exists() {
			ops = append(ops, JSONFieldOp{Path: path, Op: JSONOpAdd, Value: d.Get(path)})
		}
	}
	return ops
}

// FieldPaths returns the dot-notation paths to every leaf field, including nested ones
func (d *Document) FieldPaths() []string {
	paths := &[]string{}
	d.paths(d.result, paths)
	return *paths
}

func (d *Document) paths(result gjson.Result, pathValues *[]string) {
	result.ForEach(func(key, value gjson.Result) bool {
		if value.IsObject() {
			d.paths(value, pathValues)
		} else {
			*pathValues = append(*pathValues, value.Path(d.result.Raw))
		}
		return true
	})
}

// Scan decodes the document into value via json-tagged struct inflation
func (d *Document) Scan(value any) error {
	return util.Decode(d.Value(), value)
}

// Encode writes the document's raw json to w
func (d *Document) Encode(w io.Writer) error {
	if _, err := w.Write(d.Bytes()); err != nil {
		return errors.Wrap(err, errors.Internal, "failed to encode document")
	}
	return nil
}

// Documents is a slice of documents with functional helpers over samber/lo
type Documents []*Document

// Slice returns the sub-slice [start,end)
func (documents Documents) Slice(start, end int) Documents {
	return lo.Slice[*Document](documents, start, end)
}

// Filter returns the documents for which predicate returns true
func (documents Documents) Filter(predicate func(document *Document, i int) bool) Documents {
	return lo.Filter[*Document](documents, predicate)
}

// Map applies mapper to every document
func (documents Documents) Map(mapper func(t *Document, i int) *Document) Documents {
	return lo.Map[*Document, *Document](documents, mapper)
}

// ForEach applies fn to every document
func (documents Documents) ForEach(fn func(next *Document, i int)) {
	lo.ForEach[*Document](documents, fn)
}
