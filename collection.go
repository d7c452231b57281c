package nanocol

import (
	"context"
	"sync"
	"time"

	"github.com/nolandb/nanocol/errors"
	"github.com/nolandb/nanocol/internal/util"
	"go.uber.org/zap"
)

var errStateNoID = errors.StateError("document has no $id")

// collectionSpec carries the constructor arguments that are cheap to
// validate declaratively via struct tags; everything else in
// collectionOptions is either a derived flag or cross-validated by hand in
// New (mutual exclusions, TTL preconditions).
type collectionSpec struct {
	Name        string        `validate:"required"`
	TTLInterval time.Duration `validate:"omitempty,gt=0"`
}

// Collection is the in-memory document store: the dense Data array, its
// identifier index, its binary and unique secondary indices, its observers,
// and every other piece of state spec.md §3 names. All mutation is
// serialized through the methods on this type - query paths (not
// implemented here; out of scope, see spec.md §1) must never write to it
// directly.
type Collection struct {
	mu     sync.RWMutex
	name   string
	opts   *collectionOptions
	logger *zap.Logger

	data    Documents
	idIndex *idIndex
	maxID   int64
	dirty   bool

	binaryIndices map[string]*binaryIndex
	uniqueIndices map[string]*uniqueIndex

	dynamicViews []DynamicView
	fts          FullTextSearch

	transforms      map[string]*Transform
	transformSource map[string]string

	changes []Change
	stages  map[string]*stage

	ttl *ttlConfig
	bus *eventBus

	sink EventSink
}

// New constructs a Collection named name under the given options.
func New(name string, opts ...Option) (*Collection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	spec := collectionSpec{Name: name}
	if o.ttlAge > 0 {
		spec.TTLInterval = o.ttlInterval
	}
	if err := util.ValidateStruct(spec); err != nil {
		return nil, err
	}
	if !o.changesAPI {
		o.deltaChangesAPI = false
	}
	if o.disableMeta && o.changesAPI {
		return nil, errors.ConfigError("disableMeta is mutually exclusive with the changes api")
	}
	if o.disableMeta && o.ttlAge > 0 {
		return nil, errors.ConfigError("disableMeta is mutually exclusive with ttl")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nanocol").With(zap.String("collection", name))

	c := &Collection{
		name:          name,
		opts:          o,
		logger:        logger,
		idIndex:       newIDIndex(),
		binaryIndices: map[string]*binaryIndex{},
		uniqueIndices: map[string]*uniqueIndex{},
		stages:        map[string]*stage{},
		bus:           newEventBus(o.asyncListeners),
		sink:          o.eventSink,
	}
	for _, field := range o.indices {
		b := newBinaryIndex(field, o.adaptiveBinaryIndices)
		if p, ok := findNestedProperty(o.nestedProperties, field); ok {
			b.accessor = p.resolve
		}
		c.binaryIndices[field] = b
	}
	for _, field := range o.unique {
		u := newUniqueIndex(field)
		if p, ok := findNestedProperty(o.nestedProperties, field); ok {
			u.accessor = p.resolve
		}
		c.uniqueIndices[field] = u
	}
	if o.ftsFactory != nil {
		fts, err := o.ftsFactory(name, o.ftsFields)
		if err != nil {
			return nil, errors.Wrap(err, errors.Config, "failed to construct full-text search collaborator")
		}
		c.fts = fts
	}
	if len(o.transforms) > 0 {
		compiled, err := compileTransforms(o.transforms)
		if err != nil {
			return nil, err
		}
		c.transforms = compiled
		c.transformSource = o.transforms
	}
	if o.ttlAge > 0 {
		if err := c.startTTL(o.ttlAge, o.ttlInterval); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Name returns the collection's name
func (c *Collection) Name() string { return c.name }

// Len returns the current number of documents
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// AddDynamicView registers an observer whose membership the coordinator keeps
// in sync on every mutation
func (c *Collection) AddDynamicView(v DynamicView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dynamicViews = append(c.dynamicViews, v)
}

// Subscribe registers fn against an event channel (see events.go for channel names)
func (c *Collection) Subscribe(ctx context.Context, channel string, fn func(ctx context.Context, body any) (bool, error)) error {
	return c.bus.subscribe(ctx, channel, fn)
}

// Close emits ChannelClose and drains any in-flight async event dispatch and the TTL daemon
func (c *Collection) Close(ctx context.Context) {
	if c.ttl != nil && c.ttl.cancel != nil {
		c.ttl.cancel()
	}
	c.bus.close(ctx)
}

func (c *Collection) emit(ctx context.Context, channel string, body any) {
	c.bus.publish(ctx, channel, body)
	if c.sink != nil {
		if err := c.sink.Publish(ctx, channel, body); err != nil {
			c.logger.Sugar().Warnw("event sink publish failed", "channel", channel, "error", err)
		}
	}
}

func (c *Collection) emitError(ctx context.Context, err error) {
	c.bus.publish(ctx, ChannelError, ErrorEvent{Err: err})
}

// cloneForStore returns the record that should actually enter Data: a clone
// when cloning is enabled, or the same reference otherwise.
func (c *Collection) cloneForStore(doc *Document) *Document {
	if !c.opts.clone {
		return doc
	}
	return doc.Clone(c.opts.cloneMethod)
}

// cloneForEmit returns the record that should appear in emitted event
// payloads and be returned to the caller, following the same clone policy.
func (c *Collection) cloneForEmit(doc *Document) *Document {
	if !c.opts.clone {
		return doc
	}
	return doc.Clone(c.opts.cloneMethod)
}

func validateInsertable(doc *Document) error {
	if doc == nil || !doc.Valid() {
		return errors.TypeError("insert requires a non-null structured value")
	}
	if _, ok := doc.ID(); ok {
		return errors.StateError("document already carries an $id; use update instead")
	}
	return nil
}

func (c *Collection) validateAgainstSchema(doc *Document) error {
	if c.opts.validator == nil {
		return nil
	}
	return c.opts.validator.Validate(doc)
}

// Insert inserts a single document, assigning it a fresh $id and metadata.
func (c *Collection) Insert(doc *Document) (*Document, error) {
	out, err := c.InsertBatch(Documents{doc})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// InsertBatch inserts every document in docs as a single logical call: one
// pre-insert event for the whole batch, one insert event with the full
// result list.
func (c *Collection) InsertBatch(docs Documents) (Documents, error) {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, doc := range docs {
		if err := validateInsertable(doc); err != nil {
			return nil, err
		}
	}
	c.emit(ctx, ChannelPreInsert, InsertEvent{Documents: docs})

	snap := c.startTransaction()
	result, err := c.insertBatchLocked(ctx, docs)
	if err != nil {
		c.rollback(snap)
		c.emitError(ctx, err)
		return nil, err
	}
	c.commit(snap)
	c.dirty = true
	c.emit(ctx, ChannelInsert, InsertEvent{Documents: result})
	return result, nil
}

func (c *Collection) insertBatchLocked(ctx context.Context, docs Documents) (Documents, error) {
	result := make(Documents, 0, len(docs))
	now := time.Now()
	for _, doc := range docs {
		if err := c.validateAgainstSchema(doc); err != nil {
			return nil, err
		}
		stored := c.cloneForStore(doc)
		c.maxID++
		id := c.maxID
		if err := stored.SetID(id); err != nil {
			return nil, errors.Wrap(err, errors.Internal, "failed to set $id")
		}
		if !c.opts.disableMeta {
			if err := stored.SetMeta(newMetadata(now)); err != nil {
				return nil, errors.Wrap(err, errors.Internal, "failed to set $meta")
			}
		}
		pos := len(c.data)

		for _, u := range c.uniqueIndices {
			if err := u.set(stored, pos); err != nil {
				return nil, err
			}
		}

		c.data = append(c.data, stored)
		c.idIndex.append(id)

		for _, b := range c.binaryIndices {
			b.insert(c.data, pos)
		}
		for _, v := range c.dynamicViews {
			v.EvaluateDocument(pos, true)
		}
		if c.fts != nil {
			if err := c.fts.AddDocument(stored, pos); err != nil {
				return nil, err
			}
		}
		c.recordInsert(stored)

		result = append(result, c.cloneForEmit(stored))
	}
	return result, nil
}

// Update replaces every document in docs, each identified by its $id
func (c *Collection) Update(docs Documents) (Documents, error) {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, doc := range docs {
		if _, ok := doc.ID(); !ok {
			return nil, errStateNoID
		}
	}
	c.emit(ctx, ChannelPreUpdate, UpdateEvent{After: docs})

	snap := c.startTransaction()
	before, after, err := c.updateBatchLocked(ctx, docs)
	if err != nil {
		c.rollback(snap)
		c.emitError(ctx, err)
		return nil, err
	}
	c.commit(snap)
	c.dirty = true
	c.emit(ctx, ChannelUpdate, UpdateEvent{Before: before, After: after})
	return after, nil
}

// updateBatchLocked processes updates sequentially. When adaptive indexing is
// on, cloning is off, and binary indices exist, the batch temporarily treats
// every affected index as lazy (dirty) and rebuilds once at the end, per
// spec.md §4.1's batch-update optimization note.
func (c *Collection) updateBatchLocked(ctx context.Context, docs Documents) (Documents, Documents, error) {
	deferRebuild := c.opts.adaptiveBinaryIndices && !c.opts.clone && len(c.binaryIndices) > 0
	before := make(Documents, 0, len(docs))
	after := make(Documents, 0, len(docs))
	now := time.Now()

	for _, doc := range docs {
		id, _ := doc.ID()
		pos, ok := c.idIndex.find(id)
		if !ok {
			return nil, nil, errors.StateError("no document found with $id=%d", id)
		}
		if err := c.validateAgainstSchema(doc); err != nil {
			return nil, nil, err
		}
		oldDoc := c.data[pos]
		newDoc := c.cloneForStore(doc)

		for _, u := range c.uniqueIndices {
			if err := u.update(oldDoc, newDoc, pos); err != nil {
				return nil, nil, err
			}
		}

		if !c.opts.disableMeta {
			oldMeta, _ := oldDoc.Meta()
			if err := newDoc.SetMeta(oldMeta.touch(now)); err != nil {
				return nil, nil, errors.Wrap(err, errors.Internal, "failed to touch $meta")
			}
		}

		c.data[pos] = newDoc
		if deferRebuild {
			for _, b := range c.binaryIndices {
				b.dirty = true
			}
		} else {
			for _, b := range c.binaryIndices {
				b.update(c.data, pos)
			}
		}
		for _, v := range c.dynamicViews {
			v.EvaluateDocument(pos, false)
		}
		if c.fts != nil {
			if err := c.fts.UpdateDocument(newDoc, pos); err != nil {
				return nil, nil, err
			}
		}
		c.recordUpdate(oldDoc, newDoc)

		before = append(before, c.cloneForEmit(oldDoc))
		after = append(after, c.cloneForEmit(newDoc))
	}
	if deferRebuild {
		for _, b := range c.binaryIndices {
			b.rebuild(c.data)
		}
	}
	return before, after, nil
}

// Remove deletes the document with the given $id
func (c *Collection) Remove(id int64) (*Document, error) {
	out, err := c.RemoveBatch([]int64{id})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// removeByID is RemoveBatch without re-acquiring the lock, used by the TTL
// sweep which already holds it. It still snapshots/commits/rolls back and
// emits ChannelDelete like the public path, so a TTL eviction is
// observationally identical to an explicit Remove.
func (c *Collection) removeByID(ctx context.Context, id int64) error {
	snap := c.startTransaction()
	removed, err := c.removeBatchLocked(ctx, []int64{id})
	if err != nil {
		c.rollback(snap)
		c.emitError(ctx, err)
		return err
	}
	c.commit(snap)
	c.dirty = true
	c.emit(ctx, ChannelDelete, DeleteEvent{Documents: removed})
	return nil
}

// RemoveBatch removes every document named by ids
func (c *Collection) RemoveBatch(ids []int64) (Documents, error) {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.startTransaction()
	removed, err := c.removeBatchLocked(ctx, ids)
	if err != nil {
		c.rollback(snap)
		c.emitError(ctx, err)
		return nil, err
	}
	c.commit(snap)
	c.dirty = true
	c.emit(ctx, ChannelDelete, DeleteEvent{Documents: removed})
	return removed, nil
}

func (c *Collection) removeBatchLocked(ctx context.Context, ids []int64) (Documents, error) {
	removed := make(Documents, 0, len(ids))
	for _, id := range ids {
		pos, ok := c.idIndex.find(id)
		if !ok {
			continue
		}
		doc := c.data[pos]

		for _, u := range c.uniqueIndices {
			u.remove(doc)
			for k, p := range u.keys {
				if p > pos {
					u.keys[k] = p - 1
				}
			}
		}
		for _, v := range c.dynamicViews {
			v.RemoveDocument(pos)
		}
		for _, b := range c.binaryIndices {
			b.remove(c.data, pos)
		}
		c.data = append(c.data[:pos], c.data[pos+1:]...)
		c.idIndex.removeAt(pos)

		if c.fts != nil {
			if err := c.fts.RemoveDocument(doc, pos); err != nil {
				return nil, err
			}
		}
		c.recordRemove(doc)

		out := doc.Clone(CloneDeep)
		if err := out.StripReserved(); err != nil {
			return nil, err
		}
		removed = append(removed, out)
	}
	return removed, nil
}

// Clear empties Data and the identifier index. When removeIndices is true,
// every binary and unique index is dropped entirely rather than reset to an
// empty permutation; MaxId is never reset, preserving the never-reuse
// invariant across a clear.
func (c *Collection) Clear(removeIndices bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	c.idIndex = newIDIndex()
	if removeIndices {
		c.binaryIndices = map[string]*binaryIndex{}
		c.uniqueIndices = map[string]*uniqueIndex{}
	} else {
		for field := range c.binaryIndices {
			c.binaryIndices[field] = newBinaryIndex(field, c.opts.adaptiveBinaryIndices)
		}
		for field := range c.uniqueIndices {
			c.uniqueIndices[field].clear()
		}
	}
	if c.fts != nil {
		c.fts.Clear()
	}
	c.dirty = true
}

// Find returns every document for which predicate returns true. The query
// compiler proper is out of scope (spec.md §1); this is the minimal
// traversal findAndUpdate/findAndRemove/updateWhere/removeWhere build on.
func (c *Collection) Find(predicate func(doc *Document) bool) Documents {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out Documents
	for _, doc := range c.data {
		if predicate(doc) {
			out = append(out, c.cloneForEmit(doc))
		}
	}
	return out
}

// FindAndUpdate applies mutator to every document matching predicate and
// writes the results back as a single update batch.
func (c *Collection) FindAndUpdate(predicate func(doc *Document) bool, mutator func(doc *Document) error) (Documents, error) {
	matches := c.Find(predicate)
	if len(matches) == 0 {
		return nil, nil
	}
	for _, doc := range matches {
		if err := mutator(doc); err != nil {
			return nil, err
		}
	}
	return c.Update(matches)
}

// FindAndRemove removes every document matching predicate
func (c *Collection) FindAndRemove(predicate func(doc *Document) bool) (Documents, error) {
	matches := c.Find(predicate)
	if len(matches) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(matches))
	for _, doc := range matches {
		id, _ := doc.ID()
		ids = append(ids, id)
	}
	return c.RemoveBatch(ids)
}

// UpdateWhere is an alias for FindAndUpdate, named to mirror spec.md's
// updateWhere operation.
func (c *Collection) UpdateWhere(predicate func(doc *Document) bool, mutator func(doc *Document) error) (Documents, error) {
	return c.FindAndUpdate(predicate, mutator)
}

// RemoveWhere is an alias for FindAndRemove, named to mirror spec.md's
// removeWhere operation.
func (c *Collection) RemoveWhere(predicate func(doc *Document) bool) (Documents, error) {
	return c.FindAndRemove(predicate)
}

// Get returns the document with the given $id, or nil if absent
func (c *Collection) Get(id int64) *Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.idIndex.find(id)
	if !ok {
		return nil
	}
	return c.cloneForEmit(c.data[pos])
}

// EnsureIndex forces a lazy binary index on field to rebuild if dirty
func (c *Collection) EnsureIndex(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.binaryIndices[field]; ok && b.dirty {
		b.rebuild(c.data)
	}
}

// CalculateRange resolves op/target (and upper, for $between) against the
// named binary index, lazily rebuilding it first if dirty, and returns the
// matching documents in index order.
func (c *Collection) CalculateRange(field string, op RangeOp, target, upper any) (Documents, error) {
	c.mu.Lock()
	b, ok := c.binaryIndices[field]
	if !ok {
		c.mu.Unlock()
		return nil, errors.TypeError("no binary index on field %q", field)
	}
	if b.dirty {
		b.rebuild(c.data)
	}
	lo, hi := b.calculateRange(c.data, op, target, upper)
	var out Documents
	for i := lo; i <= hi; i++ {
		out = append(out, c.cloneForEmit(c.data[b.values[i]]))
	}
	c.mu.Unlock()
	return out, nil
}

// CheckIndex runs the integrity check for a single binary index
func (c *Collection) CheckIndex(field string, opts CheckIndexOpts) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.binaryIndices[field]
	if !ok {
		return false
	}
	return b.checkIndex(c.data, opts)
}

// CheckAllIndexes runs the integrity check for every binary index concurrently
func (c *Collection) CheckAllIndexes(ctx context.Context, opts CheckIndexOpts) (map[string]bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return checkAllIndexes(ctx, c.data, c.binaryIndices, opts)
}

// Stage delegates to the named staging area (spec.md §4.11)
func (c *Collection) Stage(name string, doc *Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stageDoc(name, doc)
}

// CommitStage commits the named staging area
func (c *Collection) CommitStage(name, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitStage(name, message)
}

// FlushChanges empties the change log
func (c *Collection) FlushChanges() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushChanges()
}

// GetChanges returns the change log
func (c *Collection) GetChanges() []Change {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.getChanges()
}

// Aggregate exposes the §4.10 aggregation helpers over the live document set
func (c *Collection) Aggregate(field string) Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Aggregation{data: append(Documents(nil), c.data...), field: field}
}

// Aggregation is a bound view over one field, ready for min/max/avg/etc.
type Aggregation struct {
	data  Documents
	field string
}

func (a Aggregation) Extract() []any             { return extract(a.data, a.field) }
func (a Aggregation) ExtractNumerical() []float64 { return extractNumerical(a.data, a.field) }
func (a Aggregation) Min() float64                { return aggMin(a.data, a.field) }
func (a Aggregation) Max() float64                { return aggMax(a.data, a.field) }
func (a Aggregation) Avg() float64                { return aggAvg(a.data, a.field) }
func (a Aggregation) StdDev() float64             { return aggStdDev(a.data, a.field) }
func (a Aggregation) Mode() any                   { return aggMode(a.data, a.field) }
func (a Aggregation) Median() float64             { return aggMedian(a.data, a.field) }
func (a Aggregation) MinRecord() *Document         { return aggMinRecord(a.data, a.field) }
func (a Aggregation) MaxRecord() *Document         { return aggMaxRecord(a.data, a.field) }
