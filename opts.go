package nanocol

import "time"

// collectionOptions holds every constructor flag from spec.md §6. The
// declarative subset (name, ttl interval) is checked by
// internal/util.ValidateStruct in New via collectionSpec; the rest (mutual
// exclusions between disableMeta and changesAPI/ttl, changesAPI/deltaChangesAPI
// implication) is cross-field and checked by hand.
type collectionOptions struct {
	unique  []string
	indices []string

	adaptiveBinaryIndices bool
	asyncListeners        bool
	disableMeta           bool
	changesAPI            bool
	deltaChangesAPI       bool
	clone                 bool
	cloneMethod           CloneMethod
	serializableIndices   bool
	transactional         bool

	ttlAge      time.Duration
	ttlInterval time.Duration

	nestedProperties []nestedProperty

	ftsFactory   FTSFactory
	ftsFields    []string
	validator    DocumentValidator
	transforms   map[string]string
	eventSink    EventSink
}

// Option configures a Collection at construction
type Option func(*collectionOptions)

func defaultOptions() *collectionOptions {
	return &collectionOptions{
		adaptiveBinaryIndices: true,
		asyncListeners:        false,
		disableMeta:           false,
		changesAPI:            false,
		deltaChangesAPI:       false,
		clone:                 false,
		cloneMethod:           CloneDeep,
		serializableIndices:   true,
		transactional:         false,
		ttlAge:                -1,
	}
}

// WithUnique declares fields backed by a unique index
func WithUnique(fields ...string) Option {
	return func(o *collectionOptions) { o.unique = fields }
}

// WithIndices declares fields backed by a binary index
func WithIndices(fields ...string) Option {
	return func(o *collectionOptions) { o.indices = fields }
}

// WithAdaptiveBinaryIndices toggles adaptive (true) vs. lazy (false) binary
// index maintenance, default true
func WithAdaptiveBinaryIndices(adaptive bool) Option {
	return func(o *collectionOptions) { o.adaptiveBinaryIndices = adaptive }
}

// WithAsyncListeners dispatches event subscribers via machine.Go instead of inline
func WithAsyncListeners(async bool) Option {
	return func(o *collectionOptions) { o.asyncListeners = async }
}

// WithDisableMeta suppresses the $meta object; mutually exclusive with change
// tracking and TTL, enforced by New.
func WithDisableMeta(disable bool) Option {
	return func(o *collectionOptions) { o.disableMeta = disable }
}

// WithChangesAPI enables the in-memory change log
func WithChangesAPI(enabled bool) Option {
	return func(o *collectionOptions) { o.changesAPI = enabled }
}

// WithDeltaChangesAPI additionally recomputes minimal deltas on update;
// forced false when WithChangesAPI is false.
func WithDeltaChangesAPI(enabled bool) Option {
	return func(o *collectionOptions) { o.deltaChangesAPI = enabled }
}

// WithClone enables cloning documents on insert/update/emit, using method
func WithClone(enabled bool, method CloneMethod) Option {
	return func(o *collectionOptions) {
		o.clone = enabled
		if method != "" {
			o.cloneMethod = method
		}
	}
}

// WithTTL sets age/interval; age < 0 disables the daemon (the default)
func WithTTL(age, interval time.Duration) Option {
	return func(o *collectionOptions) {
		o.ttlAge = age
		o.ttlInterval = interval
	}
}

// WithTransactional enables snapshot/commit/rollback around every mutation
func WithTransactional(enabled bool) Option {
	return func(o *collectionOptions) { o.transactional = enabled }
}

// WithNestedProperty registers a virtual accessor at name, reading through
// path (or name split on '.' when path is empty)
func WithNestedProperty(name string, path ...string) Option {
	return func(o *collectionOptions) {
		o.nestedProperties = append(o.nestedProperties, newNestedProperty(name, path))
	}
}

// WithFullTextSearch wires an FTSFactory over the given fields, replacing the
// process-wide plugin registry the REDESIGN FLAGS call out.
func WithFullTextSearch(factory FTSFactory, fields ...string) Option {
	return func(o *collectionOptions) {
		o.ftsFactory = factory
		o.ftsFields = fields
	}
}

// WithValidator attaches a DocumentValidator run on every insert/update
func WithValidator(v DocumentValidator) Option {
	return func(o *collectionOptions) { o.validator = v }
}

// WithTransforms registers named goja expression pipelines (spec.md §3 Transforms)
func WithTransforms(transforms map[string]string) Option {
	return func(o *collectionOptions) { o.transforms = transforms }
}

// WithEventSink wires an additional cross-process change notifier
func WithEventSink(sink EventSink) Option {
	return func(o *collectionOptions) { o.eventSink = sink }
}
