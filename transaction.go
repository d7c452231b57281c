package nanocol

// snapshot captures the collection state a transaction can roll back to. Per
// spec.md §4.7 this is a shallow snapshot of idIndex and binaryIndices and a
// deep clone of data - data is cloned because documents are mutated in place
// by replacement, while the indices are rebuilt from position lists that are
// cheap to copy wholesale. maxID is captured too since insertBatchLocked
// advances it before a later element in the same batch can fail.
type snapshot struct {
	data          Documents
	idIndex       *idIndex
	binaryIndices map[string]*binaryIndex
	uniqueIndices map[string]*uniqueIndex
	maxID         int64
}

// startTransaction snapshots state and recursively starts transactions on
// every dynamic view. A no-op (returns nil) when transactions are disabled.
func (c *Collection) startTransaction() *snapshot {
	if !c.opts.transactional {
		return nil
	}
	data := make(Documents, len(c.data))
	for i, doc := range c.data {
		data[i] = doc.Clone(CloneDeep)
	}
	binIdx := make(map[string]*binaryIndex, len(c.binaryIndices))
	for f, b := range c.binaryIndices {
		binIdx[f] = b.clone()
	}
	uniqIdx := make(map[string]*uniqueIndex, len(c.uniqueIndices))
	for f, u := range c.uniqueIndices {
		uniqIdx[f] = u.clone()
	}
	for _, v := range c.dynamicViews {
		v.StartTransaction()
	}
	return &snapshot{
		data:          data,
		idIndex:       c.idIndex.clone(),
		binaryIndices: binIdx,
		uniqueIndices: uniqIdx,
		maxID:         c.maxID,
	}
}

// commit clears the snapshot and commits every dynamic view
func (c *Collection) commit(snap *snapshot) {
	if snap == nil {
		return
	}
	for _, v := range c.dynamicViews {
		v.Commit()
	}
}

// rollback restores data, idIndex, maxID, and the binary/unique indices from
// snap and rolls back every dynamic view. This is the sole guarantee backing
// spec.md §4.7: a failed mutation leaves the entire collection state,
// including the ID sequence, unchanged.
func (c *Collection) rollback(snap *snapshot) {
	if snap == nil {
		return
	}
	c.data = snap.data
	c.idIndex = snap.idIndex
	c.binaryIndices = snap.binaryIndices
	c.uniqueIndices = snap.uniqueIndices
	c.maxID = snap.maxID
	for _, v := range c.dynamicViews {
		v.Rollback()
	}
}
