package nanocol

import (
	"context"
	"strconv"
	"time"
)

// StageCommit is a single entry in a stage's commit log (spec.md §4.11)
type StageCommit struct {
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
}

// stage is a named scratch area: id -> staged document snapshot, plus the log
// of commits made against it.
type stage struct {
	docs    map[int64]*Document
	commits []StageCommit
}

// getStage returns the named scratch area, creating it if absent
func (c *Collection) getStage(name string) *stage {
	if c.stages == nil {
		c.stages = map[string]*stage{}
	}
	s, ok := c.stages[name]
	if !ok {
		s = &stage{docs: map[int64]*Document{}}
		c.stages[name] = s
	}
	return s
}

// stageDoc deep-copies doc and stores it in the named stage keyed by $id.
// Fails StateError if doc has no $id.
func (c *Collection) stageDoc(name string, doc *Document) error {
	id, ok := doc.ID()
	if !ok {
		return errStateNoID
	}
	s := c.getStage(name)
	s.docs[id] = doc.Clone(CloneDeep)
	return nil
}

// commitStage calls update for every staged document, appends a commit log
// entry, and empties the stage.
func (c *Collection) commitStage(name, message string) error {
	s := c.getStage(name)
	if len(s.docs) == 0 {
		return nil
	}
	batch := make(Documents, 0, len(s.docs))
	for _, doc := range s.docs {
		batch = append(batch, doc)
	}
	// the caller already holds c.mu, so this runs Update's body without
	// re-acquiring the lock
	ctx := context.Background()
	c.emit(ctx, ChannelPreUpdate, UpdateEvent{After: batch})
	snap := c.startTransaction()
	before, after, err := c.updateBatchLocked(ctx, batch)
	if err != nil {
		c.rollback(snap)
		c.emitError(ctx, err)
		return err
	}
	c.commit(snap)
	c.dirty = true
	c.emit(ctx, ChannelUpdate, UpdateEvent{Before: before, After: after})
	data := map[string]any{}
	for id, doc := range s.docs {
		data[formatStageKey(id)] = doc.Value()
	}
	s.commits = append(s.commits, StageCommit{Timestamp: time.Now(), Message: message, Data: data})
	s.docs = map[int64]*Document{}
	return nil
}

func formatStageKey(id int64) string {
	return "id:" + strconv.FormatInt(id, 10)
}
