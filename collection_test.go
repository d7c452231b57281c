package nanocol

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/nolandb/nanocol/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, v map[string]any) *Document {
	t.Helper()
	d, err := NewDocumentFrom(v)
	require.NoError(t, err)
	return d
}

// scenario 1: unique collision on insert
func TestUniqueCollisionOnInsert(t *testing.T) {
	c, err := New("users", WithUnique("email"))
	require.NoError(t, err)

	inserted, err := c.Insert(mustDoc(t, map[string]any{"email": "a"}))
	require.NoError(t, err)
	id, ok := inserted.ID()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	_, err = c.Insert(mustDoc(t, map[string]any{"email": "a"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Conflict))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(1), c.maxID)
}

// scenario 2: binary range after shifts
func TestBinaryRangeAfterShifts(t *testing.T) {
	c, err := New("things", WithIndices("age"))
	require.NoError(t, err)

	var ids []int64
	for _, age := range []float64{30, 10, 20, 40} {
		doc, err := c.Insert(mustDoc(t, map[string]any{"age": age}))
		require.NoError(t, err)
		id, _ := doc.ID()
		ids = append(ids, id)
	}
	// remove the document with age==20, which was inserted third (index 2)
	_, err = c.Remove(ids[2])
	require.NoError(t, err)

	matches, err := c.CalculateRange("age", RangeBetween, 15.0, 35.0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 30.0, matches[0].Get("age"))

	assert.True(t, c.CheckIndex("age", CheckIndexOpts{}))
}

// scenario 3: transactional rollback on batch insert failure
func TestTransactionalRollback(t *testing.T) {
	c, err := New("things", WithUnique("k"), WithTransactional(true))
	require.NoError(t, err)

	_, err = c.InsertBatch(Documents{
		mustDoc(t, map[string]any{"k": 1.0}),
		mustDoc(t, map[string]any{"k": 2.0}),
		mustDoc(t, map[string]any{"k": 1.0}),
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.maxID)
	assert.Empty(t, c.uniqueIndices["k"].keys)
}

// scenario 4: TTL eviction
func TestTTLEviction(t *testing.T) {
	c, err := New("sessions", WithTTL(50*time.Millisecond, 20*time.Millisecond))
	require.NoError(t, err)

	var deleteCount int
	done := make(chan struct{})
	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	go func() {
		_ = c.Subscribe(subCtx, ChannelDelete, func(ctx context.Context, body any) (bool, error) {
			if evt, ok := body.(DeleteEvent); ok {
				deleteCount += len(evt.Documents)
				if deleteCount >= 3 {
					close(done)
					return false, nil
				}
			}
			return true, nil
		})
	}()

	for i := 0; i < 3; i++ {
		_, err := c.Insert(mustDoc(t, map[string]any{"n": i}))
		require.NoError(t, err)
	}

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("ttl eviction did not fire in time")
	}
	assert.Equal(t, 0, c.Len())
}

// scenario 5: delta update
func TestDeltaUpdate(t *testing.T) {
	c, err := New("things", WithChangesAPI(true), WithDeltaChangesAPI(true))
	require.NoError(t, err)

	inserted, err := c.Insert(mustDoc(t, map[string]any{
		"a": 1.0,
		"b": map[string]any{"c": 2.0, "d": 3.0},
	}))
	require.NoError(t, err)
	c.FlushChanges()

	// with cloning off, inserted is the stored document itself, so the update
	// is made on a copy to keep the stored before-state intact
	updated := inserted.Clone(CloneDeep)
	updated.Set("b.d", 4.0)
	_, err = c.Update(Documents{updated})
	require.NoError(t, err)

	changes := c.GetChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeUpdate, changes[0].Op)
	b, ok := changes[0].Obj["b"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4.0, b["d"])
	_, hasC := b["c"]
	assert.False(t, hasC)
}

// scenario 6: id binary search after 1000 inserts with every-third removed
func TestIDBinarySearchAtVolume(t *testing.T) {
	c, err := New("bulk")
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 1000; i++ {
		doc, err := c.Insert(mustDoc(t, map[string]any{"name": gofakeit.Name()}))
		require.NoError(t, err)
		id, _ := doc.ID()
		ids = append(ids, id)
	}

	var removed []int64
	for i, id := range ids {
		if i%3 == 0 {
			_, err := c.Remove(id)
			require.NoError(t, err)
			removed = append(removed, id)
		}
	}

	for i, id := range ids {
		got := c.Get(id)
		if i%3 == 0 {
			assert.Nil(t, got)
		} else {
			require.NotNil(t, got)
			gotID, _ := got.ID()
			assert.Equal(t, id, gotID)
		}
	}
}

func TestInvariantsAfterMutationSequence(t *testing.T) {
	c, err := New("things", WithIndices("n"), WithUnique("k"))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := c.Insert(mustDoc(t, map[string]any{"n": float64(i % 5), "k": float64(i)}))
		require.NoError(t, err)
	}
	for i := 0; i < 20; i += 2 {
		id := int64(i + 1)
		_, err := c.Remove(id)
		require.NoError(t, err)
	}

	assert.Equal(t, len(c.data), c.idIndex.len())
	for i, doc := range c.data {
		id, _ := doc.ID()
		assert.Equal(t, id, c.idIndex.ids[i])
	}
	for i := 1; i < c.idIndex.len(); i++ {
		assert.Greater(t, c.idIndex.ids[i], c.idIndex.ids[i-1])
	}
	assert.True(t, c.CheckIndex("n", CheckIndexOpts{}))
}
