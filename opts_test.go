package nanocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpts(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o := defaultOptions()
		assert.True(t, o.adaptiveBinaryIndices)
		assert.False(t, o.asyncListeners)
		assert.Equal(t, CloneDeep, o.cloneMethod)
		assert.Less(t, o.ttlAge, time.Duration(0))
	})
	t.Run("disableMeta rejects changes api", func(t *testing.T) {
		_, err := New("c", WithDisableMeta(true), WithChangesAPI(true))
		require.Error(t, err)
	})
	t.Run("disableMeta rejects ttl", func(t *testing.T) {
		_, err := New("c", WithDisableMeta(true), WithTTL(time.Second, time.Second))
		require.Error(t, err)
	})
	t.Run("changes api disabled forces delta off", func(t *testing.T) {
		c, err := New("c", WithDeltaChangesAPI(true))
		require.NoError(t, err)
		assert.False(t, c.opts.deltaChangesAPI)
	})
	t.Run("unique and indices wire up", func(t *testing.T) {
		c, err := New("c", WithUnique("email"), WithIndices("age"))
		require.NoError(t, err)
		assert.Contains(t, c.uniqueIndices, "email")
		assert.Contains(t, c.binaryIndices, "age")
	})
}
