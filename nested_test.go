package nanocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNestedProperty(t *testing.T) {
	t.Run("resolve scalar", func(t *testing.T) {
		doc, err := NewDocumentFrom(map[string]any{"address": map[string]any{"city": "nyc"}})
		require.NoError(t, err)
		p := newNestedProperty("city", []string{"address", "city"})
		assert.Equal(t, "nyc", p.resolve(doc))
	})

	t.Run("resolve flattens across intermediate lists", func(t *testing.T) {
		doc, err := NewDocumentFrom(map[string]any{
			"orders": []any{
				map[string]any{"sku": "a"},
				map[string]any{"sku": "b"},
			},
		})
		require.NoError(t, err)
		p := newNestedProperty("skus", []string{"orders", "sku"})
		assert.ElementsMatch(t, []any{"a", "b"}, p.resolve(doc))
	})

	t.Run("collection exposes registered accessors", func(t *testing.T) {
		c, err := New("things", WithNestedProperty("city", "address", "city"))
		require.NoError(t, err)
		doc, err := c.Insert(mustDoc(t, map[string]any{"address": map[string]any{"city": "nyc"}}))
		require.NoError(t, err)

		v, ok := c.NestedValue("city", doc)
		require.True(t, ok)
		assert.Equal(t, "nyc", v)

		_, ok = c.NestedValue("missing", doc)
		assert.False(t, ok)

		assert.Equal(t, map[string]any{"city": "nyc"}, c.NestedValues(doc))
	})

	t.Run("binary index can be declared over a nested property", func(t *testing.T) {
		c, err := New("things",
			WithNestedProperty("city", "address", "city"),
			WithIndices("city"),
		)
		require.NoError(t, err)
		_, err = c.Insert(mustDoc(t, map[string]any{"address": map[string]any{"city": "nyc"}}))
		require.NoError(t, err)
		_, err = c.Insert(mustDoc(t, map[string]any{"address": map[string]any{"city": "sf"}}))
		require.NoError(t, err)

		matches, err := c.CalculateRange("city", RangeEq, "sf", nil)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		city, _ := c.NestedValue("city", matches[0])
		assert.Equal(t, "sf", city)
	})
}
