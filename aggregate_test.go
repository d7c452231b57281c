package nanocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docsWithField(t *testing.T, field string, values ...any) Documents {
	t.Helper()
	var docs Documents
	for _, v := range values {
		d := NewDocument()
		require.NoError(t, d.Set(field, v))
		docs = append(docs, d)
	}
	return docs
}

func TestAggregations(t *testing.T) {
	docs := docsWithField(t, "age", 10.0, 20.0, 20.0, 40.0)

	t.Run("extract", func(t *testing.T) {
		assert.Equal(t, []any{10.0, 20.0, 20.0, 40.0}, extract(docs, "age"))
	})
	t.Run("extractNumerical drops non-finite", func(t *testing.T) {
		mixed := docsWithField(t, "age", 10.0, "not a number", nil, 20.0)
		assert.Equal(t, []float64{10, 20}, extractNumerical(mixed, "age"))
	})
	t.Run("min", func(t *testing.T) {
		assert.Equal(t, 10.0, aggMin(docs, "age"))
	})
	t.Run("max", func(t *testing.T) {
		assert.Equal(t, 40.0, aggMax(docs, "age"))
	})
	t.Run("avg", func(t *testing.T) {
		assert.InDelta(t, 22.5, aggAvg(docs, "age"), 0.0001)
	})
	t.Run("median odd", func(t *testing.T) {
		assert.Equal(t, 20.0, aggMedian(docsWithField(t, "age", 10.0, 20.0, 30.0), "age"))
	})
	t.Run("median even", func(t *testing.T) {
		assert.Equal(t, 15.0, aggMedian(docsWithField(t, "age", 10.0, 20.0), "age"))
	})
	t.Run("mode", func(t *testing.T) {
		assert.Equal(t, 20.0, aggMode(docs, "age"))
	})
	t.Run("mode over empty field is nil", func(t *testing.T) {
		assert.Nil(t, aggMode(Documents{}, "age"))
	})
	t.Run("stdDev", func(t *testing.T) {
		assert.Greater(t, aggStdDev(docs, "age"), 0.0)
	})
	t.Run("minRecord/maxRecord", func(t *testing.T) {
		minDoc := aggMinRecord(docs, "age")
		maxDoc := aggMaxRecord(docs, "age")
		require.NotNil(t, minDoc)
		require.NotNil(t, maxDoc)
		assert.Equal(t, 10.0, minDoc.Get("age"))
		assert.Equal(t, 40.0, maxDoc.Get("age"))
	})
}
