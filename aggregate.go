package nanocol

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// extract returns every raw value stored at field across data, including nils
func extract(data Documents, field string) []any {
	return lo.Map(data, func(doc *Document, _ int) any {
		return doc.Get(field)
	})
}

// extractNumerical coerces extract's values to float64 via parse-to-float,
// dropping anything non-finite (nil, non-numeric strings, NaN, +/-Inf).
func extractNumerical(data Documents, field string) []float64 {
	var out []float64
	for _, v := range extract(data, field) {
		if v == nil {
			continue
		}
		f, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// aggMin returns the smallest numerical value of field, or 0 over an empty projection
func aggMin(data Documents, field string) float64 {
	nums := extractNumerical(data, field)
	if len(nums) == 0 {
		return 0
	}
	return lo.Min(nums)
}

// aggMax returns the largest numerical value of field, or 0 over an empty projection
func aggMax(data Documents, field string) float64 {
	nums := extractNumerical(data, field)
	if len(nums) == 0 {
		return 0
	}
	return lo.Max(nums)
}

// aggAvg returns the arithmetic mean of field's numerical values
func aggAvg(data Documents, field string) float64 {
	nums := extractNumerical(data, field)
	if len(nums) == 0 {
		return 0
	}
	return lo.SumBy(nums, func(n float64) float64 { return n }) / float64(len(nums))
}

// aggStdDev returns the population standard deviation of field's numerical values
func aggStdDev(data Documents, field string) float64 {
	nums := extractNumerical(data, field)
	if len(nums) == 0 {
		return 0
	}
	mean := lo.SumBy(nums, func(n float64) float64 { return n }) / float64(len(nums))
	var sumSq float64
	for _, n := range nums {
		d := n - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(nums)))
}

// aggMode returns the numerical value with the highest occurrence count. Per
// the spec's resolved Open Question, mode over an empty field returns nil
// rather than 0, since 0 is a plausible real value and nil unambiguously
// signals "no data".
func aggMode(data Documents, field string) any {
	nums := extractNumerical(data, field)
	if len(nums) == 0 {
		return nil
	}
	counts := map[float64]int{}
	for _, n := range nums {
		counts[n]++
	}
	var (
		best      float64
		bestCount int
	)
	keys := make([]float64, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

// aggMedian returns the middle value, or the mean of the two middle values for
// an even-length projection
func aggMedian(data Documents, field string) float64 {
	nums := extractNumerical(data, field)
	if len(nums) == 0 {
		return 0
	}
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// aggMinRecord returns the document holding the smallest numerical value of field
func aggMinRecord(data Documents, field string) *Document {
	return extremeRecord(data, field, true)
}

// aggMaxRecord returns the document holding the largest numerical value of field
func aggMaxRecord(data Documents, field string) *Document {
	return extremeRecord(data, field, false)
}

func extremeRecord(data Documents, field string, wantMin bool) *Document {
	var (
		best      *Document
		bestValue float64
		found     bool
	)
	for _, doc := range data {
		v := doc.Get(field)
		if v == nil {
			continue
		}
		f, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if !found || (wantMin && f < bestValue) || (!wantMin && f > bestValue) {
			best, bestValue, found = doc, f, true
		}
	}
	return best
}
