// Package indicator computes technical indicators over daily price series
package indicator

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const DefaultSpan = 20

var (
	ErrInvalidSpan       = errors.New("span must be at least 1")
	ErrInvalidPercentile = errors.New("percentiles must satisfy 0 <= lower <= upper <= 1")
)

// EMA returns the exponentially weighted moving average with smoothing factor alpha = 2/(span+1).
// The first value seeds the average and each following value is
//
//	ema[i] = alpha*values[i] + (1-alpha)*ema[i-1]
//
// NaN values carry the previous average forward.
func EMA(values []float64, span int) ([]float64, error) {
	if span < 1 {
		return nil, fmt.Errorf("got span %d, %w", span, ErrInvalidSpan)
	}

	alpha := 2.0 / (float64(span) + 1.0)
	res := make([]float64, len(values))
	prev := math.NaN()
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			res[i] = prev
			continue
		case math.IsNaN(prev):
			prev = v
		default:
			prev = alpha*v + (1-alpha)*prev
		}
		res[i] = prev
	}
	return res, nil
}

// Returns computes the fractional change between consecutive values. The first element has no
// prior value and is 0.
func Returns(values []float64) []float64 {
	res := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		res[i] = values[i]/values[i-1] - 1.0
	}
	return res
}

// Outliers returns the indices of values beyond the Tukey fences built from the lower and upper
// percentiles widened by tukeyFactor times their range
func Outliers(values []float64, lowerPerc, upperPerc, tukeyFactor float64) ([]int, error) {
	if lowerPerc < 0 || upperPerc > 1 || lowerPerc > upperPerc {
		return nil, ErrInvalidPercentile
	}
	if len(values) == 0 {
		return nil, nil
	}
	tukeyFactor = math.Max(tukeyFactor, 0.0)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	last := len(sorted) - 1
	lowerIdx := int(math.Floor(float64(last) * lowerPerc))
	upperIdx := int(math.Ceil(float64(last) * upperPerc))

	lower := sorted[lowerIdx]
	upper := sorted[upperIdx]
	innerRange := upper - lower
	lower -= innerRange * tukeyFactor
	upper += innerRange * tukeyFactor

	var idx []int
	for i, v := range values {
		if v > upper || v < lower {
			idx = append(idx, i)
		}
	}
	return idx, nil
}
