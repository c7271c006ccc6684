// Package feature builds the regression inputs of a forecast from a historical series
package feature

import (
	"errors"
	"fmt"

	"github.com/aouyang1/go-stockforecaster/timedataset"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInsufficientData = errors.New("insufficient historical data to build features")
	ErrNegativeLength   = errors.New("negative feature length")
)

// Index is the ordinal position of each trading day within a series. Element i is i. It is
// a proxy for elapsed trading time so future index N+k reads as "k+1 trading days after the last
// observation" rather than a calendar offset.
type Index []float64

// NewIndex returns the feature index of a historical series. At least one bar is required.
func NewIndex(td *timedataset.TimeDataset) (Index, error) {
	if td.Len() == 0 {
		return nil, ErrInsufficientData
	}
	return Range(0, td.Len())
}

// Range returns n consecutive indices beginning at start
func Range(start, n int) (Index, error) {
	if n < 0 {
		return nil, fmt.Errorf("requested %d indices, %w", n, ErrNegativeLength)
	}
	idx := make(Index, n)
	for i := 0; i < n; i++ {
		idx[i] = float64(start + i)
	}
	return idx, nil
}

// Next returns the n indices immediately following the last index
func (idx Index) Next(n int) (Index, error) {
	return Range(len(idx), n)
}

// Ints returns the indices as integers
func (idx Index) Ints() []int {
	res := make([]int, len(idx))
	for i, v := range idx {
		res[i] = int(v)
	}
	return res
}

// Matrix returns the index as a single column design matrix. An empty index returns nil since
// gonum does not allow zero sized matrices.
func (idx Index) Matrix() *mat.Dense {
	if len(idx) == 0 {
		return nil
	}
	data := make([]float64, len(idx))
	copy(data, idx)
	return mat.NewDense(len(idx), 1, data)
}
