package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testModel(t *testing.T, model Model, x, y mat.Matrix, intercept float64, coef []float64, tol float64) {
	err := model.Fit(x, y)
	require.Nil(t, err)

	assert.InDelta(t, intercept, model.Intercept(), tol)

	c := model.Coef()
	assert.InDeltaSlice(t, coef, c, tol)

	r2, err := model.Score(x, y)
	require.Nil(t, err)
	assert.InDelta(t, 1.0, r2, tol)
}

// generateIndexData returns an ordinal index feature with a noiseless wave on a trend as the target
func generateIndexData(nObs int) (mat.Matrix, mat.Matrix) {
	idx := make([]float64, nObs)
	target := make([]float64, nObs)
	for i := 0; i < nObs; i++ {
		idx[i] = float64(i)
		target[i] = 100.0 + 0.1*float64(i) + 2.0*math.Sin(2.0*math.Pi*float64(i)/20.0)
	}
	return mat.NewDense(nObs, 1, idx), mat.NewDense(nObs, 1, target)
}
