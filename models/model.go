// Package models is a collection of regression fitting implementations to be used in the
// forecaster
package models

import (
	"gonum.org/v1/gonum/mat"
)

// Model is a regression fit on a design matrix x with one row per observation and a single
// column target matrix y.
type Model interface {
	Fit(x, y mat.Matrix) error
	Predict(x mat.Matrix) ([]float64, error)
	Score(x, y mat.Matrix) (float64, error)
	Intercept() float64
	Coef() []float64
}
