package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrResLenMismatch = errors.New("predicted and actual have different lengths")

// Scores summarizes how closely a model's in-sample predictions track the observed prices. Pairs
// with a non-finite value on either side are left out of every score.
type Scores struct {
	MSE  float64 `json:"mean_squared_error"`
	MAPE float64 `json:"mean_average_percent_error"`
	R2   float64 `json:"r_squared"`
}

// NewScores scores the fitted values of a forecast against the closes they were trained on
func NewScores(predicted, actual []float64) (*Scores, error) {
	p, a, err := finitePairs(predicted, actual)
	if err != nil {
		return nil, err
	}
	return &Scores{
		MSE:  mse(p, a),
		MAPE: mape(p, a),
		R2:   rSquared(p, a),
	}, nil
}

// MSE is the mean squared error used to rank hyper-parameter candidates on the holdout. An empty
// holdout scores 0.
func MSE(predicted, actual []float64) (float64, error) {
	p, a, err := finitePairs(predicted, actual)
	if err != nil {
		return 0, err
	}
	return mse(p, a), nil
}

func finitePairs(predicted, actual []float64) ([]float64, []float64, error) {
	if len(predicted) != len(actual) {
		return nil, nil, fmt.Errorf("expected %d, but got %d, %w", len(actual), len(predicted), ErrResLenMismatch)
	}
	p := make([]float64, 0, len(predicted))
	a := make([]float64, 0, len(actual))
	for i := range actual {
		if !allFinite([]float64{predicted[i], actual[i]}) {
			continue
		}
		p = append(p, predicted[i])
		a = append(a, actual[i])
	}
	return p, a, nil
}

func mse(p, a []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	d := floats.Distance(p, a, 2)
	return d * d / float64(len(a))
}

// mape skips zero prices
func mape(p, a []float64) float64 {
	var sum float64
	var n int
	for i := range a {
		if a[i] == 0 {
			continue
		}
		sum += math.Abs((a[i] - p[i]) / a[i])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// rSquared is 1 for a perfect or empty fit and 0 when constant prices are missed
func rSquared(p, a []float64) float64 {
	if len(a) == 0 {
		return 1
	}
	r2 := stat.RSquaredFrom(p, a, nil)
	switch {
	case math.IsNaN(r2):
		return 1
	case math.IsInf(r2, 0):
		return 0
	}
	return r2
}
