package forecaster

import (
	"github.com/aouyang1/go-stockforecaster/models"
	"gonum.org/v1/gonum/mat"
)

// Regressor returns a freshly fit model for the design matrix x and single column target y. Every
// call must return a new model so concurrent forecasts never share state.
type Regressor interface {
	Fit(x, y mat.Matrix) (models.Model, error)
}

// RegressorFunc adapts a function to a Regressor
type RegressorFunc func(x, y mat.Matrix) (models.Model, error)

// Fit calls f
func (f RegressorFunc) Fit(x, y mat.Matrix) (models.Model, error) {
	return f(x, y)
}

// SVRRegressor fits a support vector regression with hyper-parameters chosen on a chronological
// holdout
func SVRRegressor(opt *models.SVRAutoOptions) Regressor {
	return RegressorFunc(func(x, y mat.Matrix) (models.Model, error) {
		// each fit gets its own copy of the grid options
		o := *opt
		model, err := models.NewSVRAutoRegression(&o)
		if err != nil {
			return nil, err
		}
		if err := model.Fit(x, y); err != nil {
			return nil, err
		}
		return model, nil
	})
}

// OLSRegressor fits a straight trend line with ordinary least squares
func OLSRegressor(opt *models.OLSOptions) Regressor {
	return RegressorFunc(func(x, y mat.Matrix) (models.Model, error) {
		o := *opt
		model, err := models.NewOLSRegression(&o)
		if err != nil {
			return nil, err
		}
		if err := model.Fit(x, y); err != nil {
			return nil, err
		}
		return model, nil
	})
}
