package forecaster

import (
	"errors"
	"fmt"

	"github.com/aouyang1/go-stockforecaster/calendar"
	"github.com/aouyang1/go-stockforecaster/models"
)

const (
	ModelSVR    = "svr"
	ModelLinear = "linear"
	ModelCustom = "custom"
)

var ErrUnknownModel = errors.New("unknown model")

// Options configures how a Forecaster fits the observed closing prices
type Options struct {
	// Model selects the built in regressor, svr or linear. Ignored when Regressor is set.
	Model string `json:"model" yaml:"model"`

	SVROptions *models.SVRAutoOptions `json:"svr_options" yaml:"svr"`
	OLSOptions *models.OLSOptions     `json:"ols_options" yaml:"ols"`

	// Regressor overrides the built in model
	Regressor Regressor `json:"-" yaml:"-"`

	// Calendar labels predicted points with the projected trading dates. Defaults to the NYSE calendar.
	Calendar *calendar.Calendar `json:"-" yaml:"-"`
}

// NewDefaultOptions returns the grid searched support vector regression on the NYSE calendar
func NewDefaultOptions() *Options {
	return &Options{
		Model:      ModelSVR,
		SVROptions: models.NewDefaultSVRAutoOptions(),
		OLSOptions: models.NewDefaultOLSOptions(),
	}
}

// Validate fills in defaults and checks the model options
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	if o.Calendar == nil {
		o.Calendar = calendar.NewNYSE()
	}
	if o.Regressor != nil {
		if o.Model == "" {
			o.Model = ModelCustom
		}
		return o, nil
	}

	switch o.Model {
	case "", ModelSVR:
		o.Model = ModelSVR
		opt, err := o.SVROptions.Validate()
		if err != nil {
			return nil, fmt.Errorf("invalid svr options, %w", err)
		}
		o.SVROptions = opt
		o.Regressor = SVRRegressor(opt)
	case ModelLinear:
		opt, err := o.OLSOptions.Validate()
		if err != nil {
			return nil, fmt.Errorf("invalid ols options, %w", err)
		}
		o.OLSOptions = opt
		o.Regressor = OLSRegressor(opt)
	default:
		return nil, fmt.Errorf("model %q, %w", o.Model, ErrUnknownModel)
	}
	return o, nil
}
