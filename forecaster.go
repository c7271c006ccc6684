// Package forecaster fits a regression on the closing prices of a ticker against their trading day
// index and extrapolates the next trading days
package forecaster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/aouyang1/go-stockforecaster/calendar"
	"github.com/aouyang1/go-stockforecaster/feature"
	"github.com/aouyang1/go-stockforecaster/marketdata"
	"github.com/aouyang1/go-stockforecaster/models"
	"github.com/aouyang1/go-stockforecaster/timedataset"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInsufficientData = feature.ErrInsufficientData
	ErrInvalidHorizon   = errors.New("horizon must be a positive number of trading days")
	ErrInvalidTicker    = errors.New("ticker must not be empty")
	ErrInvalidLookback  = errors.New("lookback must not be negative")
	ErrModelFit         = errors.New("unable to fit model")
)

// Forecaster fits a fresh model on every forecast. It only holds immutable options and is safe for
// concurrent use.
type Forecaster struct {
	opt       *Options
	regressor Regressor
	calendar  *calendar.Calendar
}

// New creates a new instance of a Forecaster using the provided options. If no options are provided
// a default is used.
func New(opt *Options) (*Forecaster, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize forecaster, %w", err)
	}
	return &Forecaster{
		opt:       opt,
		regressor: opt.Regressor,
		calendar:  opt.Calendar,
	}, nil
}

// Forecast fits the closing prices of the series against their index 0..N-1 and predicts the
// indices N..N+horizon-1. Bars with non-finite prices are dropped before indexing.
func (f *Forecaster) Forecast(td *timedataset.TimeDataset, horizon int) (*Results, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("got horizon %d, %w", horizon, ErrInvalidHorizon)
	}

	td = td.DropInvalid()
	idx, err := feature.NewIndex(td)
	if err != nil {
		return nil, err
	}
	closes := td.Close()
	y := mat.NewDense(len(closes), 1, closes)

	start := time.Now()
	model, err := f.regressor.Fit(idx.Matrix(), y)
	if err != nil {
		return nil, fmt.Errorf("%w, %w", ErrModelFit, err)
	}

	future, err := idx.Next(horizon)
	if err != nil {
		return nil, err
	}
	predicted, err := predict(model, future)
	if err != nil {
		return nil, fmt.Errorf("unable to predict horizon, %w, %w", ErrModelFit, err)
	}
	fitted, err := predict(model, idx)
	if err != nil {
		return nil, fmt.Errorf("unable to predict observed range, %w, %w", ErrModelFit, err)
	}

	scores, err := models.NewScores(fitted, closes)
	if err != nil {
		return nil, fmt.Errorf("unable to score fit, %w", err)
	}

	dates, err := f.calendar.NextTradingDays(td.EndTime(), horizon)
	if err != nil {
		return nil, err
	}

	res := &Results{
		Ticker:    td.Ticker,
		Model:     f.opt.Model,
		Observed:  make([]Point, 0, len(idx)),
		Predicted: make([]Point, 0, len(future)),
		Fitted:    fitted,
		Scores:    scores,
		Params:    params(model),
	}
	for i, bar := range td.Bars {
		res.Observed = append(res.Observed, Point{Index: i, Date: bar.Date, Value: bar.Close})
	}
	for i, v := range predicted {
		res.Predicted = append(res.Predicted, Point{Index: int(future[i]), Date: dates[i], Value: v})
	}

	slog.Debug("fit forecast",
		"ticker", td.Ticker,
		"observations", len(idx),
		"horizon", horizon,
		"model", f.opt.Model,
		"mse", scores.MSE,
		"duration", time.Since(start),
	)
	return res, nil
}

func predict(model models.Model, idx feature.Index) ([]float64, error) {
	res, err := model.Predict(idx.Matrix())
	if err != nil {
		return nil, err
	}
	if len(res) != len(idx) {
		return nil, fmt.Errorf("predicted %d values for %d indices, %w", len(res), len(idx), models.ErrFeatureLenMismatch)
	}
	for _, v := range res {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, models.ErrNonFinite
		}
	}
	return res, nil
}

// params reports the hyper-parameters chosen by a searching model
func params(model models.Model) map[string]float64 {
	searched, ok := model.(interface{ BestOptions() *models.SVROptions })
	if !ok {
		return nil
	}
	best := searched.BestOptions()
	if best == nil {
		return nil
	}
	return map[string]float64{
		"c":       best.C,
		"epsilon": best.Epsilon,
		"gamma":   best.Gamma,
	}
}

// Request is a single end to end forecast of a ticker
type Request struct {
	Ticker  string    `json:"ticker"`
	Horizon int       `json:"horizon"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`

	// Lookback trains on only the most recent bars when positive
	Lookback int `json:"lookback"`
}

// Validate checks the request without contacting the data source
func (r Request) Validate() error {
	if strings.TrimSpace(r.Ticker) == "" {
		return ErrInvalidTicker
	}
	if r.Horizon <= 0 {
		return fmt.Errorf("got horizon %d, %w", r.Horizon, ErrInvalidHorizon)
	}
	if r.Lookback < 0 {
		return fmt.Errorf("got lookback %d, %w", r.Lookback, ErrInvalidLookback)
	}
	return nil
}

// Run validates the request, fetches the history of the ticker and forecasts it. A failed fetch
// is returned as is and never reaches the model.
func (f *Forecaster) Run(ctx context.Context, src marketdata.Source, req Request) (*Results, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	td, err := src.Fetch(ctx, strings.TrimSpace(req.Ticker), req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if req.Lookback > 0 {
		td = td.Tail(req.Lookback)
	}
	return f.Forecast(td, req.Horizon)
}

// Run forecasts the request with the default options
func Run(ctx context.Context, src marketdata.Source, req Request) (*Results, error) {
	f, err := New(nil)
	if err != nil {
		return nil, err
	}
	return f.Run(ctx, src, req)
}
