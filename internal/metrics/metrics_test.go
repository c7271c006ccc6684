package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	forecaster "github.com/aouyang1/go-stockforecaster"
	"github.com/aouyang1/go-stockforecaster/marketdata"
	"github.com/aouyang1/go-stockforecaster/models"
	"github.com/aouyang1/go-stockforecaster/timedataset"
)

func TestOutcome(t *testing.T) {
	testData := map[string]struct {
		err      error
		expected string
	}{
		"ok":                {nil, OutcomeOK},
		"bad query":         {fmt.Errorf("days two, %w", ErrInvalidRequest), OutcomeInvalidRequest},
		"horizon":           {fmt.Errorf("got horizon 0, %w", forecaster.ErrInvalidHorizon), OutcomeInvalidRequest},
		"ticker":            {forecaster.ErrInvalidTicker, OutcomeInvalidRequest},
		"lookback":          {forecaster.ErrInvalidLookback, OutcomeInvalidRequest},
		"insufficient data": {forecaster.ErrInsufficientData, OutcomeInsufficientData},
		"unavailable":       {marketdata.Unavailable("ZZZZ", errors.New("404")), OutcomeDataUnavailable},
		"canceled fetch":    {marketdata.Unavailable("SPY", context.Canceled), OutcomeCanceled},
		"deadline":          {context.DeadlineExceeded, OutcomeCanceled},
		"model fit":         {fmt.Errorf("%w, %w", forecaster.ErrModelFit, models.ErrNotConverged), OutcomeModelFit},
		"unknown":           {errors.New("boom"), OutcomeError},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, Outcome(td.err))
		})
	}
}

func TestObserveForecast(t *testing.T) {
	m := New()
	m.ObserveForecast(nil)
	m.ObserveForecast(nil)
	m.ObserveForecast(forecaster.ErrModelFit)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ForecastRequests.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForecastRequests.WithLabelValues(OutcomeModelFit)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ForecastRequests.WithLabelValues(OutcomeDataUnavailable)))
}

func TestRegressor(t *testing.T) {
	m := New()
	fitErr := errors.New("singular")
	calls := 0
	r := m.Regressor("linear", forecaster.RegressorFunc(func(x, y mat.Matrix) (models.Model, error) {
		calls++
		if calls > 1 {
			return nil, fitErr
		}
		return forecaster.OLSRegressor(models.NewDefaultOLSOptions()).Fit(x, y)
	}))

	x := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := mat.NewDense(3, 1, []float64{1, 3, 5})
	model, err := r.Fit(x, y)
	require.Nil(t, err)
	assert.InDelta(t, 1.0, model.Intercept(), 1e-9)

	_, err = r.Fit(x, y)
	assert.ErrorIs(t, err, fitErr)

	assert.Equal(t, 1, testutil.CollectAndCount(m.FitDuration))
	assert.Equal(t, 2, calls)
}

func TestSource(t *testing.T) {
	m := New()
	bars := timedataset.GenerateBars(
		[]time.Time{time.Date(2024, 6, 27, 0, 0, 0, 0, time.UTC)},
		[]float64{100},
	)
	series, err := timedataset.NewHistoricalSeries("SPY", bars)
	require.Nil(t, err)

	src := m.Source(marketdata.SourceFunc(func(ctx context.Context, ticker string, start, end time.Time) (*timedataset.TimeDataset, error) {
		if ticker == "ZZZZ" {
			return nil, marketdata.Unavailable(ticker, errors.New("not found"))
		}
		return series, nil
	}))

	td, err := src.Fetch(context.Background(), "SPY", time.Time{}, time.Time{})
	require.Nil(t, err)
	assert.Equal(t, series, td)

	_, err = src.Fetch(context.Background(), "ZZZZ", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, marketdata.ErrDataUnavailable)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchDuration))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveForecast(nil)
	m.WarmupRuns.WithLabelValues(OutcomeOK).Inc()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `stockcast_forecast_requests_total{outcome="ok"} 1`)
	assert.Contains(t, body, `stockcast_warmup_fetches_total{outcome="ok"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

type profileSource struct {
	marketdata.SourceFunc
}

func (profileSource) Profile(ctx context.Context, ticker string) (*marketdata.Profile, error) {
	if ticker == "ZZZZ" {
		return nil, marketdata.Unavailable(ticker, errors.New("not found"))
	}
	return &marketdata.Profile{Ticker: ticker, Name: "SPDR S&P 500 ETF Trust"}, nil
}

func TestSourceProfile(t *testing.T) {
	m := New()
	src := m.Source(profileSource{})

	p, err := src.Profile(context.Background(), "SPY")
	require.Nil(t, err)
	assert.Equal(t, "SPDR S&P 500 ETF Trust", p.Name)

	_, err = src.Profile(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, marketdata.ErrDataUnavailable)

	_, err = m.Source(marketdata.SourceFunc(nil)).Profile(context.Background(), "SPY")
	assert.ErrorIs(t, err, marketdata.ErrNoProfile)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchErrors))
}
