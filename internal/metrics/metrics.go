// Package metrics exposes Prometheus metrics of the forecast service on its own registry
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gonum.org/v1/gonum/mat"

	forecaster "github.com/aouyang1/go-stockforecaster"
	"github.com/aouyang1/go-stockforecaster/marketdata"
	"github.com/aouyang1/go-stockforecaster/models"
	"github.com/aouyang1/go-stockforecaster/timedataset"
)

const namespace = "stockcast"

// forecast outcomes
const (
	OutcomeOK               = "ok"
	OutcomeInvalidRequest   = "invalid_request"
	OutcomeInsufficientData = "insufficient_data"
	OutcomeDataUnavailable  = "data_unavailable"
	OutcomeModelFit         = "model_fit"
	OutcomeCanceled         = "canceled"
	OutcomeError            = "error"
)

// ErrInvalidRequest marks malformed requests rejected before they reach the forecaster
var ErrInvalidRequest = errors.New("invalid request")

// Metrics holds the Prometheus collectors of the service
type Metrics struct {
	registry *prometheus.Registry

	ForecastRequests *prometheus.CounterVec // labels: outcome
	FitDuration      *prometheus.HistogramVec
	FetchDuration    prometheus.Histogram
	FetchErrors      prometheus.Counter
	WarmupRuns       *prometheus.CounterVec // labels: outcome
}

// New registers and returns all metrics on a fresh registry along with the go and process
// collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_requests_total",
			Help:      "Forecast requests by outcome",
		}, []string{"outcome"}),
		FitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Model fit latency including the hyper-parameter search",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"model"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Market data fetch latency",
			Buckets:   prometheus.DefBuckets,
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Market data fetches that failed",
		}),
		WarmupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warmup_fetches_total",
			Help:      "Watchlist prefetches by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.ForecastRequests,
		m.FitDuration,
		m.FetchDuration,
		m.FetchErrors,
		m.WarmupRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry every metric is registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome classifies a forecast error into a low cardinality label
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, forecaster.ErrInvalidHorizon),
		errors.Is(err, forecaster.ErrInvalidTicker),
		errors.Is(err, forecaster.ErrInvalidLookback):
		return OutcomeInvalidRequest
	case errors.Is(err, forecaster.ErrInsufficientData):
		return OutcomeInsufficientData
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, marketdata.ErrDataUnavailable):
		return OutcomeDataUnavailable
	case errors.Is(err, forecaster.ErrModelFit):
		return OutcomeModelFit
	default:
		return OutcomeError
	}
}

// ObserveForecast counts a finished forecast request
func (m *Metrics) ObserveForecast(err error) {
	m.ForecastRequests.WithLabelValues(Outcome(err)).Inc()
}

// Regressor times every fit of r under the model label
func (m *Metrics) Regressor(model string, r forecaster.Regressor) forecaster.Regressor {
	hist := m.FitDuration.WithLabelValues(model)
	return forecaster.RegressorFunc(func(x, y mat.Matrix) (models.Model, error) {
		start := time.Now()
		defer func() { hist.Observe(time.Since(start).Seconds()) }()
		return r.Fit(x, y)
	})
}

// Source instruments a market data source with fetch latency and error counts
type Source struct {
	inner marketdata.Source
	m     *Metrics
}

var (
	_ marketdata.Source        = (*Source)(nil)
	_ marketdata.ProfileSource = (*Source)(nil)
)

func (m *Metrics) Source(inner marketdata.Source) *Source {
	return &Source{inner: inner, m: m}
}

func (s *Source) Fetch(ctx context.Context, ticker string, start, end time.Time) (*timedataset.TimeDataset, error) {
	t := time.Now()
	td, err := s.inner.Fetch(ctx, ticker, start, end)
	s.m.FetchDuration.Observe(time.Since(t).Seconds())
	if err != nil {
		s.m.FetchErrors.Inc()
	}
	return td, err
}

// Profile looks up the company profile through the inner source, timed like a fetch
func (s *Source) Profile(ctx context.Context, ticker string) (*marketdata.Profile, error) {
	t := time.Now()
	p, err := marketdata.LookupProfile(ctx, s.inner, ticker)
	s.m.FetchDuration.Observe(time.Since(t).Seconds())
	if err != nil {
		s.m.FetchErrors.Inc()
	}
	return p, err
}
