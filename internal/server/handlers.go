package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/shopspring/decimal"

	forecaster "github.com/aouyang1/go-stockforecaster"
	"github.com/aouyang1/go-stockforecaster/indicator"
	"github.com/aouyang1/go-stockforecaster/internal/metrics"
	"github.com/aouyang1/go-stockforecaster/marketdata"
	"github.com/aouyang1/go-stockforecaster/timedataset"
)

const (
	tableRows = 50

	// return outliers are flagged beyond 1.5 interquartile ranges
	outlierLower = 0.25
	outlierUpper = 0.75
	outlierTukey = 1.5
)

var ErrBadRequest = fmt.Errorf("bad request, %w", metrics.ErrInvalidRequest)

// Row is one bar of the price table with prices rounded to cents
type Row struct {
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// DatedValue is a value of a daily series
type DatedValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// PricesResponse carries the close and open series, the most recent bars as a table and the dates
// of unusual daily moves
type PricesResponse struct {
	Ticker   string       `json:"ticker"`
	Close    []DatedValue `json:"close"`
	Open     []DatedValue `json:"open"`
	Table    []Row        `json:"table"`
	Outliers []string     `json:"outliers"`
}

// IndicatorResponse carries the exponential moving average of the closing price
type IndicatorResponse struct {
	Ticker string       `json:"ticker"`
	Name   string       `json:"name"`
	Span   int          `json:"span"`
	Values []DatedValue `json:"values"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// statusOf maps an error to its http status
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, forecaster.ErrInvalidHorizon),
		errors.Is(err, forecaster.ErrInvalidTicker),
		errors.Is(err, forecaster.ErrInvalidLookback),
		errors.Is(err, indicator.ErrInvalidSpan):
		return http.StatusBadRequest
	case errors.Is(err, forecaster.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, marketdata.ErrNoProfile):
		return http.StatusNotImplemented
	case errors.Is(err, marketdata.ErrDataUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), errorResponse{
		Error:     err.Error(),
		RequestID: c.GetString(requestIDKey),
	})
}

// window parses the optional start and end query dates
func window(c *gin.Context) (time.Time, time.Time, error) {
	var start, end time.Time
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"start", &start}, {"end", &end}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return start, end, fmt.Errorf("%s %q is not a YYYY-MM-DD date, %w", p.name, v, ErrBadRequest)
		}
		*p.dst = t
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return start, end, fmt.Errorf("start is after end, %w", ErrBadRequest)
	}
	return start, end, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer, %w", name, v, ErrBadRequest)
	}
	return n, nil
}

func (s *Server) fetch(c *gin.Context) (*timedataset.TimeDataset, error) {
	start, end, err := window(c)
	if err != nil {
		return nil, err
	}
	return s.src.Fetch(c.Request.Context(), c.Param("ticker"), start, end)
}

func (s *Server) prices(c *gin.Context) {
	td, err := s.fetch(c)
	if err != nil {
		abort(c, err)
		return
	}

	res := PricesResponse{
		Ticker:   td.Ticker,
		Close:    dated(td.T(), td.Close()),
		Open:     dated(td.T(), td.Open()),
		Table:    table(td.Tail(tableRows)),
		Outliers: []string{},
	}

	idx, err := indicator.Outliers(indicator.Returns(td.Close()), outlierLower, outlierUpper, outlierTukey)
	if err != nil {
		abort(c, err)
		return
	}
	for _, i := range idx {
		res.Outliers = append(res.Outliers, td.Bars[i].Date.Format(time.DateOnly))
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) pricesChart(c *gin.Context) {
	td, err := s.fetch(c)
	if err != nil {
		abort(c, err)
		return
	}
	renderChart(c, forecaster.LinePrice(td))
}

// ema fetches the series and computes the moving average of the span query
func (s *Server) ema(c *gin.Context) (*timedataset.TimeDataset, int, []float64, error) {
	span, err := intQuery(c, "span", indicator.DefaultSpan)
	if err != nil {
		return nil, 0, nil, err
	}
	if span < 1 {
		return nil, 0, nil, fmt.Errorf("got span %d, %w", span, indicator.ErrInvalidSpan)
	}

	td, err := s.fetch(c)
	if err != nil {
		return nil, 0, nil, err
	}
	ema, err := indicator.EMA(td.Close(), span)
	if err != nil {
		return nil, 0, nil, err
	}
	return td, span, ema, nil
}

func (s *Server) indicators(c *gin.Context) {
	td, span, ema, err := s.ema(c)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, IndicatorResponse{
		Ticker: td.Ticker,
		Name:   fmt.Sprintf("EWA_%d", span),
		Span:   span,
		Values: dated(td.T(), ema),
	})
}

func (s *Server) indicatorsChart(c *gin.Context) {
	td, span, ema, err := s.ema(c)
	if err != nil {
		abort(c, err)
		return
	}
	renderChart(c, forecaster.LineIndicator(td, ema, span))
}

func (s *Server) profile(c *gin.Context) {
	p, err := marketdata.LookupProfile(c.Request.Context(), s.src, c.Param("ticker"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// runForecast parses the forecast query and runs it, recording the outcome
func (s *Server) runForecast(c *gin.Context) (*forecaster.Results, error) {
	res, err := s.parseAndRun(c)
	if s.metrics != nil {
		s.metrics.ObserveForecast(err)
	}
	return res, err
}

func (s *Server) parseAndRun(c *gin.Context) (*forecaster.Results, error) {
	days, err := intQuery(c, "days", s.opt.DefaultDays)
	if err != nil {
		return nil, err
	}
	if days > s.opt.MaxDays {
		return nil, fmt.Errorf("days %d exceeds the maximum of %d, %w", days, s.opt.MaxDays, ErrBadRequest)
	}
	start, end, err := window(c)
	if err != nil {
		return nil, err
	}
	return s.forecaster.Run(c.Request.Context(), s.src, forecaster.Request{
		Ticker:   c.Param("ticker"),
		Horizon:  days,
		Start:    start,
		End:      end,
		Lookback: s.opt.Lookback,
	})
}

func (s *Server) forecast(c *gin.Context) {
	res, err := s.runForecast(c)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) forecastChart(c *gin.Context) {
	res, err := s.runForecast(c)
	if err != nil {
		abort(c, err)
		return
	}
	renderChart(c, forecaster.LineForecast(res))
}

func renderChart(c *gin.Context, charter components.Charter) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := forecaster.Render(c.Writer, charter); err != nil {
		_ = c.Error(err)
	}
}

func dated(t []time.Time, v []float64) []DatedValue {
	res := make([]DatedValue, 0, len(v))
	for i := range v {
		res = append(res, DatedValue{Date: t[i].Format(time.DateOnly), Value: v[i]})
	}
	return res
}

func table(td *timedataset.TimeDataset) []Row {
	rows := make([]Row, 0, td.Len())
	for _, b := range td.Bars {
		rows = append(rows, Row{
			Date:   b.Date.Format(time.DateOnly),
			Open:   decimal.NewFromFloat(b.Open).Round(2),
			High:   decimal.NewFromFloat(b.High).Round(2),
			Low:    decimal.NewFromFloat(b.Low).Round(2),
			Close:  decimal.NewFromFloat(b.Close).Round(2),
			Volume: b.Volume,
		})
	}
	return rows
}
