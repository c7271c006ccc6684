// Package timedataset holds the historical daily price series a forecast is trained on.
package timedataset

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNoTrainingData = errors.New("no training data")
	ErrNonMonotonic   = errors.New("bar dates are not strictly increasing")
	ErrNoTicker       = errors.New("no ticker")
)

// Bar is a single trading day observation for a ticker.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Valid returns true if all prices of the bar are finite numbers
func (b Bar) Valid() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// TimeDataset represents the historical series of one ticker ordered by date ascending.
// Dates are strictly increasing and the series is never empty once constructed.
type TimeDataset struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// NewHistoricalSeries returns an instance of a TimeDataset given the ticker and its bars. The
// input bars are copied.
func NewHistoricalSeries(ticker string, bars []Bar) (*TimeDataset, error) {
	if ticker == "" {
		return nil, ErrNoTicker
	}
	if len(bars) == 0 {
		return nil, ErrNoTrainingData
	}

	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return nil, fmt.Errorf("non-monotonic at %d, %w", i, ErrNonMonotonic)
		}
	}

	b := make([]Bar, len(bars))
	copy(b, bars)
	td := &TimeDataset{
		Ticker: ticker,
		Bars:   b,
	}
	return td, nil
}

// Len returns the number of bars in the series. A nil series has a length of 0.
func (td *TimeDataset) Len() int {
	if td == nil {
		return 0
	}
	return len(td.Bars)
}

// T returns the bar dates
func (td *TimeDataset) T() []time.Time {
	if td == nil {
		return nil
	}
	t := make([]time.Time, len(td.Bars))
	for i, b := range td.Bars {
		t[i] = b.Date
	}
	return t
}

// Close returns the closing prices
func (td *TimeDataset) Close() []float64 {
	return td.column(func(b Bar) float64 { return b.Close })
}

// Open returns the opening prices
func (td *TimeDataset) Open() []float64 {
	return td.column(func(b Bar) float64 { return b.Open })
}

// High returns the daily highs
func (td *TimeDataset) High() []float64 {
	return td.column(func(b Bar) float64 { return b.High })
}

func (td *TimeDataset) column(get func(Bar) float64) []float64 {
	if td == nil {
		return nil
	}
	y := make([]float64, len(td.Bars))
	for i, b := range td.Bars {
		y[i] = get(b)
	}
	return y
}

// StartTime returns the date of the first bar or the zero time if there are no bars
func (td *TimeDataset) StartTime() time.Time {
	var startTime time.Time
	if td.Len() < 1 {
		return startTime
	}
	return td.Bars[0].Date
}

// EndTime returns the date of the last bar or the zero time if there are no bars
func (td *TimeDataset) EndTime() time.Time {
	var endTime time.Time
	if td.Len() < 1 {
		return endTime
	}
	return td.Bars[len(td.Bars)-1].Date
}

// Tail returns a copy of the series limited to the last n bars
func (td *TimeDataset) Tail(n int) *TimeDataset {
	if td == nil {
		return nil
	}
	if n < 0 {
		n = 0
	}
	start := len(td.Bars) - n
	if start < 0 {
		start = 0
	}
	b := make([]Bar, len(td.Bars)-start)
	copy(b, td.Bars[start:])
	return &TimeDataset{
		Ticker: td.Ticker,
		Bars:   b,
	}
}

// Copy returns a deep copy of the series
func (td *TimeDataset) Copy() *TimeDataset {
	if td == nil {
		return nil
	}
	return td.Tail(len(td.Bars))
}

// DropInvalid returns a copy of the series without bars that carry NaN or infinite prices
func (td *TimeDataset) DropInvalid() *TimeDataset {
	if td == nil {
		return nil
	}

	b := make([]Bar, 0, len(td.Bars))
	for _, bar := range td.Bars {
		if !bar.Valid() {
			continue
		}
		b = append(b, bar)
	}
	return &TimeDataset{
		Ticker: td.Ticker,
		Bars:   b,
	}
}
