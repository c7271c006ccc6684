package forecaster

import (
	"time"

	"github.com/aouyang1/go-stockforecaster/models"
)

// Point is one value of a series positioned by its trading day index. Date is the bar date for
// observed points and the projected trading date for predicted points.
type Point struct {
	Index int       `json:"index"`
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Results holds the observed closing prices with indices 0..N-1 and the predicted prices with
// indices N..N+H-1
type Results struct {
	Ticker    string  `json:"ticker"`
	Model     string  `json:"model"`
	Observed  []Point `json:"observed"`
	Predicted []Point `json:"predicted"`

	// Fitted is the in-sample prediction at every observed index
	Fitted []float64 `json:"fitted"`

	// Scores compares the fitted values against the observed closes
	Scores *models.Scores `json:"scores"`

	// Params are the selected hyper-parameters when the model searched for them
	Params map[string]float64 `json:"params,omitempty"`
}

// Horizon returns the number of predicted points
func (r *Results) Horizon() int {
	if r == nil {
		return 0
	}
	return len(r.Predicted)
}

// Values returns the values of the points
func Values(points []Point) []float64 {
	v := make([]float64, len(points))
	for i, p := range points {
		v[i] = p.Value
	}
	return v
}

// Indices returns the trading day indices of the points
func Indices(points []Point) []int {
	idx := make([]int, len(points))
	for i, p := range points {
		idx[i] = p.Index
	}
	return idx
}
