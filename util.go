package forecaster

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/aouyang1/go-stockforecaster/timedataset"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	colorObserved  = "#1f77b4"
	colorPredicted = "#ff7f0e"
	colorOpen      = "#2ca02c"
)

// LineTSeries generates an echart multi-line chart for some arbitrary time/value combination. The input
// y is a slice of series that must have the same length as the input time slice. NaN values are
// left as gaps.
func LineTSeries(title string, seriesName []string, t []time.Time, y [][]float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)

	dates := make([]string, len(t))
	for i, ts := range t {
		dates[i] = ts.Format(time.DateOnly)
	}

	line = line.SetXAxis(dates)
	for i, series := range seriesName {
		lineData := make([]opts.LineData, 0, len(y[i]))
		for j := 0; j < len(y[i]); j++ {
			if math.IsNaN(y[i][j]) {
				lineData = append(lineData, opts.LineData{Value: "-"})
				continue
			}
			lineData = append(lineData, opts.LineData{Value: y[i][j]})
		}
		line = line.AddSeries(series, lineData)
	}
	return line
}

// LinePrice plots the closing and opening prices against the bar dates
func LinePrice(td *timedataset.TimeDataset) *charts.Line {
	return LineTSeries(
		fmt.Sprintf("%s Closing and Opening Price vs Date", td.Ticker),
		[]string{"Close", "Open"},
		td.T(),
		[][]float64{td.Close(), td.Open()},
	)
}

// LineIndicator plots the exponential moving average of the closing price against the bar dates
func LineIndicator(td *timedataset.TimeDataset, ema []float64, span int) *charts.Line {
	line := LineTSeries(
		fmt.Sprintf("%s Exponential Moving Average vs Date", td.Ticker),
		[]string{fmt.Sprintf("EWA_%d", span)},
		td.T(),
		[][]float64{ema},
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
	)
	return line
}

// LineForecast generates an echart line chart of the observed closing prices and the predicted
// prices on a trading day index axis. Observed values are drawn solid and predicted values dashed.
func LineForecast(res *Results) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title:    fmt.Sprintf("%s Predicted Close Price of next %d days", res.Ticker, res.Horizon()),
				Subtitle: "trading days since the first observation",
			},
		),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "trading day", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "price", Scale: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)

	line.AddSeries("observed", pointData(res.Observed),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorObserved, Type: "solid", Width: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorObserved}),
	)
	line.AddSeries("predicted", pointData(res.Predicted),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorPredicted, Type: "dashed", Width: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorPredicted}),
	)
	return line
}

func pointData(points []Point) []opts.LineData {
	data := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		data = append(data, opts.LineData{
			Name:  p.Date.Format(time.DateOnly),
			Value: []interface{}{p.Index, p.Value},
		})
	}
	return data
}

// Render writes the charts as a single html page
func Render(w io.Writer, charters ...components.Charter) error {
	page := components.NewPage()
	page.PageTitle = "stockcast"
	page.AddCharts(charters...)
	return page.Render(w)
}

// PlotForecast renders the forecast chart to an html file at path
func PlotForecast(path string, res *Results) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return Render(file, LineForecast(res))
}
