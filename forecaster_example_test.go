package forecaster

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aouyang1/go-stockforecaster/timedataset"
)

func exampleSeries() *timedataset.TimeDataset {
	nowFunc := func() time.Time { return time.Date(2024, 6, 27, 16, 0, 0, 0, time.UTC) }
	closes := []float64{100, 102, 101, 105}
	td, err := timedataset.NewHistoricalSeries("SPY", timedataset.GenerateBars(timedataset.GenerateT(len(closes), nowFunc), closes))
	if err != nil {
		panic(err)
	}
	return td
}

func runForecastExample(opt *Options, td *timedataset.TimeDataset, horizon int, filename string) (*Results, error) {
	f, err := New(opt)
	if err != nil {
		return nil, err
	}
	res, err := f.Forecast(td, horizon)
	if err != nil {
		return nil, err
	}
	if err := PlotForecast(filepath.Join(os.TempDir(), filename), res); err != nil {
		return nil, err
	}
	return res, nil
}

func Example_forecasterLinearTrend() {
	opt := NewDefaultOptions()
	opt.Model = ModelLinear

	res, err := runForecastExample(opt, exampleSeries(), 2, "forecaster_linear.html")
	if err != nil {
		panic(err)
	}
	for _, p := range res.Predicted {
		fmt.Printf("%d %s %.2f\n", p.Index, p.Date.Format(time.DateOnly), p.Value)
	}
	// Output:
	// 4 2024-06-28 105.50
	// 5 2024-07-01 106.90
}

func Example_forecasterSVR() {
	res, err := runForecastExample(nil, exampleSeries(), 3, "forecaster_svr.html")
	if err != nil {
		panic(err)
	}
	fmt.Println(res.Model, Indices(res.Observed), Indices(res.Predicted))
	// Output:
	// svr [0 1 2 3] [4 5 6]
}
