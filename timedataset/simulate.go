package timedataset

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

// GenerateT returns n weekday dates at midnight UTC ending on or before the date returned by nowFunc
func GenerateT(n int, nowFunc func() time.Time) []time.Time {
	now := nowFunc().UTC()
	ct := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	t := make([]time.Time, n)
	for i := n - 1; i >= 0; i-- {
		for ct.Weekday() == time.Saturday || ct.Weekday() == time.Sunday {
			ct = ct.AddDate(0, 0, -1)
		}
		t[i] = ct
		ct = ct.AddDate(0, 0, -1)
	}
	return t
}

type Series []float64

func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

func (s Series) SetConst(val float64, start, end int) Series {
	for i := start; i < end && i < len(s); i++ {
		s[i] = val
	}
	return s
}

func GenerateConstY(n int, val float64) Series {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, val)
	}
	return Series(y)
}

// GenerateTrendY returns a line through bias at index 0 with the given slope per trading day
func GenerateTrendY(n int, bias, slope float64) Series {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, bias+slope*float64(i))
	}
	return Series(y)
}

// GenerateWaveY returns a sine wave with a period measured in trading days
func GenerateWaveY(n int, amp, periodDays, offset float64) Series {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		val := amp * math.Sin(2.0*math.Pi/periodDays*(float64(i)+offset))
		y = append(y, val)
	}
	return Series(y)
}

// GenerateNoise returns gaussian noise scaled by noiseScale. The seed makes the noise reproducible.
func GenerateNoise(n int, noiseScale float64, seed uint64) Series {
	r := rand.New(rand.NewPCG(seed, seed))
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, r.NormFloat64()*noiseScale)
	}
	return Series(y)
}

// GenerateBars builds daily bars from closing prices where each bar opens at the previous close
func GenerateBars(t []time.Time, closes []float64) []Bar {
	bars := make([]Bar, 0, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars = append(bars, Bar{
			Date:   t[i],
			Open:   open,
			High:   math.Max(open, c),
			Low:    math.Min(open, c),
			Close:  c,
			Volume: 1000000,
		})
	}
	return bars
}

// GenerateRandomWalk returns prices starting at start where each daily return is gaussian with the
// given volatility. The seed makes the walk reproducible.
func GenerateRandomWalk(n int, start, volatility float64, seed uint64) Series {
	if n <= 0 {
		return Series{}
	}
	returns := GenerateNoise(n, volatility, seed)
	y := make([]float64, n)
	y[0] = start
	for i := 1; i < n; i++ {
		y[i] = y[i-1] * (1 + returns[i])
	}
	return Series(y)
}
