package calendar

import (
	"testing"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGoodFriday(t *testing.T) {
	testData := map[string]struct {
		year     int
		expected time.Time
	}{
		"2024": {2024, date(2024, 3, 29)},
		"2025": {2025, date(2025, 4, 18)},
		"2026": {2026, date(2026, 4, 3)},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, GoodFriday(td.year))
		})
	}
}

func TestIsTradingDay(t *testing.T) {
	c := NewNYSE()
	testData := map[string]struct {
		t        time.Time
		expected bool
	}{
		"weekday":             {date(2024, 7, 3), true},
		"saturday":            {date(2024, 7, 6), false},
		"sunday":              {date(2024, 7, 7), false},
		"independence day":    {date(2024, 7, 4), false},
		"thanksgiving":        {date(2024, 11, 28), false},
		"good friday":         {date(2024, 3, 29), false},
		"christmas observed":  {date(2022, 12, 26), false},
		"day after christmas": {date(2024, 12, 26), true},
		"non utc location":    {time.Date(2024, 7, 4, 23, 0, 0, 0, time.FixedZone("UTC-8", -8*60*60)), false},
		"memorial day":        {date(2025, 5, 26), false},
		"juneteenth":          {date(2025, 6, 19), false},
		"labor day":           {date(2025, 9, 1), false},
		"martin luther king":  {date(2025, 1, 20), false},
		"washington birthday": {date(2025, 2, 17), false},
		"regular monday":      {date(2025, 2, 24), true},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, c.IsTradingDay(td.t))
		})
	}
}

func TestNextTradingDays(t *testing.T) {
	c := NewNYSE()
	testData := map[string]struct {
		last     time.Time
		n        int
		expected []time.Time
	}{
		"skips holiday and weekend": {
			last:     date(2024, 7, 3),
			n:        3,
			expected: []time.Time{date(2024, 7, 5), date(2024, 7, 8), date(2024, 7, 9)},
		},
		"skips good friday": {
			last:     date(2024, 3, 28),
			n:        1,
			expected: []time.Time{date(2024, 4, 1)},
		},
		"from weekend": {
			last:     date(2024, 7, 6),
			n:        1,
			expected: []time.Time{date(2024, 7, 8)},
		},
		"none": {
			last:     date(2024, 7, 3),
			n:        0,
			expected: []time.Time{},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := c.NextTradingDays(td.last, td.n)
			require.Nil(t, err)
			assert.Equal(t, td.expected, res)
		})
	}

	_, err := c.NextTradingDays(date(2024, 7, 3), -1)
	assert.ErrorIs(t, err, ErrNegativeDays)
}

func TestClosures(t *testing.T) {
	c := New([]*cal.Holiday{us.ChristmasDay}, false)

	res := c.Closures(
		time.Date(2024, 12, 8, 1, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 8, 1, 0, 0, 0, time.UTC),
	)
	expected := []Closure{
		{"Christmas_Day_2024", date(2024, 12, 25)},
		{"Christmas_Day_2025", date(2025, 12, 25)},
	}
	assert.Equal(t, expected, res)
}
