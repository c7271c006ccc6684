// Package calendar projects trading days of US equity markets so ordinal forecast offsets can be
// labeled with dates
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

var ErrNegativeDays = errors.New("negative number of trading days")

// Closure is a full day market closure
type Closure struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// Calendar determines which days the exchange is open. Weekends and the observed dates of the
// configured holidays are closed.
type Calendar struct {
	holidays []*cal.Holiday
	goodFri  bool

	mu     sync.Mutex
	closed map[int]map[civil]string
}

type civil struct {
	year  int
	month time.Month
	day   int
}

func civilOf(t time.Time) civil {
	y, m, d := t.Date()
	return civil{y, m, d}
}

// NewNYSE returns the calendar of full day NYSE closures
func NewNYSE() *Calendar {
	return New(
		[]*cal.Holiday{
			us.NewYear,
			us.MlkDay,
			us.PresidentsDay,
			us.MemorialDay,
			us.Juneteenth,
			us.IndependenceDay,
			us.LaborDay,
			us.ThanksgivingDay,
			us.ChristmasDay,
		},
		true,
	)
}

// New returns a calendar closed on weekends and the observed dates of the holidays. goodFriday
// additionally closes the Friday before western Easter.
func New(holidays []*cal.Holiday, goodFriday bool) *Calendar {
	return &Calendar{
		holidays: holidays,
		goodFri:  goodFriday,
		closed:   make(map[int]map[civil]string),
	}
}

// closures returns the closed days of a year keyed by date. Observed dates can spill into the
// adjacent year so neighbouring years are calculated as well.
func (c *Calendar) closures(year int) map[civil]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if days, exists := c.closed[year]; exists {
		return days
	}

	days := make(map[civil]string)
	for y := year - 1; y <= year+1; y++ {
		for _, hol := range c.holidays {
			_, observed := hol.Calc(y)
			if observed.IsZero() {
				continue
			}
			d := civilOf(observed)
			if d.year != year {
				continue
			}
			days[d] = strings.ReplaceAll(fmt.Sprintf("%s_%d", hol.Name, y), " ", "_")
		}
	}
	if c.goodFri {
		d := civilOf(GoodFriday(year))
		days[d] = fmt.Sprintf("Good_Friday_%d", year)
	}
	c.closed[year] = days
	return days
}

// IsTradingDay returns true if the exchange is open on the calendar date of t
func (c *Calendar) IsTradingDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	_, closed := c.closures(t.Year())[civilOf(t)]
	return !closed
}

// NextTradingDays returns the n trading days strictly after last at midnight in the location of last
func (c *Calendar) NextTradingDays(last time.Time, n int) ([]time.Time, error) {
	if n < 0 {
		return nil, fmt.Errorf("requested %d days, %w", n, ErrNegativeDays)
	}

	loc := last.Location()
	y, m, d := last.Date()
	days := make([]time.Time, 0, n)
	for i := 1; len(days) < n; i++ {
		next := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		if !c.IsTradingDay(next) {
			continue
		}
		days = append(days, next)
	}
	return days, nil
}

// Closures lists the holiday closures between start and end inclusive by calendar date at midnight
// in the location of start
func (c *Calendar) Closures(start, end time.Time) []Closure {
	loc := start.Location()
	first := civilOf(start)
	last := civilOf(end.In(loc))

	var res []Closure
	for year := first.year; year <= last.year; year++ {
		for d, name := range c.closures(year) {
			date := time.Date(d.year, d.month, d.day, 0, 0, 0, 0, loc)
			if civilBefore(d, first) || civilBefore(last, d) {
				continue
			}
			res = append(res, Closure{Name: name, Date: date})
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Date.Before(res[j].Date)
	})
	return res
}

func civilBefore(a, b civil) bool {
	if a.year != b.year {
		return a.year < b.year
	}
	if a.month != b.month {
		return a.month < b.month
	}
	return a.day < b.day
}

// GoodFriday returns the Friday before western Easter Sunday of the year at midnight UTC
func GoodFriday(year int) time.Time {
	// anonymous gregorian computus
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day-2, 0, 0, 0, 0, time.UTC)
}
