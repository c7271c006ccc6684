// Package yahoo fetches daily price history from the Yahoo Finance chart API
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/aouyang1/go-stockforecaster/marketdata"
	"github.com/aouyang1/go-stockforecaster/timedataset"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultRange     = "1y"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0"

	// lookback used when only an end date is requested
	defaultLookback = 365 * 24 * time.Hour
)

var (
	ErrStatus   = errors.New("unexpected status code")
	ErrAPI      = errors.New("chart api error")
	ErrNoBars   = errors.New("no bars returned")
	ErrBadRange = errors.New("start is after end")
)

// Config holds configuration for the Yahoo Finance chart client
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`

	// DefaultRange is the chart range requested when neither start nor end is set, e.g. 1y or 5y
	DefaultRange string `yaml:"default_range"`

	ProxyURL string `yaml:"proxy_url"`

	// SymbolMap translates tickers to Yahoo symbols such as SPX to ^GSPC
	SymbolMap map[string]string `yaml:"symbol_map"`
}

// NewDefaultConfig returns the public chart API configuration
func NewDefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		DefaultRange: DefaultRange,
		SymbolMap: map[string]string{
			"SPX":   "^GSPC",
			"SP500": "^GSPC",
		},
	}
}

// Client implements marketdata.Source
type Client struct {
	cfg     Config
	client  *http.Client
	nowFunc func() time.Time
}

var _ marketdata.Source = (*Client)(nil)

// NewClient returns a chart client. A nil http client is built from the timeout and proxy of the
// configuration.
func NewClient(cfg Config, client *http.Client) *Client {
	def := NewDefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.DefaultRange == "" {
		cfg.DefaultRange = def.DefaultRange
	}

	if client == nil {
		transport := &http.Transport{}
		if cfg.ProxyURL != "" {
			if u, err := url.Parse(cfg.ProxyURL); err == nil {
				transport.Proxy = http.ProxyURL(u)
			} else {
				slog.Warn("ignoring invalid proxy url", "proxy_url", cfg.ProxyURL, "error", err)
			}
		}
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		}
	}
	return &Client{
		cfg:     cfg,
		client:  client,
		nowFunc: time.Now,
	}
}

func (c *Client) symbol(ticker string) string {
	if mapped, ok := c.cfg.SymbolMap[ticker]; ok {
		return mapped
	}
	return ticker
}

// chartResponse is the response structure of the chart API
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quote `json:"quote"`
	} `json:"indicators"`
}

// quote holds nullable price arrays aligned with the timestamps
type quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}

// query builds the chart query for the requested window. end is exclusive.
func (c *Client) query(start, end time.Time) (url.Values, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("includePrePost", "false")

	if start.IsZero() && end.IsZero() {
		q.Set("range", c.cfg.DefaultRange)
		return q, nil
	}
	if end.IsZero() {
		end = c.nowFunc()
	}
	if start.IsZero() {
		start = end.Add(-defaultLookback)
	}
	if start.After(end) {
		return nil, fmt.Errorf("start %s end %s, %w", start.Format(time.DateOnly), end.Format(time.DateOnly), ErrBadRange)
	}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	return q, nil
}

// Fetch retrieves the daily bars of the ticker. Bars without prices are skipped and bars on the
// same exchange date are collapsed to the last one.
func (c *Client) Fetch(ctx context.Context, ticker string, start, end time.Time) (*timedataset.TimeDataset, error) {
	if ticker == "" {
		return nil, marketdata.Unavailable(ticker, timedataset.ErrNoTicker)
	}

	q, err := c.query(start, end)
	if err != nil {
		return nil, marketdata.Unavailable(ticker, err)
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.cfg.BaseURL, url.PathEscape(c.symbol(ticker)), q.Encode())

	status, body, err := c.get(ctx, u)
	if err != nil {
		return nil, marketdata.Unavailable(ticker, err)
	}

	var chart chartResponse
	decodeErr := json.Unmarshal(body, &chart)
	if decodeErr == nil && chart.Chart.Error != nil {
		return nil, marketdata.Unavailable(ticker, fmt.Errorf("%s: %s, %w", chart.Chart.Error.Code, chart.Chart.Error.Description, ErrAPI))
	}
	if status != http.StatusOK {
		return nil, marketdata.Unavailable(ticker, fmt.Errorf("yahoo status %d, %w", status, ErrStatus))
	}
	if decodeErr != nil {
		return nil, marketdata.Unavailable(ticker, fmt.Errorf("yahoo decode, %w", decodeErr))
	}

	bars, err := toBars(chart)
	if err != nil {
		return nil, marketdata.Unavailable(ticker, err)
	}

	td, err := timedataset.NewHistoricalSeries(ticker, bars)
	if err != nil {
		return nil, marketdata.Unavailable(ticker, err)
	}
	return td, nil
}

// get requests u and returns the status code and the full body
func (c *Client) get(ctx context.Context, u string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	res, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("yahoo fetch, %w", err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("yahoo read body, %w", err)
	}
	return res.StatusCode, body, nil
}

func toBars(chart chartResponse) ([]timedataset.Bar, error) {
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, ErrNoBars
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrNoBars
	}
	qt := result.Indicators.Quote[0]

	bars := make([]timedataset.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, okO := at(qt.Open, i)
		h, okH := at(qt.High, i)
		l, okL := at(qt.Low, i)
		cl, okC := at(qt.Close, i)
		if !okO || !okH || !okL || !okC {
			continue
		}
		vol, _ := at(qt.Volume, i)

		// daily bars are stamped at the exchange open so shift to the exchange date
		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		bar := timedataset.Bar{
			Date:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  cl,
			Volume: int64(vol),
		}
		if !bar.Valid() {
			continue
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	dedup := bars[:0]
	for _, b := range bars {
		if n := len(dedup); n > 0 && dedup[n-1].Date.Equal(b.Date) {
			dedup[n-1] = b
			continue
		}
		dedup = append(dedup, b)
	}
	if len(dedup) == 0 {
		return nil, ErrNoBars
	}
	return dedup, nil
}
