package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aouyang1/go-stockforecaster/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{
	"chart": {
		"result": [{
			"meta": {"symbol": "AAPL", "currency": "USD", "gmtoffset": -18000},
			"timestamp": [1704378600, 1704205800, 1704292200, 1704465000, 1704292260],
			"indicators": {
				"quote": [{
					"open":   [102.5, 100.0, 101.0, 104.0, 101.5],
					"high":   [104.0, 101.5, 102.5, 105.0, 103.0],
					"low":    [102.0, 99.5, 100.5, 103.0, 101.0],
					"close":  [103.0, 101.0, 102.0, null, 102.5],
					"volume": [3000, 1000, 2000, null, 2500]
				}]
			}
		}],
		"error": null
	}
}`

func newTestServer(t *testing.T, status int, body string, check func(r *http.Request)) (*httptest.Server, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestFetchSuccess(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, chartBody, func(r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, DefaultRange, r.URL.Query().Get("range"))
		assert.Empty(t, r.URL.Query().Get("period1"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
	})

	client := NewClient(Config{BaseURL: server.URL}, server.Client())
	td, err := client.Fetch(context.Background(), "AAPL", time.Time{}, time.Time{})
	require.Nil(t, err)

	assert.Equal(t, "AAPL", td.Ticker)
	require.Equal(t, 3, td.Len())
	assert.Equal(t, []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
	}, td.T())
	assert.Equal(t, []float64{101.0, 102.5, 103.0}, td.Close())
	assert.Equal(t, int64(2500), td.Bars[1].Volume)
}

func TestFetchDateRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	server, _ := newTestServer(t, http.StatusOK, chartBody, func(r *http.Request) {
		assert.Equal(t, "1704067200", r.URL.Query().Get("period1"))
		assert.Equal(t, "1706745600", r.URL.Query().Get("period2"))
		assert.Empty(t, r.URL.Query().Get("range"))
	})

	client := NewClient(Config{BaseURL: server.URL}, server.Client())
	_, err := client.Fetch(context.Background(), "AAPL", start, end)
	require.Nil(t, err)
}

func TestFetchOpenEndedRange(t *testing.T) {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	server, _ := newTestServer(t, http.StatusOK, chartBody, func(r *http.Request) {
		assert.Equal(t, "1704067200", r.URL.Query().Get("period1"))
		assert.Equal(t, "1706745600", r.URL.Query().Get("period2"))
	})

	client := NewClient(Config{BaseURL: server.URL}, server.Client())
	client.nowFunc = func() time.Time { return now }
	_, err := client.Fetch(context.Background(), "AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	require.Nil(t, err)
}

func TestFetchSymbolMap(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, chartBody, func(r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/^GSPC", r.URL.Path)
	})

	cfg := NewDefaultConfig()
	cfg.BaseURL = server.URL
	client := NewClient(cfg, server.Client())
	td, err := client.Fetch(context.Background(), "SPX", time.Time{}, time.Time{})
	require.Nil(t, err)
	assert.Equal(t, "SPX", td.Ticker)
}

func TestFetchErrors(t *testing.T) {
	testData := map[string]struct {
		status int
		body   string
		err    error
	}{
		"unknown ticker": {
			status: http.StatusNotFound,
			body:   `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`,
			err:    ErrAPI,
		},
		"server error": {
			status: http.StatusInternalServerError,
			body:   `upstream failure`,
			err:    ErrStatus,
		},
		"malformed": {
			status: http.StatusOK,
			body:   `{"chart": [`,
		},
		"no result": {
			status: http.StatusOK,
			body:   `{"chart":{"result":[],"error":null}}`,
			err:    ErrNoBars,
		},
		"only null bars": {
			status: http.StatusOK,
			body:   `{"chart":{"result":[{"meta":{"gmtoffset":0},"timestamp":[1704205800],"indicators":{"quote":[{"open":[null],"high":[null],"low":[null],"close":[null],"volume":[null]}]}}],"error":null}}`,
			err:    ErrNoBars,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			server, _ := newTestServer(t, td.status, td.body, nil)
			client := NewClient(Config{BaseURL: server.URL}, server.Client())

			_, err := client.Fetch(context.Background(), "ZZZZ", time.Time{}, time.Time{})
			require.NotNil(t, err)
			assert.ErrorIs(t, err, marketdata.ErrDataUnavailable)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
			}
		})
	}
}

func TestFetchBadRangeSkipsRequest(t *testing.T) {
	server, calls := newTestServer(t, http.StatusOK, chartBody, nil)
	client := NewClient(Config{BaseURL: server.URL}, server.Client())

	_, err := client.Fetch(context.Background(), "AAPL",
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	)
	assert.ErrorIs(t, err, ErrBadRange)
	assert.ErrorIs(t, err, marketdata.ErrDataUnavailable)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestFetchCanceled(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, chartBody, nil)
	client := NewClient(Config{BaseURL: server.URL}, server.Client())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, "AAPL", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, marketdata.ErrDataUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchEmptyTicker(t *testing.T) {
	client := NewClient(NewDefaultConfig(), nil)
	_, err := client.Fetch(context.Background(), "", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, marketdata.ErrDataUnavailable)
}
