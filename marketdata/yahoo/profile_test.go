package yahoo

import (
	"context"
	"net/http"
	"testing"

	"github.com/aouyang1/go-stockforecaster/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileBody = `{
	"quoteSummary": {
		"result": [{
			"assetProfile": {
				"longBusinessSummary": "Apple Inc. designs, manufactures, and markets smartphones.",
				"website": "https://www.apple.com",
				"sector": "Technology",
				"industry": "Consumer Electronics"
			},
			"price": {
				"shortName": "Apple Inc.",
				"longName": "Apple Inc.",
				"currency": "USD",
				"exchangeName": "NasdaqGS"
			}
		}],
		"error": null
	}
}`

func TestProfileSuccess(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, profileBody, func(r *http.Request) {
		assert.Equal(t, "/v10/finance/quoteSummary/AAPL", r.URL.Path)
		assert.Equal(t, "assetProfile,price", r.URL.Query().Get("modules"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
	})

	client := NewClient(Config{BaseURL: server.URL}, server.Client())
	p, err := client.Profile(context.Background(), "AAPL")
	require.Nil(t, err)

	expected := &marketdata.Profile{
		Ticker:   "AAPL",
		Name:     "Apple Inc.",
		LongName: "Apple Inc.",
		Summary:  "Apple Inc. designs, manufactures, and markets smartphones.",
		Website:  "https://www.apple.com",
		Sector:   "Technology",
		Industry: "Consumer Electronics",
		Exchange: "NasdaqGS",
		Currency: "USD",
	}
	assert.Equal(t, expected, p)
}

func TestProfileLongNameFallback(t *testing.T) {
	body := `{"quoteSummary":{"result":[{"assetProfile":{},"price":{"longName":"SPDR S&P 500 ETF Trust"}}],"error":null}}`
	server, _ := newTestServer(t, http.StatusOK, body, func(r *http.Request) {
		assert.Equal(t, "/v10/finance/quoteSummary/^GSPC", r.URL.Path)
	})

	cfg := NewDefaultConfig()
	cfg.BaseURL = server.URL
	client := NewClient(cfg, server.Client())
	p, err := client.Profile(context.Background(), "SPX")
	require.Nil(t, err)
	assert.Equal(t, "SPX", p.Ticker)
	assert.Equal(t, "SPDR S&P 500 ETF Trust", p.Name)
	assert.Empty(t, p.Summary)
}

func TestProfileErrors(t *testing.T) {
	testData := map[string]struct {
		status int
		body   string
		err    error
	}{
		"unknown ticker": {
			status: http.StatusNotFound,
			body:   `{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found for ticker symbol: ZZZZ"}}}`,
			err:    ErrAPI,
		},
		"unauthorized": {
			status: http.StatusUnauthorized,
			body:   `Unauthorized`,
			err:    ErrStatus,
		},
		"malformed": {
			status: http.StatusOK,
			body:   `{"quoteSummary": [`,
		},
		"no result": {
			status: http.StatusOK,
			body:   `{"quoteSummary":{"result":[],"error":null}}`,
			err:    ErrNoProfileResult,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			server, _ := newTestServer(t, td.status, td.body, nil)
			client := NewClient(Config{BaseURL: server.URL}, server.Client())

			_, err := client.Profile(context.Background(), "ZZZZ")
			require.NotNil(t, err)
			assert.ErrorIs(t, err, marketdata.ErrDataUnavailable)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
			}
		})
	}
}

func TestProfileEmptyTicker(t *testing.T) {
	client := NewClient(NewDefaultConfig(), nil)
	_, err := client.Profile(context.Background(), "")
	assert.ErrorIs(t, err, marketdata.ErrDataUnavailable)
}
