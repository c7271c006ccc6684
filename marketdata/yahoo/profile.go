package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/aouyang1/go-stockforecaster/marketdata"
	"github.com/aouyang1/go-stockforecaster/timedataset"
)

const profileModules = "assetProfile,price"

var ErrNoProfileResult = errors.New("no profile returned")

var _ marketdata.ProfileSource = (*Client)(nil)

// quoteSummaryResponse is the response structure of the quote summary API
type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
		Error  *chartError          `json:"error"`
	} `json:"quoteSummary"`
}

type quoteSummaryResult struct {
	AssetProfile struct {
		LongBusinessSummary string `json:"longBusinessSummary"`
		Website             string `json:"website"`
		Sector              string `json:"sector"`
		Industry            string `json:"industry"`
	} `json:"assetProfile"`
	Price struct {
		ShortName    string `json:"shortName"`
		LongName     string `json:"longName"`
		Currency     string `json:"currency"`
		ExchangeName string `json:"exchangeName"`
	} `json:"price"`
}

// Profile retrieves the company name and business summary of the ticker
func (c *Client) Profile(ctx context.Context, ticker string) (*marketdata.Profile, error) {
	if ticker == "" {
		return nil, marketdata.Unavailable(ticker, timedataset.ErrNoTicker)
	}

	q := url.Values{}
	q.Set("modules", profileModules)
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", c.cfg.BaseURL, url.PathEscape(c.symbol(ticker)), q.Encode())

	status, body, err := c.get(ctx, u)
	if err != nil {
		return nil, marketdata.Unavailable(ticker, err)
	}

	var summary quoteSummaryResponse
	decodeErr := json.Unmarshal(body, &summary)
	if decodeErr == nil && summary.QuoteSummary.Error != nil {
		e := summary.QuoteSummary.Error
		return nil, marketdata.Unavailable(ticker, fmt.Errorf("%s: %s, %w", e.Code, e.Description, ErrAPI))
	}
	if status != http.StatusOK {
		return nil, marketdata.Unavailable(ticker, fmt.Errorf("yahoo status %d, %w", status, ErrStatus))
	}
	if decodeErr != nil {
		return nil, marketdata.Unavailable(ticker, fmt.Errorf("yahoo decode, %w", decodeErr))
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, marketdata.Unavailable(ticker, ErrNoProfileResult)
	}

	r := summary.QuoteSummary.Result[0]
	name := r.Price.ShortName
	if name == "" {
		name = r.Price.LongName
	}
	return &marketdata.Profile{
		Ticker:   ticker,
		Name:     name,
		LongName: r.Price.LongName,
		Summary:  r.AssetProfile.LongBusinessSummary,
		Website:  r.AssetProfile.Website,
		Sector:   r.AssetProfile.Sector,
		Industry: r.AssetProfile.Industry,
		Exchange: r.Price.ExchangeName,
		Currency: r.Price.Currency,
	}, nil
}
