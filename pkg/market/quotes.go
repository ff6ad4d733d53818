package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// DefaultQuoteURL is the public chart endpoint.
const DefaultQuoteURL = "https://query1.finance.yahoo.com"

// ChartQuotes reads daily closes and volumes from a chart API and compares
// the last two sessions.
type ChartQuotes struct {
	baseURL string
	guard   *guard
}

// NewChartQuotes creates a quote provider. An empty baseURL uses the default.
func NewChartQuotes(baseURL string, cfg GuardConfig) *ChartQuotes {
	if baseURL == "" {
		baseURL = DefaultQuoteURL
	}
	return &ChartQuotes{
		baseURL: strings.TrimRight(baseURL, "/"),
		guard:   newGuard(ProviderQuotes, cfg),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *ChartQuotes) Quote(ctx context.Context, ticker string) (Quote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker),
		url.Values{"range": {"5d"}, "interval": {"1d"}}.Encode())

	var resp chartResponse
	if err := c.guard.getJSON(ctx, u, nil, &resp); err != nil {
		return Quote{}, err
	}
	if resp.Chart.Error != nil {
		return Quote{}, fmt.Errorf("chart %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return Quote{}, fmt.Errorf("chart %s: %w", ticker, ErrNoData)
	}

	series := resp.Chart.Result[0].Indicators.Quote[0]
	closes := present(series.Close)
	volumes := present(series.Volume)
	if len(closes) == 0 {
		return Quote{}, fmt.Errorf("chart %s: %w", ticker, ErrNoData)
	}

	q := Quote{Ticker: ticker}
	q.CurrentPrice, q.PriceChange24h = lastChange(closes)
	q.Volume, q.VolumeChange24h = lastChange(volumes)
	return q, nil
}

// lastChange returns the final value and its percent change from the one
// before it. A single value or a zero base yields no change.
func lastChange(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	last := vals[len(vals)-1]
	if len(vals) < 2 {
		return last, 0
	}
	prev := vals[len(vals)-2]
	if prev <= 0 {
		return last, 0
	}
	return last, (last - prev) / prev * 100
}

func present(vals []*float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}
