package market

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/elonfeng/feedrank/pkg/insight"
)

// DefaultAlphaVantageURL is the Alpha Vantage API root.
const DefaultAlphaVantageURL = "https://www.alphavantage.co"

// AlphaVantage reads company fundamentals from the OVERVIEW function.
type AlphaVantage struct {
	baseURL string
	apiKey  string
	guard   *guard
}

// NewAlphaVantage creates a fundamentals provider.
func NewAlphaVantage(baseURL, apiKey string, cfg GuardConfig) *AlphaVantage {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	return &AlphaVantage{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		guard:   newGuard(ProviderFundamentals, cfg),
	}
}

// overviewFields maps OVERVIEW response keys to metric names.
var overviewFields = map[string]string{
	"QuarterlyRevenueGrowthYOY":  insight.MetricRevenueGrowth,
	"QuarterlyEarningsGrowthYOY": insight.MetricEarningsGrowth,
	"ProfitMargin":               insight.MetricProfitMargin,
	"ReturnOnEquityTTM":          insight.MetricReturnOnEquity,
	"PERatio":                    insight.MetricPriceToEarnings,
	"PriceToBookRatio":           insight.MetricPriceToBook,
	"EPS":                        insight.MetricEPS,
}

func (a *AlphaVantage) Fundamentals(ctx context.Context, ticker string) (map[string]*float64, error) {
	q := url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {ticker},
		"apikey":   {a.apiKey},
	}
	var raw map[string]any
	if err := a.guard.getJSON(ctx, a.baseURL+"/query?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	if note, ok := raw["Note"].(string); ok {
		return nil, fmt.Errorf("alpha vantage %s: %s", ticker, note)
	}
	if msg, ok := raw["Error Message"].(string); ok {
		return nil, fmt.Errorf("alpha vantage %s: %s", ticker, msg)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("alpha vantage %s: %w", ticker, ErrNoData)
	}

	out := make(map[string]*float64, len(overviewFields))
	for field, metric := range overviewFields {
		out[metric] = parseMetric(raw[field])
	}
	return out, nil
}

// parseMetric reads a numeric string. "None", "-" and blanks are nil.
func parseMetric(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		x = strings.TrimSpace(x)
		if x == "" || x == "-" || strings.EqualFold(x, "none") {
			return nil
		}
		f, err := strconv.ParseFloat(x, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	}
	return nil
}
