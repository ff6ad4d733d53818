package trend

import (
	"math"
	"sort"
	"time"

	"github.com/elonfeng/feedrank/pkg/insight"
)

// MarketTrendType names the market condition that made a ticker trend.
type MarketTrendType string

const (
	MarketVolumeSpike     MarketTrendType = "volume_spike"
	MarketPriceMovement   MarketTrendType = "price_movement"
	MarketEarningsRelease MarketTrendType = "earnings_release"
)

// MarketTrend is a notable market condition on one ticker.
type MarketTrend struct {
	Ticker     string             `json:"ticker"`
	Type       MarketTrendType    `json:"trend_type"`
	Magnitude  float64            `json:"magnitude"`
	DetectedAt time.Time          `json:"detected_at"`
	Metadata   map[string]float64 `json:"metadata,omitempty"`
}

// DetectMarketTrends reports at most one trend per ticker, preferring a
// volume spike over a significant price move over an earnings release.
// Results are sorted by ticker.
func DetectMarketTrends(mc *insight.MarketContext, now time.Time) []MarketTrend {
	if mc == nil {
		return nil
	}

	tickers := make([]string, 0, len(mc.Tickers))
	for t := range mc.Tickers {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var trends []MarketTrend
	for _, ticker := range tickers {
		tc := mc.Tickers[ticker]
		mt := MarketTrend{Ticker: ticker, DetectedAt: now}

		switch {
		case tc.VolumeSpike:
			mt.Type = MarketVolumeSpike
			mt.Magnitude = tc.VolumeChange24h
			mt.Metadata = map[string]float64{
				"volume_change": tc.VolumeChange24h,
				"current_price": tc.CurrentPrice,
			}
		case tc.SignificantMove():
			mt.Type = MarketPriceMovement
			mt.Magnitude = math.Abs(tc.PriceChange24h)
			mt.Metadata = map[string]float64{
				"price_change":  tc.PriceChange24h,
				"current_price": tc.CurrentPrice,
			}
		case tc.EarningsRelease:
			mt.Type = MarketEarningsRelease
			mt.Magnitude = 1.0
			mt.Metadata = map[string]float64{"current_price": tc.CurrentPrice}
		default:
			continue
		}
		trends = append(trends, mt)
	}
	return trends
}
