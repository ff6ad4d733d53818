package rank

import (
	"math"
	"time"

	"github.com/elonfeng/feedrank/pkg/insight"
)

// Every extractor returns a sub-score already clamped to [0,1].

// Engagement scores community reactions. Ten raw points saturate.
func Engagement(p insight.Post) float64 {
	raw := 0.5*float64(p.LikeCount) +
		1.0*float64(p.HelpfulCount) +
		0.3*float64(p.BullishCount) +
		0.3*float64(p.BearishCount) -
		0.5*float64(p.DislikeCount)
	return insight.Clamp(raw/10, 0, 1)
}

// PreferenceMatch scores overlap with the reader's stated preferences.
// A nil prefs yields 0.
func PreferenceMatch(p insight.Post, prefs *insight.Preferences) float64 {
	if prefs == nil {
		return 0
	}
	match := 0.0
	if prefs.PrefersSector(p.Sector) {
		match += 0.4
	}
	if prefs.PrefersInsightType(p.InsightType) {
		match += 0.3
	}
	if prefs.Follows(p.Ticker) {
		match += 0.3
	}
	return insight.Clamp(match, 0, 1)
}

// MarketRelevance scores how much is happening in the post's ticker right
// now. Posts without a ticker, or tickers missing from mc, score 0.
func MarketRelevance(p insight.Post, mc *insight.MarketContext) float64 {
	tc, ok := mc.Ticker(p.Ticker)
	if !ok {
		return 0
	}
	relevance := 0.0
	if tc.VolumeSpike {
		relevance += 0.30
	}
	if math.Abs(tc.PriceChange24h) > 5 {
		relevance += 0.25
	}
	if tc.EarningsRelease {
		relevance += 0.20
	}
	if math.Abs(tc.SocialSentiment) > 0.3 {
		relevance += 0.15
	}
	if tc.HasGrowthFundamentals() {
		relevance += 0.10
	}
	return insight.Clamp(relevance, 0, 1)
}

// Recency buckets post age. Unknown age scores below the oldest bucket.
func Recency(p insight.Post, now time.Time) float64 {
	if !p.HasTimestamp() {
		return 0
	}
	hours := now.Sub(p.CreatedAt).Hours()
	switch {
	case hours < 1:
		return 1.0
	case hours < 24:
		return 0.5
	case hours < 48:
		return 0.2
	default:
		return 0.1
	}
}
