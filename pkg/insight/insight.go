package insight

import (
	"math"
	"time"
)

// InsightType classifies what kind of analysis a post contains.
type InsightType string

const (
	InsightFundamental InsightType = "fundamental_analysis"
	InsightTechnical   InsightType = "technical_analysis"
	InsightMacro       InsightType = "macro_commentary"
	InsightEarnings    InsightType = "earnings_forecast"
	InsightRisk        InsightType = "risk_warning"
)

// ReactionKind is a reader reaction on a post.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
	ReactionBullish ReactionKind = "bullish"
	ReactionBearish ReactionKind = "bearish"
	ReactionHelpful ReactionKind = "helpful"
)

// AllReactionKinds returns all known reaction kinds.
func AllReactionKinds() []ReactionKind {
	return []ReactionKind{
		ReactionLike,
		ReactionDislike,
		ReactionBullish,
		ReactionBearish,
		ReactionHelpful,
	}
}

// Valid reports whether k is a known reaction kind.
func (k ReactionKind) Valid() bool {
	switch k {
	case ReactionLike, ReactionDislike, ReactionBullish, ReactionBearish, ReactionHelpful:
		return true
	}
	return false
}

// Positive reports whether the reaction counts in the author's favour.
func (k ReactionKind) Positive() bool {
	return k.Valid() && k != ReactionDislike
}

// Post is the normalized snapshot of a post handed to the ranking core.
// Empty Ticker or Sector means the field is absent; a zero CreatedAt means
// the timestamp is unknown.
type Post struct {
	ID                    int64       `json:"id"`
	AuthorID              int64       `json:"author_id,omitempty"`
	Title                 string      `json:"title,omitempty"`
	Ticker                string      `json:"ticker,omitempty"`
	Sector                string      `json:"sector,omitempty"`
	InsightType           InsightType `json:"insight_type"`
	QualityScore          float64     `json:"quality_score"`
	LikeCount             int         `json:"like_count"`
	DislikeCount          int         `json:"dislike_count"`
	BullishCount          int         `json:"bullish_count"`
	BearishCount          int         `json:"bearish_count"`
	HelpfulCount          int         `json:"helpful_count"`
	AuthorReputationScore float64     `json:"author_reputation_score"`
	CreatedAt             time.Time   `json:"created_at"`
}

// HasTimestamp reports whether the post carries a known creation time.
func (p Post) HasTimestamp() bool {
	return !p.CreatedAt.IsZero()
}

// Preferences is a user's feed preference record.
type Preferences struct {
	PreferredSectors      []string `json:"preferred_sectors"`
	PreferredInsightTypes []string `json:"preferred_insight_types"`
	FollowedTickers       []string `json:"followed_tickers"`
	RiskTolerance         string   `json:"risk_tolerance"`
}

// DefaultRiskTolerance is used when a preference record omits it.
const DefaultRiskTolerance = "moderate"

// PrefersSector reports whether sector is in the preferred set.
func (p *Preferences) PrefersSector(sector string) bool {
	return p != nil && sector != "" && contains(p.PreferredSectors, sector)
}

// PrefersInsightType reports whether t is in the preferred set.
func (p *Preferences) PrefersInsightType(t InsightType) bool {
	return p != nil && t != "" && contains(p.PreferredInsightTypes, string(t))
}

// Follows reports whether the user follows ticker.
func (p *Preferences) Follows(ticker string) bool {
	return p != nil && ticker != "" && contains(p.FollowedTickers, ticker)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// TickerContext holds live market conditions for one ticker.
type TickerContext struct {
	CurrentPrice    float64             `json:"current_price,omitempty"`
	PriceChange24h  float64             `json:"price_change_24h"`
	VolumeChange24h float64             `json:"volume_change_24h,omitempty"`
	VolumeSpike     bool                `json:"volume_spike"`
	EarningsRelease bool                `json:"earnings_release"`
	SocialSentiment float64             `json:"social_sentiment"`
	SocialBullish   int                 `json:"social_bullish,omitempty"`
	SocialBearish   int                 `json:"social_bearish,omitempty"`
	Fundamentals    map[string]*float64 `json:"fundamentals,omitempty"`
}

// Fundamental metric keys.
const (
	MetricRevenueGrowth   = "revenue_growth"
	MetricEarningsGrowth  = "earnings_growth"
	MetricProfitMargin    = "profit_margin"
	MetricReturnOnEquity  = "return_on_equity"
	MetricPriceToEarnings = "price_to_earnings"
	MetricPriceToBook     = "price_to_book"
	MetricEPS             = "earnings_per_share"
)

// HasGrowthFundamentals reports whether revenue or earnings growth is known.
func (t TickerContext) HasGrowthFundamentals() bool {
	if len(t.Fundamentals) == 0 {
		return false
	}
	return t.Fundamentals[MetricRevenueGrowth] != nil || t.Fundamentals[MetricEarningsGrowth] != nil
}

// SignificantMove reports whether the 24h price change exceeds 5 percent.
func (t TickerContext) SignificantMove() bool {
	return math.Abs(t.PriceChange24h) > 5
}

// MarketContext maps tickers to their current market conditions.
type MarketContext struct {
	Tickers     map[string]TickerContext `json:"tickers"`
	LastUpdated time.Time                `json:"last_updated"`
}

// Ticker returns the context for ticker. Absent tickers, or a nil
// MarketContext, report ok=false.
func (m *MarketContext) Ticker(ticker string) (TickerContext, bool) {
	if m == nil || ticker == "" || m.Tickers == nil {
		return TickerContext{}, false
	}
	tc, ok := m.Tickers[ticker]
	return tc, ok
}

// RankedPost is a post with its ranking score for one ranking call.
type RankedPost struct {
	Post
	RankingScore float64   `json:"ranking_score"`
	Breakdown    Breakdown `json:"breakdown"`
	Explanation  string    `json:"explanation,omitempty"`
}

// Breakdown records the points each signal contributed to a ranking score.
type Breakdown struct {
	Quality    float64 `json:"quality"`
	Engagement float64 `json:"engagement"`
	Reputation float64 `json:"reputation"`
	Preference float64 `json:"preference"`
	Market     float64 `json:"market"`
	Recency    float64 `json:"recency"`
	// TickerDiversity and SectorDiversity are diversity pass bonuses.
	TickerDiversity float64 `json:"ticker_diversity"`
	SectorDiversity float64 `json:"sector_diversity"`
}

// Diversity returns the total diversity bonus.
func (b Breakdown) Diversity() float64 {
	return b.TickerDiversity + b.SectorDiversity
}

// Total returns the ranking score the breakdown adds up to.
func (b Breakdown) Total() float64 {
	return b.Quality + b.Engagement + b.Reputation + b.Preference + b.Market + b.Recency + b.Diversity()
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
