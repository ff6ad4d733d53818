package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/feedrank/pkg/insight"
)

func TestEngagement(t *testing.T) {
	tests := []struct {
		name string
		post insight.Post
		want float64
	}{
		{"no reactions", insight.Post{}, 0},
		{"likes only", insight.Post{LikeCount: 4}, 0.2},
		{"mixed", insight.Post{LikeCount: 2, HelpfulCount: 3, BullishCount: 5, BearishCount: 5}, 0.7},
		{"saturates", insight.Post{LikeCount: 20, HelpfulCount: 10, BullishCount: 5}, 1},
		{"dislikes floor at zero", insight.Post{LikeCount: 1, DislikeCount: 9}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Engagement(tt.post), 1e-9)
		})
	}
}

func TestPreferenceMatch(t *testing.T) {
	prefs := &insight.Preferences{
		PreferredSectors:      []string{"Energy"},
		PreferredInsightTypes: []string{string(insight.InsightTechnical)},
		FollowedTickers:       []string{"XOM"},
	}
	tests := []struct {
		name string
		post insight.Post
		want float64
	}{
		{"nothing matches", insight.Post{Ticker: "AAPL", Sector: "Technology"}, 0},
		{"sector", insight.Post{Sector: "Energy"}, 0.4},
		{"insight type", insight.Post{InsightType: insight.InsightTechnical}, 0.3},
		{"ticker", insight.Post{Ticker: "XOM"}, 0.3},
		{"all three", insight.Post{Ticker: "XOM", Sector: "Energy", InsightType: insight.InsightTechnical}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PreferenceMatch(tt.post, prefs), 1e-9)
		})
	}

	assert.Zero(t, PreferenceMatch(insight.Post{Ticker: "XOM"}, nil))
}

func TestMarketRelevance(t *testing.T) {
	growth := 0.2
	mc := &insight.MarketContext{Tickers: map[string]insight.TickerContext{
		"ALL":   {VolumeSpike: true, PriceChange24h: -8, EarningsRelease: true, SocialSentiment: 0.6, Fundamentals: map[string]*float64{insight.MetricRevenueGrowth: &growth}},
		"EDGE":  {PriceChange24h: 5, SocialSentiment: 0.3},
		"MOVE":  {PriceChange24h: 5.01},
		"SPIKE": {VolumeSpike: true},
		"BEAR":  {SocialSentiment: -0.45},
		"NULL":  {Fundamentals: map[string]*float64{insight.MetricEarningsGrowth: nil}},
	}}
	tests := []struct {
		ticker string
		want   float64
	}{
		{"ALL", 1.0},
		{"EDGE", 0},
		{"MOVE", 0.25},
		{"SPIKE", 0.3},
		{"BEAR", 0.15},
		{"NULL", 0},
		{"MISSING", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			assert.InDelta(t, tt.want, MarketRelevance(insight.Post{Ticker: tt.ticker}, mc), 1e-9)
		})
	}

	assert.Zero(t, MarketRelevance(insight.Post{Ticker: "ALL"}, nil))
}

func TestRecencyBuckets(t *testing.T) {
	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"brand new", 0, 1.0},
		{"future dated", -time.Hour, 1.0},
		{"just under an hour", 59 * time.Minute, 1.0},
		{"exactly one hour", time.Hour, 0.5},
		{"half a day", 12 * time.Hour, 0.5},
		{"exactly a day", 24 * time.Hour, 0.2},
		{"exactly two days", 48 * time.Hour, 0.1},
		{"a month", 30 * 24 * time.Hour, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := insight.Post{CreatedAt: testNow.Add(-tt.age)}
			assert.Equal(t, tt.want, Recency(p, testNow))
		})
	}

	assert.Zero(t, Recency(insight.Post{}, testNow), "unknown age scores below the oldest bucket")
}

func TestStrategyTable(t *testing.T) {
	table := MustTable()

	assert.Equal(t, []string{"balanced", "diverse", "expert", "quality_focused", "trending"}, table.Names())
	for _, s := range table.All() {
		require.NoError(t, s.Weights.Validate(), s.Name)
		assert.GreaterOrEqual(t, s.Weights.Total(), 100, s.Name)
		assert.LessOrEqual(t, s.Weights.Total(), 115, s.Name)
	}

	assert.Equal(t, Weights{40, 20, 15, 15, 10, 5}, table.Lookup(StrategyBalanced).Weights)
	assert.Equal(t, Weights{60, 10, 15, 10, 5, 5}, table.Lookup(StrategyQualityFocused).Weights)
	assert.Equal(t, Weights{25, 15, 10, 10, 30, 10}, table.Lookup(StrategyTrending).Weights)
	assert.Equal(t, Weights{30, 20, 10, 20, 10, 10}, table.Lookup(StrategyDiverse).Weights)
	assert.Equal(t, Weights{35, 10, 35, 10, 5, 5}, table.Lookup(StrategyExpert).Weights)

	assert.Equal(t, 2.0, table.Lookup(StrategyDiverse).DiversityBoost)
	assert.Equal(t, 1.0, table.Lookup(StrategyExpert).DiversityBoost)
	assert.Equal(t, table.Lookup(StrategyBalanced), table.Lookup("unknown"))
}

func TestNewTableOverrides(t *testing.T) {
	table, err := NewTable(map[string]Weights{
		"momentum":      {Quality: 20, Market: 50, Recency: 30},
		StrategyDiverse: {Quality: 50, Preference: 50},
	})
	require.NoError(t, err)

	assert.True(t, table.Has("momentum"))
	assert.Equal(t, 1.0, table.Lookup("momentum").DiversityBoost)
	assert.Equal(t, 2.0, table.Lookup(StrategyDiverse).DiversityBoost, "override keeps the built-in boost")
	assert.Equal(t, 50, table.Lookup(StrategyDiverse).Weights.Preference)

	_, err = NewTable(map[string]Weights{"bad": {Quality: -1}})
	assert.Error(t, err)

	_, err = NewTable(map[string]Weights{"": {}})
	assert.Error(t, err)

	assert.Equal(t, 30, DefaultStrategies()[StrategyDiverse].Weights.Quality, "built-ins are not shared")
}

func TestExplain(t *testing.T) {
	rp := insight.RankedPost{Post: insight.Post{
		QualityScore:          85,
		AuthorReputationScore: 70,
		LikeCount:             25,
		Ticker:                "AMD",
	}}
	assert.Equal(t,
		"This post is recommended because it features high-quality analysis, reputable author, strong community engagement.",
		Explain(rp))

	rp = insight.RankedPost{Post: insight.Post{Ticker: "AMD", Sector: "Technology"}}
	assert.Equal(t,
		"This post is recommended because it features relevant to AMD, covers Technology sector.",
		Explain(rp))

	assert.Equal(t,
		"This post is recommended because it features relevant content.",
		Explain(insight.RankedPost{}))
}

func TestExplainTop(t *testing.T) {
	ranked := make([]insight.RankedPost, 4)
	ExplainTop(ranked, 2)

	assert.NotEmpty(t, ranked[0].Explanation)
	assert.NotEmpty(t, ranked[1].Explanation)
	assert.Empty(t, ranked[2].Explanation)
}
