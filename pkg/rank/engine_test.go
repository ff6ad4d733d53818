package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/feedrank/pkg/insight"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(nil, WithClock(func() time.Time { return testNow }))
}

func TestRank_Example(t *testing.T) {
	post := insight.Post{
		ID:                    1,
		Ticker:                "AAPL",
		QualityScore:          80,
		LikeCount:             20,
		HelpfulCount:          10,
		BullishCount:          5,
		AuthorReputationScore: 60,
		CreatedAt:             testNow,
	}
	mc := &insight.MarketContext{Tickers: map[string]insight.TickerContext{
		"MSFT": {VolumeSpike: true},
	}}

	ranked := newTestEngine().Rank([]insight.Post{post}, nil, mc, StrategyBalanced)

	require.Len(t, ranked, 1)
	assert.InDelta(t, 66.0, ranked[0].RankingScore, 1e-9)
	assert.InDelta(t, 32.0, ranked[0].Breakdown.Quality, 1e-9)
	assert.InDelta(t, 20.0, ranked[0].Breakdown.Engagement, 1e-9)
	assert.InDelta(t, 9.0, ranked[0].Breakdown.Reputation, 1e-9)
	assert.Zero(t, ranked[0].Breakdown.Preference)
	assert.Zero(t, ranked[0].Breakdown.Market)
	assert.InDelta(t, 5.0, ranked[0].Breakdown.Recency, 1e-9)
	assert.Zero(t, ranked[0].Breakdown.Diversity())
}

func TestRank_Empty(t *testing.T) {
	ranked := newTestEngine().Rank(nil, nil, nil, StrategyBalanced)
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}

func TestRank_UnknownStrategyFallsBackToBalanced(t *testing.T) {
	posts := samplePosts()
	e := newTestEngine()

	want := e.Rank(posts, nil, nil, StrategyBalanced)
	for _, name := range []string{"", "nonsense", "BALANCED"} {
		got := e.Rank(posts, nil, nil, name)
		assert.Equal(t, want, got, "strategy %q", name)
	}
}

func TestRank_SinglePostMatchesFormula(t *testing.T) {
	prefs := &insight.Preferences{PreferredSectors: []string{"Technology"}, FollowedTickers: []string{"NVDA"}}
	mc := &insight.MarketContext{Tickers: map[string]insight.TickerContext{
		"NVDA": {VolumeSpike: true, PriceChange24h: 7.2},
	}}
	post := insight.Post{
		ID:                    9,
		Ticker:                "NVDA",
		Sector:                "Technology",
		QualityScore:          50,
		LikeCount:             4,
		AuthorReputationScore: 140,
		CreatedAt:             testNow.Add(-3 * time.Hour),
	}

	for _, s := range MustTable().All() {
		t.Run(s.Name, func(t *testing.T) {
			w := s.Weights
			want := 0.5*float64(w.Quality) +
				0.2*float64(w.Engagement) +
				1.0*float64(w.Reputation) +
				0.7*float64(w.Preference) +
				0.55*float64(w.Market) +
				0.5*float64(w.Recency)

			ranked := newTestEngine().Rank([]insight.Post{post}, prefs, mc, s.Name)
			require.Len(t, ranked, 1)
			assert.InDelta(t, want, ranked[0].RankingScore, 1e-9)
		})
	}
}

func TestRank_DiversityPass(t *testing.T) {
	posts := samplePosts()

	ranked := newTestEngine().Rank(posts, nil, nil, StrategyBalanced)

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, ids(ranked))
	assert.Equal(t, []float64{39, 32, 30, 25, 22, 16}, scores(ranked))
	assert.Equal(t, 2.0, ranked[0].Breakdown.TickerDiversity)
	assert.Equal(t, 1.0, ranked[0].Breakdown.SectorDiversity)
}

func TestRank_DiverseStrategyDoublesBonus(t *testing.T) {
	ranked := newTestEngine().Rank(samplePosts(), nil, nil, StrategyDiverse)

	assert.Equal(t, []int64{1, 3, 2, 4, 5, 6}, ids(ranked))
	assert.Equal(t, []float64{33, 25, 24, 20, 19, 12}, scores(ranked))
}

func TestRank_SmallBatchSkipsDiversity(t *testing.T) {
	ranked := newTestEngine().Rank(samplePosts()[:5], nil, nil, StrategyBalanced)

	assert.Equal(t, []float64{36, 32, 28, 24, 20}, scores(ranked))
	for _, rp := range ranked {
		assert.Zero(t, rp.Breakdown.Diversity())
	}
}

func TestRank_DiversityOnlyTouchesTopTen(t *testing.T) {
	var posts []insight.Post
	for i := 0; i < 12; i++ {
		posts = append(posts, insight.Post{
			ID:           int64(i + 1),
			Ticker:       string(rune('A' + i)),
			QualityScore: float64(100 - 5*i),
		})
	}

	ranked := newTestEngine().Rank(posts, nil, nil, StrategyBalanced)

	require.Len(t, ranked, 12)
	for i, rp := range ranked {
		base := float64(100-5*i) / 100 * 40
		if i < 10 {
			assert.InDelta(t, base+2, rp.RankingScore, 1e-9, "rank %d", i)
		} else {
			assert.InDelta(t, base, rp.RankingScore, 1e-9, "rank %d", i)
		}
	}
}

func TestApplyDiversity_Idempotent(t *testing.T) {
	for _, strategy := range []string{StrategyBalanced, StrategyDiverse} {
		ranked := newTestEngine().Rank(samplePosts(), nil, nil, strategy)
		before := scores(ranked)

		changed := ApplyDiversity(ranked, MustTable().Lookup(strategy).DiversityBoost)

		assert.False(t, changed, strategy)
		assert.Equal(t, before, scores(ranked), strategy)
	}
}

func TestRank_StableTies(t *testing.T) {
	var posts []insight.Post
	for i := 1; i <= 8; i++ {
		posts = append(posts, insight.Post{ID: int64(i), QualityScore: 50})
	}

	ranked := newTestEngine().Rank(posts, nil, nil, StrategyBalanced)

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, ids(ranked))
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	posts := samplePosts()
	snapshot := append([]insight.Post(nil), posts...)

	newTestEngine().Rank(posts, nil, nil, StrategyDiverse)

	assert.Equal(t, snapshot, posts)
}

func TestRank_QualityMonotonic(t *testing.T) {
	mc := &insight.MarketContext{Tickers: map[string]insight.TickerContext{
		"A": {EarningsRelease: true},
	}}
	for _, s := range MustTable().All() {
		for target := 0; target < 6; target++ {
			prev := -1.0
			for q := 0.0; q <= 120; q += 10 {
				posts := samplePosts()
				posts[target].QualityScore = q

				score := scoreOf(newTestEngine().Rank(posts, nil, mc, s.Name), posts[target].ID)
				assert.GreaterOrEqual(t, score, prev, "strategy %s post %d quality %.0f", s.Name, target, q)
				prev = score
			}
		}
	}
}

func TestRank_MissingMarketContextIsNeutral(t *testing.T) {
	posts := samplePosts()
	e := newTestEngine()

	withNil := e.Rank(posts, nil, nil, StrategyTrending)
	withEmpty := e.Rank(posts, nil, &insight.MarketContext{}, StrategyTrending)

	assert.Equal(t, withNil, withEmpty)
}

// samplePosts yields balanced base scores 36, 32, 28, 24, 20, 16.
func samplePosts() []insight.Post {
	return []insight.Post{
		{ID: 1, Ticker: "A", Sector: "S1", QualityScore: 90},
		{ID: 2, Ticker: "A", Sector: "S1", QualityScore: 80},
		{ID: 3, Ticker: "B", Sector: "S1", QualityScore: 70},
		{ID: 4, Ticker: "B", Sector: "S2", QualityScore: 60},
		{ID: 5, Ticker: "C", Sector: "S2", QualityScore: 50},
		{ID: 6, Ticker: "C", Sector: "S2", QualityScore: 40},
	}
}

func ids(ranked []insight.RankedPost) []int64 {
	out := make([]int64, len(ranked))
	for i, rp := range ranked {
		out[i] = rp.ID
	}
	return out
}

func scores(ranked []insight.RankedPost) []float64 {
	out := make([]float64, len(ranked))
	for i, rp := range ranked {
		out[i] = float64(int64(rp.RankingScore*1e6+0.5)) / 1e6
	}
	return out
}

func scoreOf(ranked []insight.RankedPost, id int64) float64 {
	for _, rp := range ranked {
		if rp.ID == id {
			return rp.RankingScore
		}
	}
	return -1
}
