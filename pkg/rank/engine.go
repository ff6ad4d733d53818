package rank

import (
	"sort"
	"time"

	"github.com/elonfeng/feedrank/pkg/insight"
)

const (
	// diversityWindow is how many top entries the diversity pass inspects.
	diversityWindow = 10
	// diversityMinBatch is the batch size at or below which the pass is skipped.
	diversityMinBatch = 5

	tickerDiversityBonus = 2.0
	sectorDiversityBonus = 1.0
)

// Engine ranks posts with a weighted sum of signal sub-scores. It holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	table *Table
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for recency.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a ranking engine over a strategy table. A nil table
// uses the built-in strategies.
func NewEngine(table *Table, opts ...Option) *Engine {
	if table == nil {
		table = MustTable()
	}
	e := &Engine{table: table, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategies returns the engine's strategy table.
func (e *Engine) Strategies() *Table {
	return e.table
}

// Rank scores, orders and diversifies posts for one feed request. Ties keep
// input order. posts is not modified.
func (e *Engine) Rank(posts []insight.Post, prefs *insight.Preferences, mc *insight.MarketContext, strategy string) []insight.RankedPost {
	ranked := make([]insight.RankedPost, 0, len(posts))
	if len(posts) == 0 {
		return ranked
	}

	s := e.table.Lookup(strategy)
	now := e.now()

	for _, p := range posts {
		b := Score(p, prefs, mc, s.Weights, now)
		ranked = append(ranked, insight.RankedPost{
			Post:         p,
			RankingScore: b.Total(),
			Breakdown:    b,
		})
	}

	sortByScore(ranked)
	if ApplyDiversity(ranked, s.DiversityBoost) {
		sortByScore(ranked)
	}
	return ranked
}

// Score computes the per-signal point contributions of one post.
func Score(p insight.Post, prefs *insight.Preferences, mc *insight.MarketContext, w Weights, now time.Time) insight.Breakdown {
	return insight.Breakdown{
		Quality:    insight.Clamp(p.QualityScore/100, 0, 1) * float64(w.Quality),
		Engagement: Engagement(p) * float64(w.Engagement),
		Reputation: insight.Clamp(p.AuthorReputationScore/100, 0, 1) * float64(w.Reputation),
		Preference: PreferenceMatch(p, prefs) * float64(w.Preference),
		Market:     MarketRelevance(p, mc) * float64(w.Market),
		Recency:    Recency(p, now) * float64(w.Recency),
	}
}

// ApplyDiversity walks the top of an already ranked slice and boosts the
// first post carrying each ticker and each sector not seen earlier in the
// walk. Tickers and sectors that already carry a bonus from an earlier
// pass count as seen, so running it twice changes nothing. It reports
// whether any score changed. Batches of five or fewer posts are left alone.
func ApplyDiversity(ranked []insight.RankedPost, multiplier float64) bool {
	if len(ranked) <= diversityMinBatch {
		return false
	}
	if multiplier <= 0 {
		multiplier = 1.0
	}

	window := ranked
	if len(window) > diversityWindow {
		window = window[:diversityWindow]
	}

	seenTickers := make(map[string]bool)
	seenSectors := make(map[string]bool)
	for _, rp := range window {
		if rp.Breakdown.TickerDiversity > 0 {
			seenTickers[rp.Ticker] = true
		}
		if rp.Breakdown.SectorDiversity > 0 {
			seenSectors[rp.Sector] = true
		}
	}

	changed := false
	for i := range window {
		rp := &window[i]
		if t := rp.Ticker; t != "" && !seenTickers[t] {
			seenTickers[t] = true
			bonus := tickerDiversityBonus * multiplier
			rp.Breakdown.TickerDiversity += bonus
			rp.RankingScore += bonus
			changed = true
		}
		if s := rp.Sector; s != "" && !seenSectors[s] {
			seenSectors[s] = true
			bonus := sectorDiversityBonus * multiplier
			rp.Breakdown.SectorDiversity += bonus
			rp.RankingScore += bonus
			changed = true
		}
	}
	return changed
}

func sortByScore(ranked []insight.RankedPost) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RankingScore > ranked[j].RankingScore
	})
}
