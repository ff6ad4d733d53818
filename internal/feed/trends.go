package feed

import (
	"context"
	"fmt"

	"github.com/elonfeng/feedrank/internal/store"
	"github.com/elonfeng/feedrank/pkg/alert"
	"github.com/elonfeng/feedrank/pkg/insight"
	"github.com/elonfeng/feedrank/pkg/trend"
)

// Trending detects community trends over the posts of the trend window
// without persisting them.
func (s *Service) Trending(ctx context.Context) ([]trend.Record, error) {
	posts, err := s.windowPosts(ctx)
	if err != nil {
		return nil, err
	}
	return s.detector.Detect(posts), nil
}

// DetectResult summarizes one trend detection run.
type DetectResult struct {
	Records []trend.Record `json:"records"`
	Alerted []string       `json:"alerted"`
}

// DetectTrends runs detection, persists the records, drops trends that left
// the window and alerts each qualifying ticker once while it keeps trending.
func (s *Service) DetectTrends(ctx context.Context) (*DetectResult, error) {
	now := s.now()
	records, err := s.Trending(ctx)
	if err != nil {
		return nil, err
	}

	counts := map[trend.Kind]int{
		trend.KindTicker:      0,
		trend.KindSector:      0,
		trend.KindInsightType: 0,
	}
	var pending []*store.Trend
	for _, r := range records {
		counts[r.Kind]++
		t, err := s.store.UpsertTrend(ctx, r, now)
		if err != nil {
			return nil, err
		}
		if t.Kind == trend.KindTicker && !t.Alerted && t.PostCount >= s.cfg.AlertMinPosts {
			pending = append(pending, t)
		}
	}
	if err := s.store.ClearStaleTrends(ctx, now); err != nil {
		return nil, err
	}
	for kind, n := range counts {
		s.metrics.TrendRecords.WithLabelValues(string(kind)).Set(float64(n))
	}

	s.log.Info().
		Int("records", len(records)).
		Int("pending_alerts", len(pending)).
		Msg("trend detection complete")

	result := &DetectResult{Records: records, Alerted: []string{}}
	if !s.alerts.HasNotifiers() {
		return result, nil
	}

	for _, t := range pending {
		posts, err := s.store.ListPosts(ctx, store.PostListOpts{
			Since:  now.Add(-s.cfg.TrendWindow),
			Ticker: t.Key,
			Limit:  5,
		})
		if err != nil {
			return nil, err
		}
		if !s.broadcast(ctx, alert.TickerTrend(t.Record(), posts, now)) {
			continue
		}
		if err := s.store.MarkAlerted(ctx, t.ID); err != nil {
			return nil, err
		}
		result.Alerted = append(result.Alerted, t.Key)
	}
	if len(result.Alerted) > 0 {
		s.log.Info().Strs("tickers", result.Alerted).Msg("trend alerts sent")
	}
	return result, nil
}

// StoredTrends lists persisted trends from the last detection run.
func (s *Service) StoredTrends(ctx context.Context, kind trend.Kind, limit int) ([]store.Trend, error) {
	return s.store.ListTrends(ctx, store.TrendListOpts{Kind: kind, Limit: limit})
}

// RefreshMarket fetches market context for recently discussed tickers,
// detects market trends and replaces the stored set. Trends not present in
// the previous set are announced.
func (s *Service) RefreshMarket(ctx context.Context) ([]trend.MarketTrend, error) {
	if s.market == nil {
		return nil, fmt.Errorf("refresh market: no market source configured")
	}

	posts, err := s.windowPosts(ctx)
	if err != nil {
		return nil, err
	}
	tickers := tickersOf(posts)

	var mc insight.MarketContext
	if len(tickers) > 0 {
		mc = s.market.Context(ctx, tickers)
	}
	trends := trend.DetectMarketTrends(&mc, s.now())

	previous, err := s.store.ListMarketTrends(ctx, trendPostLimit)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceMarketTrends(ctx, trends); err != nil {
		return nil, err
	}
	s.metrics.MarketTrends.Set(float64(len(trends)))

	known := make(map[string]bool, len(previous))
	for _, mt := range previous {
		known[mt.Ticker+"/"+string(mt.Type)] = true
	}
	if s.alerts.HasNotifiers() {
		for _, mt := range trends {
			if !known[mt.Ticker+"/"+string(mt.Type)] {
				s.broadcast(ctx, alert.MarketTrend(mt))
			}
		}
	}

	s.log.Info().
		Int("tickers", len(tickers)).
		Int("market_trends", len(trends)).
		Msg("market refresh complete")
	return trends, nil
}

// MarketTrends lists the stored market trends.
func (s *Service) MarketTrends(ctx context.Context, limit int) ([]trend.MarketTrend, error) {
	return s.store.ListMarketTrends(ctx, limit)
}

func (s *Service) windowPosts(ctx context.Context) ([]insight.Post, error) {
	posts, err := s.store.ListPosts(ctx, store.PostListOpts{
		Since: s.now().Add(-s.cfg.TrendWindow),
		Limit: trendPostLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load trend window: %w", err)
	}
	return posts, nil
}

// broadcast sends n and reports whether every notifier accepted it.
func (s *Service) broadcast(ctx context.Context, n *alert.Notification) bool {
	if err := s.alerts.Broadcast(ctx, n); err != nil {
		s.metrics.AlertsSent.WithLabelValues("error").Inc()
		s.log.Warn().Err(err).Str("kind", string(n.Kind)).Str("title", n.Title).Msg("alert delivery failed")
		return false
	}
	s.metrics.AlertsSent.WithLabelValues("ok").Inc()
	return true
}
