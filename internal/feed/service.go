// Package feed orchestrates ranking, trend detection and reputation upkeep
// on top of the store.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/feedrank/internal/metrics"
	"github.com/elonfeng/feedrank/internal/store"
	"github.com/elonfeng/feedrank/pkg/alert"
	"github.com/elonfeng/feedrank/pkg/insight"
	"github.com/elonfeng/feedrank/pkg/rank"
	"github.com/elonfeng/feedrank/pkg/reputation"
	"github.com/elonfeng/feedrank/pkg/trend"
)

// ErrInvalidReaction is returned for an unknown reaction kind.
var ErrInvalidReaction = errors.New("invalid reaction kind")

// trendPostLimit caps how many posts one trend run reads.
const trendPostLimit = 10000

// MarketSource supplies market context for a set of tickers.
type MarketSource interface {
	Context(ctx context.Context, tickers []string) insight.MarketContext
}

// Config holds the service tunables.
type Config struct {
	DefaultStrategy string
	CandidateWindow time.Duration
	CandidateLimit  int
	PageSize        int
	MaxPageSize     int
	ExplainTop      int
	TrendWindow     time.Duration
	AlertMinPosts   int
}

func (c *Config) defaults() {
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = rank.StrategyBalanced
	}
	if c.CandidateWindow <= 0 {
		c.CandidateWindow = 7 * 24 * time.Hour
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 500
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	if c.MaxPageSize < c.PageSize {
		c.MaxPageSize = max(100, c.PageSize)
	}
	switch {
	case c.ExplainTop == 0:
		c.ExplainTop = 5
	case c.ExplainTop < 0:
		c.ExplainTop = 0
	}
	if c.TrendWindow <= 0 {
		c.TrendWindow = 24 * time.Hour
	}
	if c.AlertMinPosts <= 0 {
		c.AlertMinPosts = 5
	}
}

// Options wires a Service. Store is required; a nil Market ranks without
// market context and a nil Alerts sends nothing.
type Options struct {
	Store      store.Store
	Engine     *rank.Engine
	Detector   *trend.Detector
	Calculator *reputation.Calculator
	Market     MarketSource
	Alerts     *alert.Manager
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
	Config     Config
	Now        func() time.Time
}

// Service is the application layer used by the HTTP server, the CLI and
// the scheduler.
type Service struct {
	store    store.Store
	engine   *rank.Engine
	detector *trend.Detector
	calc     *reputation.Calculator
	market   MarketSource
	alerts   *alert.Manager
	metrics  *metrics.Metrics
	log      zerolog.Logger
	cfg      Config
	now      func() time.Time
}

// New creates a Service, filling unset collaborators with defaults.
func New(opts Options) *Service {
	opts.Config.defaults()
	s := &Service{
		store:    opts.Store,
		engine:   opts.Engine,
		detector: opts.Detector,
		calc:     opts.Calculator,
		market:   opts.Market,
		alerts:   opts.Alerts,
		metrics:  opts.Metrics,
		log:      opts.Logger.With().Str("component", "feed").Logger(),
		cfg:      opts.Config,
		now:      opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.engine == nil {
		s.engine = rank.NewEngine(nil, rank.WithClock(s.now))
	}
	if s.detector == nil {
		s.detector = trend.NewDetector(0, 0)
	}
	if s.calc == nil {
		s.calc = reputation.NewCalculator(reputation.DefaultConfig(), reputation.WithClock(s.now))
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// Strategies returns the ranking strategies in use.
func (s *Service) Strategies() []rank.Strategy {
	return s.engine.Strategies().All()
}

// FeedRequest selects one page of a user's feed.
type FeedRequest struct {
	UserID   int64
	Strategy string
	Page     int
	PageSize int
}

// Page is one page of ranked posts.
type Page struct {
	Strategy string               `json:"strategy"`
	Posts    []insight.RankedPost `json:"posts"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Total    int                  `json:"total"`
	HasNext  bool                 `json:"has_next"`
}

// Feed ranks recent posts for a user and returns the requested page.
func (s *Service) Feed(ctx context.Context, req FeedRequest) (*Page, error) {
	strategy := s.strategy(req.Strategy)

	posts, err := s.store.ListPosts(ctx, store.PostListOpts{
		Since: s.now().Add(-s.cfg.CandidateWindow),
		Limit: s.cfg.CandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load feed candidates: %w", err)
	}

	var prefs *insight.Preferences
	if req.UserID > 0 {
		prefs, err = s.store.GetPreferences(ctx, req.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load preferences: %w", err)
		}
	}

	ranked := s.rank(ctx, posts, prefs, strategy)
	return s.paginate(ranked, strategy, req.Page, req.PageSize), nil
}

// Rank scores caller-supplied posts with live market context. Every post is
// returned; the first entries carry explanations.
func (s *Service) Rank(ctx context.Context, posts []insight.Post, prefs *insight.Preferences, strategy string) []insight.RankedPost {
	ranked := s.rank(ctx, posts, prefs, s.strategy(strategy))
	rank.ExplainTop(ranked, s.cfg.ExplainTop)
	return ranked
}

func (s *Service) strategy(name string) string {
	if name == "" {
		name = s.cfg.DefaultStrategy
	}
	// Unknown names rank as balanced; report what was actually used.
	return s.engine.Strategies().Lookup(name).Name
}

func (s *Service) rank(ctx context.Context, posts []insight.Post, prefs *insight.Preferences, strategy string) []insight.RankedPost {
	mc := s.marketContext(ctx, posts)

	start := time.Now()
	ranked := s.engine.Rank(posts, prefs, mc, strategy)
	s.metrics.ObserveRank(strategy, len(posts), time.Since(start))

	s.log.Debug().
		Str("strategy", strategy).
		Int("posts", len(posts)).
		Bool("personalized", prefs != nil).
		Msg("ranked")
	return ranked
}

func (s *Service) marketContext(ctx context.Context, posts []insight.Post) *insight.MarketContext {
	if s.market == nil {
		return nil
	}
	tickers := tickersOf(posts)
	if len(tickers) == 0 {
		return nil
	}
	mc := s.market.Context(ctx, tickers)
	return &mc
}

func (s *Service) paginate(ranked []insight.RankedPost, strategy string, page, size int) *Page {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = s.cfg.PageSize
	}
	size = min(size, s.cfg.MaxPageSize)

	total := len(ranked)
	start := min((page-1)*size, total)
	end := min(start+size, total)

	items := make([]insight.RankedPost, end-start)
	copy(items, ranked[start:end])
	rank.ExplainTop(items, s.cfg.ExplainTop)

	return &Page{
		Strategy: strategy,
		Posts:    items,
		Page:     page,
		PageSize: size,
		Total:    total,
		HasNext:  end < total,
	}
}

func tickersOf(posts []insight.Post) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range posts {
		if p.Ticker != "" && !seen[p.Ticker] {
			seen[p.Ticker] = true
			out = append(out, p.Ticker)
		}
	}
	return out
}
