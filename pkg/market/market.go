// Package market assembles per-ticker market conditions from external data
// providers.
package market

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/feedrank/pkg/insight"
)

// Provider names used in logs and metrics.
const (
	ProviderQuotes       = "quotes"
	ProviderSentiment    = "sentiment"
	ProviderFundamentals = "fundamentals"
	ProviderEarnings     = "earnings"
	ProviderCache        = "cache"
)

// Fetch results reported to the observer.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultHit   = "hit"
)

// ErrNoData is returned by providers when a symbol has nothing usable.
var ErrNoData = errors.New("no market data")

// Quote is the price and volume movement over the last two sessions.
type Quote struct {
	Ticker          string  `json:"ticker"`
	CurrentPrice    float64 `json:"current_price"`
	PriceChange24h  float64 `json:"price_change_24h"`
	Volume          float64 `json:"volume"`
	VolumeChange24h float64 `json:"volume_change_24h"`
}

// VolumeSpike reports whether volume grew by more than half.
func (q Quote) VolumeSpike() bool {
	return q.VolumeChange24h > 50
}

// Sentiment is the social bullish/bearish split for a ticker.
type Sentiment struct {
	Ticker   string  `json:"ticker"`
	Score    float64 `json:"sentiment_score"`
	Bullish  int     `json:"bullish_count"`
	Bearish  int     `json:"bearish_count"`
	Messages int     `json:"total_messages"`
}

// QuoteProvider fetches price and volume movement.
type QuoteProvider interface {
	Quote(ctx context.Context, ticker string) (Quote, error)
}

// SentimentProvider fetches social sentiment.
type SentimentProvider interface {
	Sentiment(ctx context.Context, ticker string) (Sentiment, error)
}

// FundamentalsProvider fetches fundamental metrics. Unknown metrics are nil.
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, ticker string) (map[string]*float64, error)
}

// EarningsProvider lists tickers with a recent earnings release.
type EarningsProvider interface {
	Reporting(ctx context.Context) (map[string]bool, error)
}

// Observer is told the outcome of every provider call.
type Observer func(provider, result string)

// Options configures an Adapter. Only Quotes is required; nil enrichers are
// skipped.
type Options struct {
	Quotes       QuoteProvider
	Sentiment    SentimentProvider
	Fundamentals FundamentalsProvider
	Earnings     EarningsProvider
	Cache        *Cache

	Workers       int
	TickerTimeout time.Duration
	Observer      Observer
	Logger        zerolog.Logger
}

// Adapter builds a MarketContext for a batch of tickers.
type Adapter struct {
	opts Options
	now  func() time.Time
}

const (
	defaultWorkers       = 4
	defaultTickerTimeout = 10 * time.Second
)

// NewAdapter creates an adapter with defaults filled in.
func NewAdapter(opts Options) *Adapter {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.TickerTimeout <= 0 {
		opts.TickerTimeout = defaultTickerTimeout
	}
	if opts.Observer == nil {
		opts.Observer = func(string, string) {}
	}
	return &Adapter{opts: opts, now: time.Now}
}

// Context fetches every distinct ticker in parallel. A ticker whose quote
// cannot be fetched gets a neutral entry; the batch never fails.
func (a *Adapter) Context(ctx context.Context, tickers []string) insight.MarketContext {
	tickers = distinct(tickers)
	mc := insight.MarketContext{
		Tickers:     make(map[string]insight.TickerContext, len(tickers)),
		LastUpdated: a.now().UTC(),
	}
	if len(tickers) == 0 {
		return mc
	}

	reporting := a.reporting(ctx)

	results := make([]insight.TickerContext, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, ticker := range tickers {
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(gctx, a.opts.TickerTimeout)
			defer cancel()
			results[i] = a.ticker(tctx, ticker, reporting[ticker])
			return nil
		})
	}
	_ = g.Wait()

	for i, ticker := range tickers {
		mc.Tickers[ticker] = results[i]
	}
	return mc
}

// Ticker fetches the context for one ticker.
func (a *Adapter) Ticker(ctx context.Context, ticker string) insight.TickerContext {
	ticker = insight.NormalizeTicker(ticker)
	tctx, cancel := context.WithTimeout(ctx, a.opts.TickerTimeout)
	defer cancel()
	return a.ticker(tctx, ticker, a.reporting(ctx)[ticker])
}

func (a *Adapter) ticker(ctx context.Context, ticker string, earnings bool) insight.TickerContext {
	log := a.opts.Logger.With().Str("ticker", ticker).Logger()

	if a.opts.Cache != nil {
		if tc, ok := a.opts.Cache.Get(ctx, ticker); ok {
			a.opts.Observer(ProviderCache, ResultHit)
			return tc
		}
	}

	var tc insight.TickerContext
	q, err := a.opts.Quotes.Quote(ctx, ticker)
	if err != nil {
		a.opts.Observer(ProviderQuotes, ResultError)
		log.Warn().Err(err).Msg("quote fetch failed, using neutral context")
		return insight.TickerContext{}
	}
	a.opts.Observer(ProviderQuotes, ResultOK)

	tc.CurrentPrice = q.CurrentPrice
	tc.PriceChange24h = q.PriceChange24h
	tc.VolumeChange24h = q.VolumeChange24h
	tc.VolumeSpike = q.VolumeSpike()
	tc.EarningsRelease = earnings

	if a.opts.Sentiment != nil {
		s, err := a.opts.Sentiment.Sentiment(ctx, ticker)
		if err != nil {
			a.opts.Observer(ProviderSentiment, ResultError)
			log.Warn().Err(err).Msg("sentiment fetch failed")
		} else {
			a.opts.Observer(ProviderSentiment, ResultOK)
			tc.SocialSentiment = s.Score
			tc.SocialBullish = s.Bullish
			tc.SocialBearish = s.Bearish
		}
	}

	if a.opts.Fundamentals != nil {
		f, err := a.opts.Fundamentals.Fundamentals(ctx, ticker)
		if err != nil {
			a.opts.Observer(ProviderFundamentals, ResultError)
			log.Warn().Err(err).Msg("fundamentals fetch failed")
		} else {
			a.opts.Observer(ProviderFundamentals, ResultOK)
			tc.Fundamentals = f
		}
	}

	tc = tc.Normalize()
	if a.opts.Cache != nil {
		if err := a.opts.Cache.Set(ctx, ticker, tc); err != nil {
			log.Debug().Err(err).Msg("cache market context")
		}
	}
	return tc
}

func (a *Adapter) reporting(ctx context.Context) map[string]bool {
	if a.opts.Earnings == nil {
		return nil
	}
	tickers, err := a.opts.Earnings.Reporting(ctx)
	if err != nil {
		a.opts.Observer(ProviderEarnings, ResultError)
		a.opts.Logger.Warn().Err(err).Msg("earnings feed failed")
		return nil
	}
	a.opts.Observer(ProviderEarnings, ResultOK)
	return tickers
}

// distinct normalizes tickers, drops blanks and duplicates, and sorts them.
func distinct(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = insight.NormalizeTicker(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
