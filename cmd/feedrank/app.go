package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/elonfeng/feedrank/internal/config"
	"github.com/elonfeng/feedrank/internal/feed"
	"github.com/elonfeng/feedrank/internal/logger"
	"github.com/elonfeng/feedrank/internal/metrics"
	"github.com/elonfeng/feedrank/internal/store"
	"github.com/elonfeng/feedrank/pkg/alert"
	"github.com/elonfeng/feedrank/pkg/market"
	"github.com/elonfeng/feedrank/pkg/rank"
	"github.com/elonfeng/feedrank/pkg/reputation"
	"github.com/elonfeng/feedrank/pkg/trend"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	db      *store.SQLiteStore
	cache   *market.Cache
	adapter *market.Adapter
	metrics *metrics.Metrics
	svc     *feed.Service
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// newApp loads config and wires the service. withStore false skips the
// database for commands that rank caller-supplied posts.
func newApp(ctx context.Context, withStore bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if offline {
		cfg.Market.Enabled = false
	}

	a := &app{
		cfg:     cfg,
		log:     logger.New(cfg.Log),
		metrics: metrics.New(),
	}

	if withStore {
		a.db, err = store.New(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	table, err := rank.NewTable(cfg.Ranking.Strategies)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build strategies: %w", err)
	}

	opts := feed.Options{
		Engine:     rank.NewEngine(table),
		Detector:   trend.NewDetector(cfg.Trend.TickerLimit, cfg.Trend.SectorLimit),
		Calculator: reputation.NewCalculator(cfg.Reputation),
		Alerts:     a.buildAlerts(),
		Metrics:    a.metrics,
		Logger:     a.log,
		Config: feed.Config{
			DefaultStrategy: cfg.Ranking.DefaultStrategy,
			CandidateWindow: cfg.Ranking.ParseCandidateWindow(),
			CandidateLimit:  cfg.Ranking.CandidateLimit,
			PageSize:        cfg.Ranking.PageSize,
			MaxPageSize:     cfg.Ranking.MaxPageSize,
			ExplainTop:      cfg.Ranking.ExplainTop,
			TrendWindow:     cfg.Trend.ParseWindow(),
			AlertMinPosts:   cfg.Trend.AlertMinPosts,
		},
	}
	if a.db != nil {
		opts.Store = a.db
	}
	if cfg.Market.Enabled {
		a.adapter = a.buildMarket(ctx)
		opts.Market = a.adapter
	}
	a.svc = feed.New(opts)
	return a, nil
}

func (a *app) buildMarket(ctx context.Context) *market.Adapter {
	mc := a.cfg.Market
	guard := market.GuardConfig{RequestsPerSecond: mc.RequestsPerSecond}

	opts := market.Options{
		Quotes:        market.NewChartQuotes(mc.QuoteURL, guard),
		Workers:       mc.Workers,
		TickerTimeout: mc.ParseTickerTimeout(),
		Observer:      a.metrics.ObserveMarket,
		Logger:        a.log,
	}
	if mc.StockTwits.Enabled {
		opts.Sentiment = market.NewStockTwits(mc.StockTwits.BaseURL, mc.StockTwits.APIKey, guard)
	}
	if mc.Fundamentals.Enabled && mc.Fundamentals.APIKey != "" {
		opts.Fundamentals = market.NewAlphaVantage(mc.Fundamentals.BaseURL, mc.Fundamentals.APIKey, guard)
	}
	if mc.Earnings.Enabled && len(mc.Earnings.Feeds) > 0 {
		opts.Earnings = market.NewEarningsFeed(mc.Earnings.Feeds, mc.Earnings.ParseLookback(), guard, a.log)
	}
	if a.cfg.Redis.Enabled && a.cfg.Redis.URL != "" {
		cache, err := market.DialCache(ctx, a.cfg.Redis.URL, a.cfg.Redis.ParseTTL())
		if err != nil {
			a.log.Warn().Err(err).Msg("redis unavailable, market cache disabled")
		} else {
			a.cache = cache
			opts.Cache = cache
		}
	}
	return market.NewAdapter(opts)
}

func (a *app) buildAlerts() *alert.Manager {
	ac := a.cfg.Alerts
	var notifiers []alert.Notifier

	if ac.Slack.Enabled && ac.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(ac.Slack.WebhookURL))
	}
	if ac.Discord.Enabled && ac.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(ac.Discord.WebhookURL))
	}
	if ac.Webhook.Enabled && ac.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(ac.Webhook.URL, ac.Webhook.Secret))
	}
	if ac.Telegram.Enabled && ac.Telegram.BotToken != "" {
		tg, err := alert.NewTelegram(ac.Telegram.BotToken, ac.Telegram.ChatID)
		if err != nil {
			a.log.Warn().Err(err).Msg("telegram alerts disabled")
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	return alert.NewManager(notifiers)
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
