package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/feedrank/pkg/rank"
	"github.com/elonfeng/feedrank/pkg/reputation"
)

// Config is the root configuration.
type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	Log        LogConfig         `yaml:"log"`
	Server     ServerConfig      `yaml:"server"`
	Schedule   ScheduleConfig    `yaml:"schedule"`
	Ranking    RankingConfig     `yaml:"ranking"`
	Trend      TrendConfig       `yaml:"trend"`
	Reputation reputation.Config `yaml:"reputation"`
	Market     MarketConfig      `yaml:"market"`
	Redis      RedisConfig       `yaml:"redis"`
	Alerts     AlertsConfig      `yaml:"alerts"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// ParseReadTimeout returns the read timeout as time.Duration.
func (s ServerConfig) ParseReadTimeout() time.Duration {
	return parseDuration(s.ReadTimeout, 15*time.Second)
}

// ParseWriteTimeout returns the write timeout as time.Duration.
func (s ServerConfig) ParseWriteTimeout() time.Duration {
	return parseDuration(s.WriteTimeout, 30*time.Second)
}

// ScheduleConfig holds cron specs for the background jobs.
type ScheduleConfig struct {
	MarketRefresh string `yaml:"market_refresh"`
	TrendDetect   string `yaml:"trend_detect"`
	Reconcile     string `yaml:"reconcile"`
}

// RankingConfig configures feed ranking.
type RankingConfig struct {
	DefaultStrategy string                  `yaml:"default_strategy"`
	Strategies      map[string]rank.Weights `yaml:"strategies"` // added or replaced strategies
	CandidateWindow string                  `yaml:"candidate_window"`
	CandidateLimit  int                     `yaml:"candidate_limit"`
	PageSize        int                     `yaml:"page_size"`
	MaxPageSize     int                     `yaml:"max_page_size"`
	ExplainTop      int                     `yaml:"explain_top"`
}

// ParseCandidateWindow returns how far back feed candidates are loaded.
func (r RankingConfig) ParseCandidateWindow() time.Duration {
	return parseDuration(r.CandidateWindow, 7*24*time.Hour)
}

// TrendConfig configures trend detection.
type TrendConfig struct {
	Window        string `yaml:"window"`
	TickerLimit   int    `yaml:"ticker_limit"`
	SectorLimit   int    `yaml:"sector_limit"`
	AlertMinPosts int    `yaml:"alert_min_posts"`
}

// ParseWindow returns the trend window as time.Duration.
func (t TrendConfig) ParseWindow() time.Duration {
	return parseDuration(t.Window, 24*time.Hour)
}

// MarketConfig configures market data providers.
type MarketConfig struct {
	Enabled           bool               `yaml:"enabled"`
	Workers           int                `yaml:"workers"`
	TickerTimeout     string             `yaml:"ticker_timeout"`
	RequestsPerSecond float64            `yaml:"requests_per_second"`
	QuoteURL          string             `yaml:"quote_url"`
	StockTwits        StockTwitsConfig   `yaml:"stocktwits"`
	Fundamentals      FundamentalsConfig `yaml:"fundamentals"`
	Earnings          EarningsConfig     `yaml:"earnings"`
}

// ParseTickerTimeout returns the per-ticker fetch timeout.
func (m MarketConfig) ParseTickerTimeout() time.Duration {
	return parseDuration(m.TickerTimeout, 10*time.Second)
}

// StockTwitsConfig configures social sentiment.
type StockTwitsConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"` // RapidAPI key; public stream when empty
	BaseURL string `yaml:"base_url"`
}

// FundamentalsConfig configures the Alpha Vantage overview lookup.
type FundamentalsConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// EarningsConfig configures earnings-calendar feeds.
type EarningsConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Feeds    []string `yaml:"feeds"`
	Lookback string   `yaml:"lookback"`
}

// ParseLookback returns how recent an earnings item must be.
func (e EarningsConfig) ParseLookback() time.Duration {
	return parseDuration(e.Lookback, 7*24*time.Hour)
}

// RedisConfig configures the shared market cache.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	TTL     string `yaml:"ttl"`
}

// ParseTTL returns the cache TTL.
func (r RedisConfig) ParseTTL() time.Duration {
	return parseDuration(r.TTL, 5*time.Minute)
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack    SlackConfig    `yaml:"slack"`
	Discord  DiscordConfig  `yaml:"discord"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// TelegramConfig for Telegram bot alerts.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./feedrank.db"},
		Log:      LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  "15s",
			WriteTimeout: "30s",
		},
		Schedule: ScheduleConfig{
			MarketRefresh: "*/15 * * * *",
			TrendDetect:   "*/30 * * * *",
			Reconcile:     "@hourly",
		},
		Ranking: RankingConfig{
			DefaultStrategy: rank.StrategyBalanced,
			CandidateWindow: "168h",
			CandidateLimit:  500,
			PageSize:        20,
			MaxPageSize:     100,
			ExplainTop:      5,
		},
		Trend: TrendConfig{
			Window:        "24h",
			TickerLimit:   10,
			SectorLimit:   5,
			AlertMinPosts: 5,
		},
		Reputation: reputation.DefaultConfig(),
		Market: MarketConfig{
			Enabled:           true,
			Workers:           4,
			TickerTimeout:     "10s",
			RequestsPerSecond: 2,
			StockTwits:        StockTwitsConfig{Enabled: true},
			Earnings: EarningsConfig{
				Lookback: "168h",
				Feeds: []string{
					"https://www.nasdaq.com/feed/rssoutbound?category=Earnings",
				},
			},
		},
		Redis:  RedisConfig{TTL: "5m"},
		Alerts: AlertsConfig{},
	}
}

// Load reads an optional .env file and a YAML config file, then applies env
// var overrides.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads .env from the working directory when present. Existing
// environment variables win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("FEEDRANK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FEEDRANK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("STOCKTWITS_API_KEY"); v != "" {
		cfg.Market.StockTwits.APIKey = v
		cfg.Market.StockTwits.Enabled = true
	}
	if v := os.Getenv("MARKET_DATA_API_KEY"); v != "" {
		cfg.Market.Fundamentals.APIKey = v
		cfg.Market.Fundamentals.Enabled = true
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Alerts.Telegram.BotToken = v
		cfg.Alerts.Telegram.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Alerts.Telegram.ChatID = id
	}
	if v := os.Getenv("REPUTATION_DECAY_FACTOR"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse REPUTATION_DECAY_FACTOR: %w", err)
		}
		cfg.Reputation.DecayFactor = f
	}
	if v := os.Getenv("MIN_REPUTATION_FOR_VERIFIED"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse MIN_REPUTATION_FOR_VERIFIED: %w", err)
		}
		cfg.Reputation.VerificationThreshold = f
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
