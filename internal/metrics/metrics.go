// Package metrics holds the Prometheus collectors for feedrank.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector on its own registry so instances never
// collide.
type Metrics struct {
	registry *prometheus.Registry

	RankDuration         *prometheus.HistogramVec
	RankedPosts          *prometheus.CounterVec
	MarketFetches        *prometheus.CounterVec
	TrendRecords         *prometheus.GaugeVec
	MarketTrends         prometheus.Gauge
	Reactions            *prometheus.CounterVec
	ReputationRecomputes prometheus.Counter
	AlertsSent           *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RankDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedrank_rank_duration_seconds",
				Help:    "Time spent ranking one batch of posts",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"strategy"},
		),
		RankedPosts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrank_ranked_posts_total",
				Help: "Posts scored by the ranking engine",
			},
			[]string{"strategy"},
		),
		MarketFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrank_market_fetches_total",
				Help: "Market data provider calls by outcome",
			},
			[]string{"provider", "result"},
		),
		TrendRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "feedrank_trend_records",
				Help: "Trend records produced by the latest detection run",
			},
			[]string{"kind"},
		),
		MarketTrends: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feedrank_market_trends",
			Help: "Market trends produced by the latest refresh",
		}),
		Reactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrank_reactions_total",
				Help: "Reactions recorded by kind",
			},
			[]string{"kind"},
		),
		ReputationRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedrank_reputation_recomputes_total",
			Help: "Users whose reputation was fully recomputed",
		}),
		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrank_alerts_sent_total",
				Help: "Alert broadcasts by outcome",
			},
			[]string{"result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrank_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"route", "method", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedrank_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RankDuration,
		m.RankedPosts,
		m.MarketFetches,
		m.TrendRecords,
		m.MarketTrends,
		m.Reactions,
		m.ReputationRecomputes,
		m.AlertsSent,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRank records one ranking call.
func (m *Metrics) ObserveRank(strategy string, posts int, took time.Duration) {
	m.RankDuration.WithLabelValues(strategy).Observe(took.Seconds())
	m.RankedPosts.WithLabelValues(strategy).Add(float64(posts))
}

// ObserveMarket records one market provider call.
func (m *Metrics) ObserveMarket(provider, result string) {
	m.MarketFetches.WithLabelValues(provider, result).Inc()
}
