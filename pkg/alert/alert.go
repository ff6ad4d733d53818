package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/feedrank/pkg/insight"
	"github.com/elonfeng/feedrank/pkg/trend"
)

// Kind classifies a notification.
type Kind string

const (
	KindTickerTrend  Kind = "ticker_trend"
	KindMarketTrend  Kind = "market_trend"
	KindVerifiedUser Kind = "verified_user"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	Kind      Kind           `json:"kind"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Ticker    string         `json:"ticker,omitempty"`
	Magnitude float64        `json:"magnitude"`
	Sentiment *float64       `json:"sentiment,omitempty"`
	Posts     []insight.Post `json:"posts,omitempty"`
	At        time.Time      `json:"at"`
}

// maxPosts caps how many sample posts a notifier renders.
const maxPosts = 5

// TopPosts returns at most maxPosts sample posts.
func (n *Notification) TopPosts() []insight.Post {
	if len(n.Posts) > maxPosts {
		return n.Posts[:maxPosts]
	}
	return n.Posts
}

// TickerTrend builds a notification for a trending ticker.
func TickerTrend(r trend.Record, posts []insight.Post, at time.Time) *Notification {
	body := fmt.Sprintf("%d posts in the current window", r.PostCount)
	if r.Sentiment != nil {
		body += fmt.Sprintf(", community sentiment %+.2f", *r.Sentiment)
	}
	return &Notification{
		Kind:      KindTickerTrend,
		Title:     fmt.Sprintf("$%s is trending", r.Key),
		Body:      body,
		Ticker:    r.Key,
		Magnitude: r.Magnitude,
		Sentiment: r.Sentiment,
		Posts:     posts,
		At:        at,
	}
}

// MarketTrend builds a notification for a market condition.
func MarketTrend(mt trend.MarketTrend) *Notification {
	var body string
	switch mt.Type {
	case trend.MarketVolumeSpike:
		body = fmt.Sprintf("volume up %.0f%% on the previous session", mt.Magnitude)
	case trend.MarketPriceMovement:
		body = fmt.Sprintf("price moved %.1f%% in 24h", mt.Metadata["price_change"])
	case trend.MarketEarningsRelease:
		body = "earnings released this week"
	}
	return &Notification{
		Kind:      KindMarketTrend,
		Title:     fmt.Sprintf("$%s %s", mt.Ticker, mt.Type),
		Body:      body,
		Ticker:    mt.Ticker,
		Magnitude: mt.Magnitude,
		At:        mt.DetectedAt,
	}
}

// VerifiedUser builds a notification for an author crossing the
// verification threshold.
func VerifiedUser(username string, score float64, at time.Time) *Notification {
	return &Notification{
		Kind:      KindVerifiedUser,
		Title:     fmt.Sprintf("%s is now verified", username),
		Body:      fmt.Sprintf("reputation %.1f", score),
		Magnitude: score,
		At:        at,
	}
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers. One failing
// destination does not stop the others.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
