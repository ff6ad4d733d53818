package market

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

// EarningsFeed scans earnings-calendar RSS/Atom feeds for tickers that
// reported within the lookback window.
type EarningsFeed struct {
	urls     []string
	lookback time.Duration
	parser   *gofeed.Parser
	guard    *guard
	log      zerolog.Logger
	now      func() time.Time
}

// DefaultEarningsLookback matches the "released in the last week" rule.
const DefaultEarningsLookback = 7 * 24 * time.Hour

// NewEarningsFeed creates an earnings provider over the given feed URLs.
func NewEarningsFeed(urls []string, lookback time.Duration, cfg GuardConfig, log zerolog.Logger) *EarningsFeed {
	if lookback <= 0 {
		lookback = DefaultEarningsLookback
	}
	return &EarningsFeed{
		urls:     urls,
		lookback: lookback,
		parser:   gofeed.NewParser(),
		guard:    newGuard(ProviderEarnings, cfg),
		log:      log,
		now:      time.Now,
	}
}

// Reporting returns the set of tickers mentioned by recent items. A feed that
// fails is skipped; the call errors only when every feed fails.
func (e *EarningsFeed) Reporting(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	var failed int
	var lastErr error

	for _, u := range e.urls {
		feed, err := e.fetch(ctx, u)
		if err != nil {
			failed++
			lastErr = err
			e.log.Warn().Err(err).Str("feed", u).Msg("earnings feed error")
			continue
		}
		e.collect(feed, out)
	}

	if len(e.urls) > 0 && failed == len(e.urls) {
		return nil, fmt.Errorf("all earnings feeds failed: %w", lastErr)
	}
	return out, nil
}

func (e *EarningsFeed) fetch(ctx context.Context, u string) (*gofeed.Feed, error) {
	var feed *gofeed.Feed
	err := e.guard.get(ctx, u, nil, func(body io.Reader) error {
		parsed, err := e.parser.Parse(body)
		if err != nil {
			return fmt.Errorf("parse earnings feed: %w", err)
		}
		feed = parsed
		return nil
	})
	return feed, err
}

func (e *EarningsFeed) collect(feed *gofeed.Feed, out map[string]bool) {
	cutoff := e.now().Add(-e.lookback)
	for _, item := range feed.Items {
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published == nil || published.Before(cutoff) {
			continue
		}
		for _, t := range ExtractTickers(item.Title + " " + item.Description) {
			out[t] = true
		}
		for _, c := range item.Categories {
			if tickerCategory.MatchString(c) {
				out[c] = true
			}
		}
	}
}

var (
	tickerMention  = regexp.MustCompile(`\$([A-Z]{1,5})\b|\(([A-Z]{1,5})\)|(?i:nyse|nasdaq):\s*([A-Z]{1,5})\b`)
	tickerCategory = regexp.MustCompile(`^[A-Z]{1,5}$`)
)

// ExtractTickers finds cashtags, parenthesized symbols and exchange-prefixed
// symbols in text, in first-seen order.
func ExtractTickers(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range tickerMention.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if g != "" && !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	return out
}
