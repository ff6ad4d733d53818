package trend

import (
	"sort"

	"github.com/elonfeng/feedrank/pkg/insight"
)

// Kind is the dimension a community trend is counted on.
type Kind string

const (
	KindTicker      Kind = "ticker"
	KindSector      Kind = "sector"
	KindInsightType Kind = "insight_type"
)

// Default result limits per kind. Zero means unbounded.
const (
	DefaultTickerLimit = 10
	DefaultSectorLimit = 5
)

// Record is one trending ticker, sector or insight type.
type Record struct {
	Kind      Kind   `json:"kind"`
	Key       string `json:"key"`
	PostCount int    `json:"post_count"`
	// Sentiment is the mean per-post (bullish-bearish)/(bullish+bearish)
	// over posts with at least one bullish or bearish reaction. Only set
	// for ticker trends.
	Sentiment *float64 `json:"aggregate_sentiment,omitempty"`
	Magnitude float64  `json:"magnitude"`
}

// Detector aggregates a batch of posts into community trends.
type Detector struct {
	tickerLimit      int
	sectorLimit      int
	insightTypeLimit int
}

// NewDetector creates a detector. Non-positive limits fall back to the
// defaults; insight types are never capped.
func NewDetector(tickerLimit, sectorLimit int) *Detector {
	if tickerLimit <= 0 {
		tickerLimit = DefaultTickerLimit
	}
	if sectorLimit <= 0 {
		sectorLimit = DefaultSectorLimit
	}
	return &Detector{tickerLimit: tickerLimit, sectorLimit: sectorLimit}
}

// Detect returns ticker trends, then sector trends, then insight type
// trends, each ordered by post count with ties in first-seen order.
func (d *Detector) Detect(posts []insight.Post) []Record {
	records := d.Tickers(posts)
	records = append(records, d.Sectors(posts)...)
	records = append(records, d.InsightTypes(posts)...)
	return records
}

// Tickers counts ticker mentions and averages their reaction sentiment.
func (d *Detector) Tickers(posts []insight.Post) []Record {
	c := newCounter()
	sentiment := make(map[string][]float64)

	for _, p := range posts {
		if p.Ticker == "" {
			continue
		}
		c.add(p.Ticker)
		if total := p.BullishCount + p.BearishCount; total > 0 {
			s := float64(p.BullishCount-p.BearishCount) / float64(total)
			sentiment[p.Ticker] = append(sentiment[p.Ticker], s)
		}
	}

	records := c.top(KindTicker, d.tickerLimit)
	for i := range records {
		if vals := sentiment[records[i].Key]; len(vals) > 0 {
			avg := mean(vals)
			records[i].Sentiment = &avg
		}
	}
	return records
}

// Sectors counts sector mentions.
func (d *Detector) Sectors(posts []insight.Post) []Record {
	c := newCounter()
	for _, p := range posts {
		if p.Sector != "" {
			c.add(p.Sector)
		}
	}
	return c.top(KindSector, d.sectorLimit)
}

// InsightTypes counts insight types.
func (d *Detector) InsightTypes(posts []insight.Post) []Record {
	c := newCounter()
	for _, p := range posts {
		if p.InsightType != "" {
			c.add(string(p.InsightType))
		}
	}
	return c.top(KindInsightType, d.insightTypeLimit)
}

// counter counts keys and remembers first-seen order.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) top(kind Kind, limit int) []Record {
	records := make([]Record, 0, len(c.order))
	for _, key := range c.order {
		n := c.counts[key]
		records = append(records, Record{
			Kind:      kind,
			Key:       key,
			PostCount: n,
			Magnitude: float64(n),
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PostCount > records[j].PostCount
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
