package insight

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// PostRecord is a post as supplied by an external store or API caller.
// Every field except ID is optional; Normalize turns it into a Post.
type PostRecord struct {
	ID                    int64      `json:"id"`
	AuthorID              *int64     `json:"author_id"`
	Title                 *string    `json:"title"`
	Ticker                *string    `json:"ticker"`
	Sector                *string    `json:"sector"`
	InsightType           *string    `json:"insight_type"`
	QualityScore          *float64   `json:"quality_score"`
	LikeCount             *int       `json:"like_count"`
	DislikeCount          *int       `json:"dislike_count"`
	BullishCount          *int       `json:"bullish_count"`
	BearishCount          *int       `json:"bearish_count"`
	HelpfulCount          *int       `json:"helpful_count"`
	AuthorReputationScore *float64   `json:"author_reputation_score"`
	CreatedAt             *Timestamp `json:"created_at"`
}

// Timestamp accepts RFC 3339 or loosely formatted strings, unix seconds, or
// null. Strings without a zone are read as UTC. Numbers outside the unix
// seconds range up to year 9999 are treated as missing.
type Timestamp struct {
	Time time.Time
	Raw  string
}

// At wraps a known time.
func At(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode timestamp: %w", err)
		}
		ts.Raw = s
		return nil
	}
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	// Out of range values, including millisecond epochs, stay missing.
	if err == nil && secs >= 0 && secs <= maxUnixSeconds {
		ts.Time = time.Unix(int64(secs), 0).UTC()
	}
	return nil
}

// maxUnixSeconds is 9999-12-31T23:59:59Z.
const maxUnixSeconds = 253402300799

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	t, ok := ts.Resolve()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Resolve returns the parsed instant in UTC. ok is false when the
// timestamp is empty or unparsable.
func (ts *Timestamp) Resolve() (time.Time, bool) {
	if ts == nil {
		return time.Time{}, false
	}
	if !ts.Time.IsZero() {
		return ts.Time.UTC(), true
	}
	raw := strings.TrimSpace(ts.Raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Normalize resolves every optional field to its neutral default and
// bounds numeric fields. It is the only place defaults are decided.
func (r PostRecord) Normalize() Post {
	p := Post{
		ID:                    r.ID,
		QualityScore:          Clamp(finite(r.QualityScore), 0, 100),
		LikeCount:             count(r.LikeCount),
		DislikeCount:          count(r.DislikeCount),
		BullishCount:          count(r.BullishCount),
		BearishCount:          count(r.BearishCount),
		HelpfulCount:          count(r.HelpfulCount),
		AuthorReputationScore: Clamp(finite(r.AuthorReputationScore), 0, 100),
	}
	if r.AuthorID != nil {
		p.AuthorID = *r.AuthorID
	}
	if r.Title != nil {
		p.Title = *r.Title
	}
	p.Ticker = NormalizeTicker(str(r.Ticker))
	p.Sector = strings.TrimSpace(str(r.Sector))
	p.InsightType = InsightType(strings.TrimSpace(str(r.InsightType)))
	if t, ok := r.CreatedAt.Resolve(); ok {
		p.CreatedAt = t
	}
	return p
}

// NormalizeRecords normalizes a batch, preserving order.
func NormalizeRecords(records []PostRecord) []Post {
	posts := make([]Post, len(records))
	for i, r := range records {
		posts[i] = r.Normalize()
	}
	return posts
}

// Normalize trims and canonicalizes a preference record in place and
// returns it. A nil receiver stays nil.
func (p *Preferences) Normalize() *Preferences {
	if p == nil {
		return nil
	}
	p.PreferredSectors = trimAll(p.PreferredSectors, strings.TrimSpace)
	p.PreferredInsightTypes = trimAll(p.PreferredInsightTypes, strings.TrimSpace)
	p.FollowedTickers = trimAll(p.FollowedTickers, NormalizeTicker)
	if strings.TrimSpace(p.RiskTolerance) == "" {
		p.RiskTolerance = DefaultRiskTolerance
	}
	return p
}

// NormalizeTicker upper-cases a ticker symbol and strips a leading '$'.
func NormalizeTicker(t string) string {
	t = strings.TrimSpace(t)
	t = strings.TrimPrefix(t, "$")
	return strings.ToUpper(t)
}

// Normalize bounds sentiment and drops NaN values.
func (t TickerContext) Normalize() TickerContext {
	t.SocialSentiment = Clamp(t.SocialSentiment, -1, 1)
	if math.IsNaN(t.PriceChange24h) || math.IsInf(t.PriceChange24h, 0) {
		t.PriceChange24h = 0
	}
	if math.IsNaN(t.VolumeChange24h) || math.IsInf(t.VolumeChange24h, 0) {
		t.VolumeChange24h = 0
	}
	return t
}

func trimAll(in []string, fn func(string) string) []string {
	out := in[:0]
	for _, s := range in {
		if s = fn(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func finite(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return *v
}

func count(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
