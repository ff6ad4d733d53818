// Package reputation derives author reputation from post quality history and
// received reactions.
package reputation

import (
	"math"
	"time"

	"github.com/elonfeng/feedrank/pkg/insight"
)

const (
	DefaultDecayFactor           = 0.95
	DefaultVerificationThreshold = 50.0

	// MaxScore bounds every full recompute.
	MaxScore = 100.0

	// missingAgeDays is the age assumed for a post without a timestamp.
	missingAgeDays = 365
	// decayAfterDays is the age past which the global decay kicks in.
	decayAfterDays = 30
	// engagementCap limits how much reactions alone can contribute.
	engagementCap = 50.0
)

// Config holds process-wide reputation constants.
type Config struct {
	DecayFactor           float64 `yaml:"decay_factor"`
	VerificationThreshold float64 `yaml:"verification_threshold"`
}

// DefaultConfig returns the built-in constants.
func DefaultConfig() Config {
	return Config{
		DecayFactor:           DefaultDecayFactor,
		VerificationThreshold: DefaultVerificationThreshold,
	}
}

// PostQuality is the slice of a post that reputation depends on.
type PostQuality struct {
	QualityScore float64   `json:"quality_score" db:"quality_score"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Calculator computes reputation scores. Safe for concurrent use.
type Calculator struct {
	cfg Config
	now func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithClock overrides the time source used to age posts.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// NewCalculator creates a calculator. A non-positive decay factor falls back
// to the default.
func NewCalculator(cfg Config, opts ...Option) *Calculator {
	if cfg.DecayFactor <= 0 || math.IsNaN(cfg.DecayFactor) {
		cfg.DecayFactor = DefaultDecayFactor
	}
	c := &Calculator{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the constants the calculator was built with.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Calculate recomputes a reputation score in [0, 100] from scratch.
//
// Each post contributes quality/100*10 scaled by its recency weight. The
// reaction boost is capped at 50. When the newest post is older than 30 days
// the total is decayed once by DecayFactor^(age/30).
func (c *Calculator) Calculate(posts []PostQuality, reactions map[insight.ReactionKind]int) float64 {
	now := c.now()
	score := 0.0

	newest := -1
	for _, p := range posts {
		age := ageDays(p.CreatedAt, now)
		score += insight.Clamp(p.QualityScore, 0, 100) / 100 * 10 * recencyWeight(age)
		if newest < 0 || age < newest {
			newest = age
		}
	}

	score += engagementBoost(reactions)

	if newest > decayAfterDays {
		score *= math.Pow(c.cfg.DecayFactor, float64(newest)/decayAfterDays)
	}

	return insight.Clamp(score, 0, MaxScore)
}

// ShouldBeVerified reports whether score reaches the verification threshold.
func (c *Calculator) ShouldBeVerified(score float64) bool {
	return score >= c.cfg.VerificationThreshold
}

// ApplyReactionDelta nudges a stored score for a single reaction event. It is
// the hot path; Calculate is the authoritative value and overwrites it on the
// next reconciliation.
func ApplyReactionDelta(current float64, kind insight.ReactionKind, positive bool) float64 {
	if positive {
		switch kind {
		case insight.ReactionHelpful:
			return current + 1.0
		case insight.ReactionLike:
			return current + 0.2
		case insight.ReactionBullish, insight.ReactionBearish:
			return current + 0.1
		}
		return current
	}
	if kind == insight.ReactionDislike {
		return math.Max(0, current-0.5)
	}
	return current
}

// ageDays is the whole number of days since t, never negative.
func ageDays(t time.Time, now time.Time) int {
	if t.IsZero() {
		return missingAgeDays
	}
	d := int(math.Floor(now.Sub(t).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}

func recencyWeight(days int) float64 {
	switch {
	case days < 7:
		return 1.0
	case days < 30:
		return 0.8
	case days < 90:
		return 0.5
	default:
		return 0.2
	}
}

func engagementBoost(reactions map[insight.ReactionKind]int) float64 {
	likes := nonNegative(reactions[insight.ReactionLike])
	helpful := nonNegative(reactions[insight.ReactionHelpful])
	bullish := nonNegative(reactions[insight.ReactionBullish])

	raw := 0.5*likes + 2.0*helpful + 0.3*bullish
	return math.Min(raw/10, engagementCap)
}

func nonNegative(n int) float64 {
	if n < 0 {
		return 0
	}
	return float64(n)
}
