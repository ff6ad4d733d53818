package rank

import (
	"fmt"
	"sort"
)

// Built-in strategy names.
const (
	StrategyBalanced       = "balanced"
	StrategyQualityFocused = "quality_focused"
	StrategyTrending       = "trending"
	StrategyDiverse        = "diverse"
	StrategyExpert         = "expert"
)

// Weights is the point budget a strategy allots to each signal. A signal
// at its maximum contributes its full budget to the ranking score.
type Weights struct {
	Quality    int `json:"quality" yaml:"quality"`
	Engagement int `json:"engagement" yaml:"engagement"`
	Reputation int `json:"reputation" yaml:"reputation"`
	Preference int `json:"preference" yaml:"preference"`
	Market     int `json:"market" yaml:"market"`
	Recency    int `json:"recency" yaml:"recency"`
}

// Total returns the sum of all budgets.
func (w Weights) Total() int {
	return w.Quality + w.Engagement + w.Reputation + w.Preference + w.Market + w.Recency
}

// Validate rejects negative budgets.
func (w Weights) Validate() error {
	for name, v := range map[string]int{
		"quality":    w.Quality,
		"engagement": w.Engagement,
		"reputation": w.Reputation,
		"preference": w.Preference,
		"market":     w.Market,
		"recency":    w.Recency,
	} {
		if v < 0 {
			return fmt.Errorf("%s weight is negative: %d", name, v)
		}
	}
	return nil
}

// Strategy is a named weight profile.
type Strategy struct {
	Name    string  `json:"name"`
	Weights Weights `json:"weights"`
	// DiversityBoost multiplies the diversity pass bonuses.
	DiversityBoost float64 `json:"diversity_boost"`
}

// DefaultStrategies returns the built-in strategy profiles.
func DefaultStrategies() map[string]Strategy {
	return map[string]Strategy{
		StrategyBalanced: {
			Name:           StrategyBalanced,
			Weights:        Weights{Quality: 40, Engagement: 20, Reputation: 15, Preference: 15, Market: 10, Recency: 5},
			DiversityBoost: 1.0,
		},
		StrategyQualityFocused: {
			Name:           StrategyQualityFocused,
			Weights:        Weights{Quality: 60, Engagement: 10, Reputation: 15, Preference: 10, Market: 5, Recency: 5},
			DiversityBoost: 1.0,
		},
		StrategyTrending: {
			Name:           StrategyTrending,
			Weights:        Weights{Quality: 25, Engagement: 15, Reputation: 10, Preference: 10, Market: 30, Recency: 10},
			DiversityBoost: 1.0,
		},
		StrategyDiverse: {
			Name:           StrategyDiverse,
			Weights:        Weights{Quality: 30, Engagement: 20, Reputation: 10, Preference: 20, Market: 10, Recency: 10},
			DiversityBoost: 2.0,
		},
		StrategyExpert: {
			Name:           StrategyExpert,
			Weights:        Weights{Quality: 35, Engagement: 10, Reputation: 35, Preference: 10, Market: 5, Recency: 5},
			DiversityBoost: 1.0,
		},
	}
}

// Table is an immutable set of strategies. The zero value is not usable;
// build one with NewTable.
type Table struct {
	strategies map[string]Strategy
}

// NewTable builds a table from the built-ins plus optional extra or
// replacement weight profiles. The balanced profile cannot be removed, so
// lookups always have a fallback.
func NewTable(overrides map[string]Weights) (*Table, error) {
	strategies := DefaultStrategies()
	for name, w := range overrides {
		if name == "" {
			return nil, fmt.Errorf("strategy override with empty name")
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", name, err)
		}
		s := strategies[name]
		s.Name = name
		s.Weights = w
		if s.DiversityBoost == 0 {
			s.DiversityBoost = 1.0
		}
		strategies[name] = s
	}
	return &Table{strategies: strategies}, nil
}

// MustTable is NewTable without overrides.
func MustTable() *Table {
	t, err := NewTable(nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the named strategy, falling back to balanced for unknown
// names.
func (t *Table) Lookup(name string) Strategy {
	if s, ok := t.strategies[name]; ok {
		return s
	}
	return t.strategies[StrategyBalanced]
}

// Has reports whether name is a configured strategy.
func (t *Table) Has(name string) bool {
	_, ok := t.strategies[name]
	return ok
}

// Names returns the configured strategy names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.strategies))
	for name := range t.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of every strategy, sorted by name.
func (t *Table) All() []Strategy {
	out := make([]Strategy, 0, len(t.strategies))
	for _, name := range t.Names() {
		out = append(out, t.strategies[name])
	}
	return out
}
