// Package rules parses per-symbol trigger configuration into evaluable
// rule objects.
package rules

import (
	"fmt"
	"math"
	"sort"

	"ashare-sentinel/internal/errors"
)

// Kind identifies the variant of a trigger rule.
type Kind string

const (
	// KindUpsideLevel fires when the last price touches or exceeds a level.
	KindUpsideLevel Kind = "up"
	// KindDownsideBreak fires when the last price drops to or below a level.
	KindDownsideBreak Kind = "down"
	// KindVwapCross fires when the last price crosses the running VWAP.
	KindVwapCross Kind = "vwap"
)

// Rule is one evaluable trigger. Level is meaningful only for the
// UpsideLevel and DownsideBreak kinds.
type Rule struct {
	Kind  Kind
	Level float64
}

// Key returns the stable de-dup key for the rule, e.g. "up:10.03".
// Identical rules share a key and so fire at most once per day between them.
func (r Rule) Key() string {
	switch r.Kind {
	case KindVwapCross:
		return string(KindVwapCross)
	default:
		return fmt.Sprintf("%s:%.2f", r.Kind, r.Level)
	}
}

// Set is a parsed, validated collection of trigger rules.
type Set struct {
	UpsideLevels  []Rule // ascending by level
	DownsideBreak *Rule
	VwapCross     bool
}

// Rules returns all rules in evaluation order: upside levels ascending,
// then the downside break, then the VWAP cross.
func (s Set) Rules() []Rule {
	out := make([]Rule, 0, len(s.UpsideLevels)+2)
	out = append(out, s.UpsideLevels...)
	if s.DownsideBreak != nil {
		out = append(out, *s.DownsideBreak)
	}
	if s.VwapCross {
		out = append(out, Rule{Kind: KindVwapCross})
	}
	return out
}

// Empty reports whether the set contains no rules.
func (s Set) Empty() bool {
	return len(s.UpsideLevels) == 0 && s.DownsideBreak == nil && !s.VwapCross
}

// TriggerConfig is the raw per-symbol trigger configuration as loaded from
// the config file. All fields are optional.
type TriggerConfig struct {
	LevelsUp  []float64 `mapstructure:"levels_up"`
	Breakdown float64   `mapstructure:"breakdown"`
	VwapCross *bool     `mapstructure:"vwap_cross"`
}

// Empty reports whether the raw config carries no triggers at all.
func (c TriggerConfig) Empty() bool {
	return len(c.LevelsUp) == 0 && c.Breakdown == 0 && c.VwapCross == nil
}

// Parse validates the raw config into a rule set. An absent or empty
// config falls back to the supplied default set, which comes from the
// config template rather than a built-in constant.
func Parse(cfg TriggerConfig, fallback TriggerConfig) (Set, error) {
	if cfg.Empty() {
		cfg = fallback
	}

	var set Set

	for _, lv := range cfg.LevelsUp {
		if err := checkLevel("levels_up", lv); err != nil {
			return Set{}, err
		}
		set.UpsideLevels = append(set.UpsideLevels, Rule{Kind: KindUpsideLevel, Level: lv})
	}
	// Ascending order so one tick crossing several levels fires them all.
	sort.Slice(set.UpsideLevels, func(i, j int) bool {
		return set.UpsideLevels[i].Level < set.UpsideLevels[j].Level
	})
	set.UpsideLevels = dedupe(set.UpsideLevels)

	if cfg.Breakdown != 0 {
		if err := checkLevel("breakdown", cfg.Breakdown); err != nil {
			return Set{}, err
		}
		set.DownsideBreak = &Rule{Kind: KindDownsideBreak, Level: cfg.Breakdown}
	}

	if cfg.VwapCross != nil {
		set.VwapCross = *cfg.VwapCross
	}

	return set, nil
}

func checkLevel(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.NewMalformedField(field, v)
	}
	if v <= 0 {
		return errors.NewNonPositiveLevel(field, v)
	}
	return nil
}

// dedupe drops rules whose key repeats; the slice must be sorted.
func dedupe(in []Rule) []Rule {
	out := in[:0]
	lastKey := ""
	for _, r := range in {
		if k := r.Key(); k != lastKey {
			out = append(out, r)
			lastKey = k
		}
	}
	return out
}
