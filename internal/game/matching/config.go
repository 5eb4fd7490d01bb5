package matching

import (
	"strings"

	"github.com/terra-clan/pylearn-arcade/internal/normalize"
)

// DefaultTimeLimitSec applies when content carries no usable time limit.
const DefaultTimeLimitSec = 120

// MatchingPair is one left/right term pair. Its identity is its position in
// Config.Pairs, never its text.
type MatchingPair struct {
	Left        string `json:"left" yaml:"left"`
	Right       string `json:"right" yaml:"right"`
	Topic       string `json:"topic,omitempty" yaml:"topic"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation"`
}

// Config is the read-only definition of one matching activity.
type Config struct {
	Slug         string         `json:"slug"`
	Title        string         `json:"title"`
	TimeLimitSec int            `json:"timeLimitSec"`
	Instructions string         `json:"instructions,omitempty"`
	Pairs        []MatchingPair `json:"pairs"`
}

var (
	pairLists = []normalize.Extractor{
		normalize.Key("pairs"),
		normalize.Key("matchingPairs"),
		normalize.Key("matching_pairs"),
		normalize.Key("matching.pairs"),
		normalize.Key("items"),
		normalize.Self,
	}
	leftKeys  = []string{"left", "term", "question", "prompt"}
	rightKeys = []string{"right", "definition", "answer", "match"}
)

// ConfigFromContent builds a Config from loosely shaped activity content.
// Unusable content yields a Config with no pairs rather than an error.
func ConfigFromContent(slug, title string, timeLimitSec int, instructions string, content any) Config {
	v := normalize.Decode(content)

	cfg := Config{
		Slug:         slug,
		Title:        title,
		TimeLimitSec: timeLimitSec,
		Instructions: instructions,
	}
	if cfg.Title == "" {
		cfg.Title = normalize.StringAt(v, "title")
	}
	if cfg.Instructions == "" {
		cfg.Instructions = normalize.StringAt(v, "instructions")
	}
	if cfg.TimeLimitSec <= 0 {
		if n, ok := normalize.IntAt(v, "timeLimitSec", "timeLimit", "time_limit", "timeLimitSeconds"); ok {
			cfg.TimeLimitSec = n
		}
	}
	if cfg.TimeLimitSec <= 0 {
		cfg.TimeLimitSec = DefaultTimeLimitSec
	}

	raw, ok := normalize.FirstOf(v, normalize.IsNonEmptyList, pairLists...)
	if !ok {
		return cfg
	}
	list, _ := normalize.List(raw)
	for _, item := range list {
		if p, ok := pairFrom(item); ok {
			cfg.Pairs = append(cfg.Pairs, p)
		}
	}
	return cfg
}

func pairFrom(item any) (MatchingPair, bool) {
	// ["term", "definition"]
	if tuple, ok := normalize.List(item); ok {
		if len(tuple) < 2 {
			return MatchingPair{}, false
		}
		l, lok := normalize.String(tuple[0])
		r, rok := normalize.String(tuple[1])
		if !lok || !rok || strings.TrimSpace(l) == "" || strings.TrimSpace(r) == "" {
			return MatchingPair{}, false
		}
		return MatchingPair{Left: l, Right: r}, true
	}

	p := MatchingPair{
		Left:        normalize.StringAt(item, leftKeys...),
		Right:       normalize.StringAt(item, rightKeys...),
		Topic:       normalize.StringAt(item, "topic", "category"),
		Explanation: normalize.StringAt(item, "explanation", "hint"),
	}
	if p.Left == "" || p.Right == "" {
		return MatchingPair{}, false
	}
	return p, true
}
