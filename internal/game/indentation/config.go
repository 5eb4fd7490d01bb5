package indentation

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/terra-clan/pylearn-arcade/internal/normalize"
)

const (
	// MaxIndent is the deepest indentation a line can take, in 4-space units.
	MaxIndent = 6
	// LevelsPerRun is how many levels one playthrough samples from the pool.
	LevelsPerRun = 5
	// IndentWidth is the number of spaces per indentation unit.
	IndentWidth = 4
)

// IndentationLine is a source line and its correct depth.
type IndentationLine struct {
	Text         string `json:"text" yaml:"text"`
	TargetIndent int    `json:"targetIndent" yaml:"targetIndent"`
}

// Level is one puzzle. Scrambled is parallel to Lines and holds the starting
// indents; missing entries start at 0.
type Level struct {
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description,omitempty" yaml:"description"`
	Lines       []IndentationLine `json:"lines" yaml:"lines"`
	Scrambled   []int             `json:"scrambled" yaml:"scrambled"`
}

// Config is the level pool of one indentation activity.
type Config struct {
	Slug         string  `json:"slug"`
	Title        string  `json:"title"`
	Instructions string  `json:"instructions,omitempty"`
	PerRun       int     `json:"perRun"`
	Levels       []Level `json:"levels"`
}

// StartIndents returns the clamped starting indents for every line.
func (l Level) StartIndents() []int {
	out := make([]int, len(l.Lines))
	for i := range out {
		if i < len(l.Scrambled) {
			out[i] = clamp(l.Scrambled[i])
		}
	}
	return out
}

// Complexity ranks levels from easy to hard.
func (l Level) Complexity() float64 {
	total, deepest := 0, 0
	for _, ln := range l.Lines {
		total += ln.TargetIndent
		if ln.TargetIndent > deepest {
			deepest = ln.TargetIndent
		}
	}
	return 1.0*float64(total) + 2.0*float64(deepest) + 0.5*float64(len(l.Lines))
}

// Playable reports whether the level has lines, reachable targets, and a
// starting position that still needs fixing.
func (l Level) Playable() bool {
	if len(l.Lines) == 0 {
		return false
	}
	start := l.StartIndents()
	solved := true
	for i, ln := range l.Lines {
		if ln.TargetIndent < 0 || ln.TargetIndent > MaxIndent {
			return false
		}
		if start[i] != ln.TargetIndent {
			solved = false
		}
	}
	return !solved
}

// Sample picks up to n playable levels at random and orders them easiest
// first. Ties keep pool order.
func Sample(pool []Level, n int, rng *rand.Rand) []Level {
	type ranked struct {
		level Level
		idx   int
		score float64
	}
	var candidates []ranked
	for i, l := range pool {
		if l.Playable() {
			candidates = append(candidates, ranked{level: l, idx: i, score: l.Complexity()})
		}
	}
	if n <= 0 {
		n = LevelsPerRun
	}

	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].idx < candidates[j].idx
		}
		return candidates[i].score < candidates[j].score
	})

	out := make([]Level, len(candidates))
	for i, c := range candidates {
		out[i] = c.level
	}
	return out
}

var (
	levelLists = []normalize.Extractor{
		normalize.Key("levels"),
		normalize.Key("indentation.levels"),
		normalize.Key("puzzles"),
		normalize.Self,
	}
	lineLists = []normalize.Extractor{
		normalize.Key("lines"),
		normalize.Key("code"),
	}
)

// ConfigFromContent builds the level pool from loosely shaped content. A
// content object that is itself a single level (has "lines") yields a pool of
// one.
func ConfigFromContent(slug, title, instructions string, content any) Config {
	v := normalize.Decode(content)
	cfg := Config{Slug: slug, Title: title, Instructions: instructions, PerRun: LevelsPerRun}
	if cfg.Title == "" {
		cfg.Title = normalize.StringAt(v, "title")
	}
	if cfg.Instructions == "" {
		cfg.Instructions = normalize.StringAt(v, "instructions")
	}
	if n, ok := normalize.IntAt(v, "levelsPerRun", "levels_per_run", "sample"); ok && n > 0 {
		cfg.PerRun = n
	}

	if _, ok := normalize.FirstOf(v, normalize.IsNonEmptyList, lineLists...); ok {
		if l, ok := levelFrom(v); ok {
			cfg.Levels = []Level{l}
		}
		return cfg
	}

	raw, ok := normalize.FirstOf(v, normalize.IsNonEmptyList, levelLists...)
	if !ok {
		return cfg
	}
	list, _ := normalize.List(raw)
	for _, item := range list {
		if l, ok := levelFrom(item); ok {
			cfg.Levels = append(cfg.Levels, l)
		}
	}
	return cfg
}

func levelFrom(item any) (Level, bool) {
	raw, ok := normalize.FirstOf(item, normalize.IsNonEmptyList, lineLists...)
	if !ok {
		return Level{}, false
	}
	list, _ := normalize.List(raw)

	l := Level{
		Title:       normalize.StringAt(item, "title", "name"),
		Description: normalize.StringAt(item, "description", "hint"),
	}
	for _, e := range list {
		if ln, ok := lineFrom(e); ok {
			l.Lines = append(l.Lines, ln)
		}
	}
	if len(l.Lines) == 0 {
		return Level{}, false
	}
	if s, ok := normalize.FirstOf(item, nil, normalize.Key("scrambled"), normalize.Key("start"), normalize.Key("initial")); ok {
		l.Scrambled, _ = normalize.Ints(s)
	}
	return l, true
}

// lineFrom accepts {"text": "...", "targetIndent": n} objects or raw strings
// whose leading spaces encode the target depth.
func lineFrom(e any) (IndentationLine, bool) {
	if s, ok := e.(string); ok {
		trimmed := strings.TrimLeft(s, " \t")
		if strings.TrimSpace(trimmed) == "" {
			return IndentationLine{}, false
		}
		lead := strings.ReplaceAll(s[:len(s)-len(trimmed)], "\t", strings.Repeat(" ", IndentWidth))
		return IndentationLine{Text: strings.TrimRight(trimmed, " \t"), TargetIndent: len(lead) / IndentWidth}, true
	}

	text := normalize.StringAt(e, "text", "code", "line")
	if strings.TrimSpace(text) == "" {
		return IndentationLine{}, false
	}
	target, _ := normalize.IntAt(e, "targetIndent", "target_indent", "target", "indent")
	return IndentationLine{Text: strings.TrimSpace(text), TargetIndent: target}, true
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxIndent {
		return MaxIndent
	}
	return n
}
