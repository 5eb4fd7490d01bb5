// Package indentation implements the indentation-fixer game: the player
// shifts code lines left and right until every line sits at its target depth,
// across a short run of levels sampled from a larger pool.
package indentation

import (
	"math/rand"
	"time"

	"github.com/terra-clan/pylearn-arcade/internal/game"
)

// Player events
const (
	EventSelectLine = "select_line"
	EventIndent     = "indent"
	EventSetIndent  = "set_indent"
	EventKey        = "key"
)

// TimerAdvance moves on to the next level after a solved one.
const TimerAdvance = "advance"

// Audio cues
const (
	CueIndent        = "indent"
	CueLineCorrect   = "line_correct"
	CueLevelComplete = "level_complete"
)

const (
	advanceDelay = 600 * time.Millisecond
	// perLevelEstimate is reported as time spent for each solved level.
	perLevelEstimate = 30 * time.Second
)

// Engine drives one indentation run.
type Engine struct {
	cfg Config
	rng *rand.Rand

	phase     game.Phase
	levels    []Level
	current   int
	indents   []int
	selected  int
	solved    int
	score     int
	startedAt time.Time

	// autoFinished locks the board once a level is solved so the advance
	// fires once.
	autoFinished bool
	result       *game.Result
}

// New creates an engine and samples its first run.
func New(cfg Config, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.PerRun <= 0 {
		cfg.PerRun = LevelsPerRun
	}
	e := &Engine{cfg: cfg, rng: rng}
	e.resetRun()
	return e
}

// Kind returns game.KindIndentation
func (e *Engine) Kind() game.Kind { return game.KindIndentation }

// Phase returns the current phase
func (e *Engine) Phase() game.Phase { return e.phase }

// Levels returns the sampled levels of this run.
func (e *Engine) Levels() []Level { return e.levels }

// Indents returns a copy of the current level's indents.
func (e *Engine) Indents() []int { return append([]int(nil), e.indents...) }

// Correct reports whether line i sits at its target depth.
func (e *Engine) Correct(i int) bool {
	if e.current >= len(e.levels) || i < 0 || i >= len(e.indents) {
		return false
	}
	return e.indents[i] == e.levels[e.current].Lines[i].TargetIndent
}

// Dispatch applies one event.
func (e *Engine) Dispatch(ev game.Event) ([]game.Effect, error) {
	switch ev.Type {
	case game.EventStart:
		if e.phase != game.PhaseStart {
			return nil, game.ErrInvalidPhase
		}
		e.phase = game.PhaseRunning
		e.startedAt = ev.At
		if len(e.levels) == 0 {
			return e.complete(), nil
		}
		return nil, nil
	case EventSelectLine:
		if err := e.editable(); err != nil {
			return nil, err
		}
		if ev.ID < 0 || ev.ID >= len(e.indents) {
			return nil, game.ErrOutOfRange
		}
		e.selected = ev.ID
		return nil, nil
	case EventIndent:
		if err := e.editable(); err != nil {
			return nil, err
		}
		return e.setIndent(e.selected, e.indentAt(e.selected)+ev.Delta), nil
	case EventSetIndent:
		if err := e.editable(); err != nil {
			return nil, err
		}
		if ev.ID < 0 || ev.ID >= len(e.indents) {
			return nil, game.ErrOutOfRange
		}
		e.selected = ev.ID
		return e.setIndent(ev.ID, ev.Value), nil
	case EventKey:
		if err := e.editable(); err != nil {
			return nil, err
		}
		return e.onKey(ev.Key), nil
	case game.EventTimer:
		if ev.Timer == TimerAdvance {
			return e.advance(), nil
		}
		return nil, nil
	case game.EventReset:
		if e.phase != game.PhaseCompleted {
			return nil, game.ErrInvalidPhase
		}
		e.resetRun()
		return []game.Effect{game.StopTimer{Name: TimerAdvance}}, nil
	}
	return nil, game.ErrUnknownEvent
}

func (e *Engine) editable() error {
	if e.phase != game.PhaseRunning {
		return game.ErrInvalidPhase
	}
	return nil
}

func (e *Engine) resetRun() {
	e.phase = game.PhaseStart
	e.levels = Sample(e.cfg.Levels, e.cfg.PerRun, e.rng)
	e.solved = 0
	e.score = 0
	e.startedAt = time.Time{}
	e.result = nil
	e.loadLevel(0)
}

func (e *Engine) loadLevel(i int) {
	e.current = i
	e.selected = 0
	e.autoFinished = false
	e.indents = nil
	if i < len(e.levels) {
		e.indents = e.levels[i].StartIndents()
	}
}

func (e *Engine) indentAt(i int) int {
	if i < 0 || i >= len(e.indents) {
		return 0
	}
	return e.indents[i]
}

func (e *Engine) onKey(key string) []game.Effect {
	switch key {
	case "[":
		return e.setIndent(e.selected, e.indentAt(e.selected)-1)
	case "]":
		return e.setIndent(e.selected, e.indentAt(e.selected)+1)
	case "ArrowUp":
		if e.selected > 0 {
			e.selected--
		}
	case "ArrowDown":
		if e.selected < len(e.indents)-1 {
			e.selected++
		}
	}
	return nil
}

// setIndent changes one line, clamped to [0, MaxIndent]. Edits on a solved
// level are ignored.
func (e *Engine) setIndent(i, value int) []game.Effect {
	if e.autoFinished || i < 0 || i >= len(e.indents) {
		return nil
	}
	value = clamp(value)
	if e.indents[i] == value {
		return nil
	}
	wasCorrect := e.Correct(i)
	e.indents[i] = value

	effects := []game.Effect{game.PlayCue{Cue: CueIndent}}
	if !wasCorrect && e.Correct(i) {
		effects = append(effects, game.PlayCue{Cue: CueLineCorrect})
	}
	if e.allCorrect() {
		e.autoFinished = true
		e.solved++
		e.score += len(e.levels[e.current].Lines)
		effects = append(effects,
			game.PlayCue{Cue: CueLevelComplete},
			game.StartTimer{Name: TimerAdvance, After: advanceDelay},
		)
	}
	return effects
}

func (e *Engine) allCorrect() bool {
	for i := range e.indents {
		if !e.Correct(i) {
			return false
		}
	}
	return len(e.indents) > 0
}

func (e *Engine) advance() []game.Effect {
	if e.phase != game.PhaseRunning || !e.autoFinished {
		return nil
	}
	if e.current+1 < len(e.levels) {
		e.loadLevel(e.current + 1)
		return nil
	}
	return e.complete()
}

func (e *Engine) complete() []game.Effect {
	if e.result != nil {
		return nil
	}
	e.phase = game.PhaseCompleted
	res := game.Result{
		Slug:      e.cfg.Slug,
		Score:     e.score,
		TimeSpent: time.Duration(e.solved) * perLevelEstimate,
		Items:     len(e.levels),
	}
	e.result = &res
	return []game.Effect{
		game.StopTimer{Name: TimerAdvance},
		game.Completed{Result: res},
	}
}
