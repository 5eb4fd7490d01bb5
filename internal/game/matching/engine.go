// Package matching implements the click-left, click-right pair matching game.
package matching

import (
	"math/rand"
	"time"

	"github.com/terra-clan/pylearn-arcade/internal/game"
)

// Player events
const (
	EventSelectLeft  = "select_left"
	EventSelectRight = "select_right"
)

// Timers
const (
	TimerCountdown = "countdown"
	TimerPulse     = "pulse"
	TimerClear     = "clear"
)

// Audio cues
const (
	CueMatch    = "match"
	CueMistake  = "mistake"
	CueComplete = "complete"
)

const (
	tickInterval  = time.Second
	pulseDuration = 650 * time.Millisecond
	clearDelay    = 350 * time.Millisecond
	none          = -1
)

// PairView is a pair tagged with its canonical id, the pair's 1-based
// position in the config. Both columns hold views of
// the same pairs in independent orders.
type PairView struct {
	ID   int
	Pair MatchingPair
}

// Engine drives one matching run: start -> running -> completed.
type Engine struct {
	cfg Config
	rng *rand.Rand

	phase    game.Phase
	left     []PairView
	right    []PairView
	selLeft  int
	selRight int
	matched  map[int]bool
	order    []int
	mistakes int
	pulse    int
	clearing bool

	startedAt  time.Time
	timeLeft   int
	completing bool
	result     *game.Result
}

// New creates an engine in the start phase. A nil rng is seeded from the clock.
func New(cfg Config, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.TimeLimitSec <= 0 {
		cfg.TimeLimitSec = DefaultTimeLimitSec
	}
	e := &Engine{cfg: cfg, rng: rng}
	e.resetRun()
	return e
}

// Kind returns game.KindMatching
func (e *Engine) Kind() game.Kind { return game.KindMatching }

// Phase returns the current phase
func (e *Engine) Phase() game.Phase { return e.phase }

// MatchedIDs returns matched pair ids in the order they were matched.
func (e *Engine) MatchedIDs() []int {
	return append([]int(nil), e.order...)
}

// Mistakes returns the number of wrong commits in this run.
func (e *Engine) Mistakes() int { return e.mistakes }

// TimeLeft returns the countdown in seconds.
func (e *Engine) TimeLeft() int { return e.timeLeft }

// Dispatch applies one event.
func (e *Engine) Dispatch(ev game.Event) ([]game.Effect, error) {
	switch ev.Type {
	case game.EventStart:
		return e.start(ev.At)
	case EventSelectLeft:
		return e.selectID(ev.ID, true, ev.At)
	case EventSelectRight:
		return e.selectID(ev.ID, false, ev.At)
	case game.EventFinish:
		switch e.phase {
		case game.PhaseRunning:
			return e.complete(ev.At), nil
		case game.PhaseCompleted:
			return nil, nil
		}
		return nil, game.ErrInvalidPhase
	case game.EventReset:
		if e.phase != game.PhaseCompleted {
			return nil, game.ErrInvalidPhase
		}
		e.resetRun()
		return []game.Effect{
			game.StopTimer{Name: TimerCountdown},
			game.StopTimer{Name: TimerPulse},
			game.StopTimer{Name: TimerClear},
		}, nil
	case game.EventTimer:
		return e.onTimer(ev), nil
	}
	return nil, game.ErrUnknownEvent
}

func (e *Engine) resetRun() {
	e.phase = game.PhaseStart
	e.left = shuffled(e.cfg.Pairs, e.rng)
	e.right = shuffled(e.cfg.Pairs, e.rng)
	e.selLeft, e.selRight = none, none
	e.matched = make(map[int]bool, len(e.cfg.Pairs))
	e.order = nil
	e.mistakes = 0
	e.pulse = none
	e.clearing = false
	e.startedAt = time.Time{}
	e.timeLeft = e.cfg.TimeLimitSec
	e.completing = false
	e.result = nil
}

// shuffled returns a Fisher-Yates permutation of the pairs with ids attached.
func shuffled(pairs []MatchingPair, rng *rand.Rand) []PairView {
	out := make([]PairView, len(pairs))
	for i, p := range pairs {
		out[i] = PairView{ID: i + 1, Pair: p}
	}
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (e *Engine) start(at time.Time) ([]game.Effect, error) {
	if e.phase != game.PhaseStart {
		return nil, game.ErrInvalidPhase
	}
	e.phase = game.PhaseRunning
	e.startedAt = at
	e.timeLeft = e.cfg.TimeLimitSec

	effects := []game.Effect{game.StartTimer{Name: TimerCountdown, After: tickInterval, Repeat: true}}
	if len(e.cfg.Pairs) == 0 {
		effects = append(effects, e.complete(at)...)
	}
	return effects, nil
}

func (e *Engine) selectID(id int, left bool, at time.Time) ([]game.Effect, error) {
	if e.phase != game.PhaseRunning {
		return nil, game.ErrInvalidPhase
	}
	if id < 1 || id > len(e.cfg.Pairs) {
		return nil, game.ErrOutOfRange
	}
	// matched items are disabled, and the board is frozen while a wrong pair flashes
	if e.matched[id] || e.clearing {
		return nil, nil
	}

	slot := &e.selRight
	if left {
		slot = &e.selLeft
	}
	if *slot == id {
		*slot = none
		return nil, nil
	}
	*slot = id

	if e.selLeft == none || e.selRight == none {
		return nil, nil
	}
	return e.tryCommitMatch(at), nil
}

func (e *Engine) tryCommitMatch(at time.Time) []game.Effect {
	if e.selLeft != e.selRight {
		e.mistakes++
		e.clearing = true
		return []game.Effect{
			game.PlayCue{Cue: CueMistake},
			game.StartTimer{Name: TimerClear, After: clearDelay},
		}
	}

	id := e.selLeft
	e.matched[id] = true
	e.order = append(e.order, id)
	e.selLeft, e.selRight = none, none
	e.pulse = id

	effects := []game.Effect{
		game.PlayCue{Cue: CueMatch},
		game.StartTimer{Name: TimerPulse, After: pulseDuration},
	}
	if e.boardCleared() {
		effects = append(effects, e.complete(at)...)
	}
	return effects
}

func (e *Engine) onTimer(ev game.Event) []game.Effect {
	switch ev.Timer {
	case TimerPulse:
		e.pulse = none
	case TimerClear:
		e.selLeft, e.selRight = none, none
		e.clearing = false
	case TimerCountdown:
		if e.phase != game.PhaseRunning {
			return nil
		}
		e.timeLeft--
		if e.timeLeft <= 0 {
			e.timeLeft = 0
			return e.complete(ev.At)
		}
	}
	return nil
}

// complete ends the run. The completing guard makes it idempotent, so racing
// triggers (timer expiry, Finish, last match) yield one Completed effect.
func (e *Engine) complete(at time.Time) []game.Effect {
	if e.completing {
		return nil
	}
	e.completing = true
	e.phase = game.PhaseCompleted
	e.selLeft, e.selRight = none, none
	e.clearing = false

	total := len(e.cfg.Pairs)
	res := game.Result{
		Slug:      e.cfg.Slug,
		Score:     game.Percent(len(e.order), total),
		TimeSpent: at.Sub(e.startedAt),
		Mistakes:  e.mistakes,
		Items:     total,
	}
	if res.TimeSpent < 0 {
		res.TimeSpent = 0
	}
	e.result = &res

	return []game.Effect{
		game.StopTimer{Name: TimerCountdown},
		game.StopTimer{Name: TimerClear},
		game.PlayCue{Cue: CueComplete},
		game.Completed{Result: res},
	}
}

// boardCleared reports whether the last match finished the board.
func (e *Engine) boardCleared() bool {
	return len(e.cfg.Pairs) > 0 && len(e.order) == len(e.cfg.Pairs)
}
