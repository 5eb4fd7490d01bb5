// Package algoviz plays back recorded algorithm traces frame by frame, with
// manual stepping, autoplay and narrated descriptions.
package algoviz

import (
	"time"

	"github.com/terra-clan/pylearn-arcade/internal/audio"
	"github.com/terra-clan/pylearn-arcade/internal/game"
)

// Player events
const (
	EventNext  = "next"
	EventPrev  = "prev"
	EventPlay  = "play"
	EventPause = "pause"
	EventSeek  = "seek"
)

// TimerAutoplay advances one frame while playing.
const TimerAutoplay = "autoplay"

const (
	// DemoScore is reported for every completed playback; watching a trace
	// has no notion of correctness.
	DemoScore = 85

	autoplayInterval = 2500 * time.Millisecond
	speechDelay      = 400 * time.Millisecond
	redirectAfter    = 3 * time.Second
)

// Config is one visualization activity.
type Config struct {
	Slug        string              `json:"slug"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Steps       []VisualizationStep `json:"steps"`
}

// ConfigFromContent normalizes content into a playable Config.
func ConfigFromContent(slug, title, description string, content any) Config {
	return Config{
		Slug:        slug,
		Title:       title,
		Description: description,
		Steps:       NormalizeSteps(content),
	}
}

// Player is the step player state machine:
// start -> paused <-> running -> completed.
type Player struct {
	cfg Config

	phase     game.Phase
	current   int
	playing   bool
	completed bool
	startedAt time.Time
	result    *game.Result
}

// New creates a player. An empty step list gets the fallback frame.
func New(cfg Config) *Player {
	if len(cfg.Steps) == 0 {
		cfg.Steps = []VisualizationStep{fallbackStep()}
	}
	return &Player{cfg: cfg, phase: game.PhaseStart}
}

// Kind returns game.KindAlgorithm
func (p *Player) Kind() game.Kind { return game.KindAlgorithm }

// Phase returns the current phase
func (p *Player) Phase() game.Phase { return p.phase }

// Current returns the index of the shown frame.
func (p *Player) Current() int { return p.current }

// Playing reports whether autoplay is on.
func (p *Player) Playing() bool { return p.playing }

func (p *Player) last() int { return len(p.cfg.Steps) - 1 }

// Dispatch applies one event.
func (p *Player) Dispatch(ev game.Event) ([]game.Effect, error) {
	switch ev.Type {
	case game.EventStart:
		if p.phase != game.PhaseStart {
			return nil, game.ErrInvalidPhase
		}
		p.phase = game.PhasePaused
		p.startedAt = ev.At
		return p.narrate(), nil
	case game.EventReset:
		if p.phase != game.PhaseCompleted {
			return nil, game.ErrInvalidPhase
		}
		p.phase = game.PhaseStart
		p.current = 0
		p.playing = false
		p.completed = false
		p.result = nil
		p.startedAt = time.Time{}
		return []game.Effect{game.StopTimer{Name: TimerAutoplay}}, nil
	case game.EventTimer:
		if ev.Timer == TimerAutoplay {
			return p.autoplayTick(ev.At), nil
		}
		return nil, nil
	}

	if p.phase != game.PhasePaused && p.phase != game.PhaseRunning {
		if isControl(ev.Type) {
			return nil, game.ErrInvalidPhase
		}
		return nil, game.ErrUnknownEvent
	}

	switch ev.Type {
	case EventNext:
		if p.current == p.last() {
			return p.complete(ev.At), nil
		}
		return p.moveTo(p.current + 1), nil
	case EventPrev:
		if p.current == 0 {
			return nil, nil
		}
		return p.moveTo(p.current - 1), nil
	case EventSeek:
		if ev.ID < 0 || ev.ID > p.last() {
			return nil, game.ErrOutOfRange
		}
		if ev.ID == p.current {
			return nil, nil
		}
		return p.moveTo(ev.ID), nil
	case EventPlay:
		if p.playing {
			return nil, nil
		}
		if p.current == p.last() {
			return p.complete(ev.At), nil
		}
		p.playing = true
		p.phase = game.PhaseRunning
		return []game.Effect{game.StartTimer{Name: TimerAutoplay, After: autoplayInterval, Repeat: true}}, nil
	case EventPause:
		if !p.playing {
			return nil, nil
		}
		return p.stop(), nil
	}
	return nil, game.ErrUnknownEvent
}

func isControl(t string) bool {
	switch t {
	case EventNext, EventPrev, EventPlay, EventPause, EventSeek:
		return true
	}
	return false
}

// moveTo shows frame i. Manual moves that reach the last frame end autoplay
// without completing; only a further next does.
func (p *Player) moveTo(i int) []game.Effect {
	p.current = i
	effects := p.transition()
	if p.playing && p.current == p.last() {
		effects = append(p.stop(), effects...)
	}
	return effects
}

func (p *Player) stop() []game.Effect {
	p.playing = false
	p.phase = game.PhasePaused
	return []game.Effect{game.StopTimer{Name: TimerAutoplay}}
}

func (p *Player) autoplayTick(at time.Time) []game.Effect {
	if !p.playing || p.phase != game.PhaseRunning {
		return nil
	}
	if p.current >= p.last() {
		return append(p.stop(), p.complete(at)...)
	}
	p.current++
	effects := p.transition()
	if p.current == p.last() {
		effects = append(effects, p.stop()...)
		effects = append(effects, p.complete(at)...)
	}
	return effects
}

func (p *Player) transition() []game.Effect {
	step := p.cfg.Steps[p.current]
	return append([]game.Effect{game.PlayCue{Cue: audio.CueForAction(step.Action)}}, p.narrate()...)
}

func (p *Player) narrate() []game.Effect {
	text := p.cfg.Steps[p.current].Description
	if text == "" {
		return nil
	}
	return []game.Effect{game.Say{Text: text, Delay: speechDelay}}
}

func (p *Player) complete(at time.Time) []game.Effect {
	if p.completed {
		return nil
	}
	p.completed = true
	p.playing = false
	p.phase = game.PhaseCompleted

	res := game.Result{
		Slug:          p.cfg.Slug,
		Score:         DemoScore,
		TimeSpent:     at.Sub(p.startedAt),
		Items:         len(p.cfg.Steps),
		RedirectAfter: redirectAfter,
	}
	if res.TimeSpent < 0 {
		res.TimeSpent = 0
	}
	p.result = &res
	return []game.Effect{
		game.StopTimer{Name: TimerAutoplay},
		game.Completed{Result: res},
	}
}

// View is the JSON rendering of a Player.
type View struct {
	Kind          game.Kind         `json:"kind"`
	Phase         game.Phase        `json:"phase"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Current       int               `json:"current"`
	Total         int               `json:"total"`
	Playing       bool              `json:"playing"`
	Step          VisualizationStep `json:"step"`
	Result        *game.Result      `json:"result,omitempty"`
	TimeSpentSec  int               `json:"time_spent_sec,omitempty"`
	RedirectAfter int               `json:"redirect_after_sec,omitempty"`
}

// View renders the current state.
func (p *Player) View() any {
	v := View{
		Kind:        game.KindAlgorithm,
		Phase:       p.phase,
		Title:       p.cfg.Title,
		Description: p.cfg.Description,
		Current:     p.current,
		Total:       len(p.cfg.Steps),
		Playing:     p.playing,
		Step:        p.cfg.Steps[p.current],
	}
	if p.result != nil {
		res := *p.result
		v.Result = &res
		v.TimeSpentSec = res.TimeSpentSeconds()
		v.RedirectAfter = int(res.RedirectAfter.Seconds())
	}
	return v
}
