// Package game holds the vocabulary shared by the mini-game engines: phases,
// player events, the effects an engine asks its harness to perform, and the
// completion result handed to the reward adapter.
//
// Engines are plain finite-state machines. They never start goroutines, touch
// clocks or play sounds themselves; every side effect is returned from
// Dispatch as an Effect and carried out by the owner of the engine.
package game

import (
	"errors"
	"math"
	"time"
)

// Common errors
var (
	ErrInvalidPhase = errors.New("event not allowed in current phase")
	ErrUnknownEvent = errors.New("unknown event type")
	ErrOutOfRange   = errors.New("index out of range")
)

// Kind identifies which engine drives an activity
type Kind string

const (
	KindMatching    Kind = "matching"
	KindIndentation Kind = "indentation"
	KindAlgorithm   Kind = "algorithm"
)

// Valid reports whether k names a known engine
func (k Kind) Valid() bool {
	switch k {
	case KindMatching, KindIndentation, KindAlgorithm:
		return true
	}
	return false
}

// Phase is the coarse lifecycle state of an engine
type Phase string

const (
	PhaseStart     Phase = "start"
	PhaseRunning   Phase = "running"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
)

// Event types understood by every engine.
const (
	EventStart  = "start"
	EventFinish = "finish"
	EventReset  = "reset"
	EventTimer  = "timer"
)

// Event is a single input to an engine. Player events arrive from the API;
// timer events are produced by the harness when a StartTimer effect fires.
type Event struct {
	Type  string `json:"type"`
	ID    int    `json:"id"`
	Delta int    `json:"delta,omitempty"`
	Value int    `json:"value,omitempty"`
	Key   string `json:"key,omitempty"`

	// Timer names the timer that fired for EventTimer.
	Timer string `json:"-"`
	// At is the harness clock reading when the event was dispatched.
	At time.Time `json:"-"`
}

// Engine is implemented by every mini-game.
type Engine interface {
	Kind() Kind
	Phase() Phase
	// Dispatch applies ev and returns the effects the harness must perform.
	// A rejected event leaves the engine unchanged and returns an error.
	Dispatch(ev Event) ([]Effect, error)
	// View returns a JSON-serializable rendering of the current state.
	View() any
}

// Effect is an instruction from an engine to its harness.
type Effect interface {
	effect()
}

// StartTimer arms (or re-arms) the named timer. Repeating timers fire every
// After until stopped.
type StartTimer struct {
	Name   string
	After  time.Duration
	Repeat bool
}

// StopTimer cancels the named timer if it is pending.
type StopTimer struct {
	Name string
}

// PlayCue asks for the named audio cue.
type PlayCue struct {
	Cue string
}

// Say asks for text to be spoken after Delay. A newer Say supersedes a
// pending one.
type Say struct {
	Text  string
	Delay time.Duration
}

// Completed is emitted exactly once per run when the engine finishes.
type Completed struct {
	Result Result
}

func (StartTimer) effect() {}
func (StopTimer) effect()  {}
func (PlayCue) effect()    {}
func (Say) effect()        {}
func (Completed) effect()  {}

// Result is what a finished run reports to the reward service.
type Result struct {
	Slug          string        `json:"slug"`
	Score         int           `json:"score"`
	TimeSpent     time.Duration `json:"-"`
	Mistakes      int           `json:"mistakes"`
	Items         int           `json:"items"`
	RedirectAfter time.Duration `json:"-"`
}

// TimeSpentSeconds rounds TimeSpent to whole seconds
func (r Result) TimeSpentSeconds() int {
	return int(math.Round(r.TimeSpent.Seconds()))
}

// Percent returns round(part/total*100), or 0 for an empty total.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
