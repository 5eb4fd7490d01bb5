// Package audio describes the sounds the games ask for. Engines only name a
// cue; the catalog here turns that name into a tone sequence the browser can
// synthesize, and a Sink delivers cues and speech to whoever is listening.
package audio

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Waveform names an oscillator shape
type Waveform string

const (
	Sine     Waveform = "sine"
	Square   Waveform = "square"
	Triangle Waveform = "triangle"
	Sawtooth Waveform = "sawtooth"
)

// Tone is one oscillator note.
type Tone struct {
	Frequency  float64       `json:"frequency"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"duration_ms"`
	Wave       Waveform      `json:"wave"`
	Gain       float64       `json:"gain"`
}

// Cue is a named tone sequence.
type Cue struct {
	Name  string `json:"name"`
	Tones []Tone `json:"tones"`
}

func tone(freq float64, ms int, wave Waveform, gain float64) Tone {
	d := time.Duration(ms) * time.Millisecond
	return Tone{Frequency: freq, Duration: d, DurationMs: d.Milliseconds(), Wave: wave, Gain: gain}
}

var catalog = map[string]Cue{
	"match":          {Name: "match", Tones: []Tone{tone(523.25, 90, Sine, 0.3), tone(783.99, 140, Sine, 0.3)}},
	"mistake":        {Name: "mistake", Tones: []Tone{tone(220, 180, Square, 0.15)}},
	"complete":       {Name: "complete", Tones: []Tone{tone(523.25, 120, Triangle, 0.3), tone(659.25, 120, Triangle, 0.3), tone(783.99, 240, Triangle, 0.3)}},
	"indent":         {Name: "indent", Tones: []Tone{tone(440, 50, Sine, 0.2)}},
	"line_correct":   {Name: "line_correct", Tones: []Tone{tone(660, 80, Sine, 0.25)}},
	"level_complete": {Name: "level_complete", Tones: []Tone{tone(587.33, 100, Triangle, 0.3), tone(880, 200, Triangle, 0.3)}},
	"swap":           {Name: "swap", Tones: []Tone{tone(392, 80, Square, 0.15), tone(523.25, 80, Square, 0.15)}},
	"found":          {Name: "found", Tones: []Tone{tone(659.25, 100, Sine, 0.3), tone(987.77, 200, Sine, 0.3)}},
	"compare":        {Name: "compare", Tones: []Tone{tone(349.23, 70, Triangle, 0.2), tone(349.23, 70, Triangle, 0.2)}},
	"pivot":          {Name: "pivot", Tones: []Tone{tone(293.66, 150, Sawtooth, 0.15)}},
	"move":           {Name: "move", Tones: []Tone{tone(466.16, 90, Sine, 0.2)}},
	"done":           {Name: "done", Tones: []Tone{tone(523.25, 100, Sine, 0.3), tone(1046.5, 250, Sine, 0.3)}},
	"step":           {Name: "step", Tones: []Tone{tone(330, 60, Sine, 0.15)}},
}

// Lookup returns the tone sequence for a cue name.
func Lookup(name string) (Cue, bool) {
	c, ok := catalog[name]
	return c, ok
}

// Names lists every cue in the catalog.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	return out
}

// actionKeywords is checked in order; the first keyword contained in the
// action text wins.
var actionKeywords = []struct {
	keyword string
	cue     string
}{
	{"swap", "swap"},
	{"found", "found"},
	{"compar", "compare"},
	{"pivot", "pivot"},
	{"move", "move"},
	{"shift", "move"},
	{"insert", "move"},
	{"done", "done"},
	{"sorted", "done"},
	{"complete", "done"},
}

// CueForAction picks a cue for an algorithm step by keyword-matching its
// action text. Unmatched actions get the plain "step" cue.
func CueForAction(action string) string {
	a := strings.ToLower(action)
	for _, k := range actionKeywords {
		if strings.Contains(a, k.keyword) {
			return k.cue
		}
	}
	return "step"
}

// Sink receives cues and speech for one session.
type Sink interface {
	PlayCue(ctx context.Context, sessionID string, cue Cue) error
	Say(ctx context.Context, sessionID, text string) error
}

// Discard drops everything.
type Discard struct{}

func (Discard) PlayCue(context.Context, string, Cue) error { return nil }
func (Discard) Say(context.Context, string, string) error  { return nil }

// Played is one call captured by a Recorder.
type Played struct {
	SessionID string
	Cue       string
	Speech    string
}

// Recorder is a Sink that keeps everything it receives.
type Recorder struct {
	mu     sync.Mutex
	played []Played
}

func (r *Recorder) PlayCue(_ context.Context, sessionID string, cue Cue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, Played{SessionID: sessionID, Cue: cue.Name})
	return nil
}

func (r *Recorder) Say(_ context.Context, sessionID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, Played{SessionID: sessionID, Speech: text})
	return nil
}

// Played returns a copy of the recorded calls.
func (r *Recorder) Played() []Played {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Played(nil), r.played...)
}
