package indentation

import (
	"strings"

	"github.com/terra-clan/pylearn-arcade/internal/game"
)

// LineView is one rendered line. Targets are not exposed, only whether the
// line currently sits at its target.
type LineView struct {
	Text     string `json:"text"`
	Indent   int    `json:"indent"`
	Rendered string `json:"rendered"`
	Correct  bool   `json:"correct"`
}

// View is the JSON rendering of an Engine.
type View struct {
	Kind         game.Kind    `json:"kind"`
	Phase        game.Phase   `json:"phase"`
	Title        string       `json:"title"`
	Instructions string       `json:"instructions,omitempty"`
	Level        int          `json:"level"`
	Levels       int          `json:"levels"`
	LevelTitle   string       `json:"level_title,omitempty"`
	Description  string       `json:"description,omitempty"`
	Lines        []LineView   `json:"lines"`
	Selected     int          `json:"selected"`
	MaxIndent    int          `json:"max_indent"`
	AllCorrect   bool         `json:"all_correct"`
	Solved       int          `json:"solved"`
	Score        int          `json:"score"`
	Result       *game.Result `json:"result,omitempty"`
	TimeSpentSec int          `json:"time_spent_sec,omitempty"`
}

// View renders the current state.
func (e *Engine) View() any {
	v := View{
		Kind:         game.KindIndentation,
		Phase:        e.phase,
		Title:        e.cfg.Title,
		Instructions: e.cfg.Instructions,
		Level:        e.current,
		Levels:       len(e.levels),
		Lines:        []LineView{},
		Selected:     e.selected,
		MaxIndent:    MaxIndent,
		AllCorrect:   e.allCorrect(),
		Solved:       e.solved,
		Score:        e.score,
	}
	if e.current < len(e.levels) {
		l := e.levels[e.current]
		v.LevelTitle = l.Title
		v.Description = l.Description
		v.Lines = make([]LineView, len(l.Lines))
		for i, ln := range l.Lines {
			v.Lines[i] = LineView{
				Text:     ln.Text,
				Indent:   e.indents[i],
				Rendered: strings.Repeat(" ", e.indents[i]*IndentWidth) + ln.Text,
				Correct:  e.Correct(i),
			}
		}
	}
	if e.result != nil {
		res := *e.result
		v.Result = &res
		v.TimeSpentSec = res.TimeSpentSeconds()
	}
	return v
}
