package matching

import "github.com/terra-clan/pylearn-arcade/internal/game"

// Item is one clickable cell. Each column only carries its own side's text;
// explanations stay hidden until the run is over.
type Item struct {
	ID      int    `json:"id"`
	Text    string `json:"text"`
	Topic   string `json:"topic,omitempty"`
	Matched bool   `json:"matched"`
}

// Review is shown on the result screen once the run is over.
type Review struct {
	Left        string `json:"left"`
	Right       string `json:"right"`
	Explanation string `json:"explanation,omitempty"`
	Matched     bool   `json:"matched"`
}

// View is the JSON rendering of an Engine.
type View struct {
	Kind          game.Kind    `json:"kind"`
	Phase         game.Phase   `json:"phase"`
	Title         string       `json:"title"`
	Instructions  string       `json:"instructions,omitempty"`
	TimeLimitSec  int          `json:"time_limit_sec"`
	TimeLeft      int          `json:"time_left"`
	Left          []Item       `json:"left"`
	Right         []Item       `json:"right"`
	SelectedLeft  *int         `json:"selected_left"`
	SelectedRight *int         `json:"selected_right"`
	Pulse         *int         `json:"pulse"`
	Wrong         bool         `json:"wrong"`
	Matched       int          `json:"matched"`
	Total         int          `json:"total"`
	Mistakes      int          `json:"mistakes"`
	Result        *game.Result `json:"result,omitempty"`
	TimeSpentSec  int          `json:"time_spent_sec,omitempty"`
	Review        []Review     `json:"review,omitempty"`
}

// View renders the current state.
func (e *Engine) View() any {
	v := View{
		Kind:          game.KindMatching,
		Phase:         e.phase,
		Title:         e.cfg.Title,
		Instructions:  e.cfg.Instructions,
		TimeLimitSec:  e.cfg.TimeLimitSec,
		TimeLeft:      e.timeLeft,
		Left:          make([]Item, len(e.left)),
		Right:         make([]Item, len(e.right)),
		SelectedLeft:  optional(e.selLeft),
		SelectedRight: optional(e.selRight),
		Pulse:         optional(e.pulse),
		Wrong:         e.clearing,
		Matched:       len(e.order),
		Total:         len(e.cfg.Pairs),
		Mistakes:      e.mistakes,
	}
	for i, pv := range e.left {
		v.Left[i] = Item{ID: pv.ID, Text: pv.Pair.Left, Topic: pv.Pair.Topic, Matched: e.matched[pv.ID]}
	}
	for i, pv := range e.right {
		v.Right[i] = Item{ID: pv.ID, Text: pv.Pair.Right, Matched: e.matched[pv.ID]}
	}

	if e.result != nil {
		res := *e.result
		v.Result = &res
		v.TimeSpentSec = res.TimeSpentSeconds()
		v.Review = make([]Review, len(e.cfg.Pairs))
		for i, p := range e.cfg.Pairs {
			v.Review[i] = Review{Left: p.Left, Right: p.Right, Explanation: p.Explanation, Matched: e.matched[i+1]}
		}
	}
	return v
}

func optional(id int) *int {
	if id == none {
		return nil
	}
	return &id
}
