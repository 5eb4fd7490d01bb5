package indentation

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/pylearn-arcade/internal/game"
)

func ifPass() Level {
	return Level{
		Title: "if",
		Lines: []IndentationLine{
			{Text: "if x:", TargetIndent: 0},
			{Text: "pass", TargetIndent: 1},
		},
		Scrambled: []int{0, 0},
	}
}

func loop() Level {
	return Level{
		Title: "loop",
		Lines: []IndentationLine{
			{Text: "for i in range(3):", TargetIndent: 0},
			{Text: "if i:", TargetIndent: 1},
			{Text: "print(i)", TargetIndent: 2},
		},
		Scrambled: []int{1, 0, 0},
	}
}

func newStarted(t *testing.T, levels ...Level) *Engine {
	t.Helper()
	e := New(Config{Slug: "indent", Levels: levels}, rand.New(rand.NewSource(3)))
	_, err := e.Dispatch(game.Event{Type: game.EventStart, At: time.Now()})
	require.NoError(t, err)
	return e
}

func dispatch(t *testing.T, e *Engine, ev game.Event) []game.Effect {
	t.Helper()
	effects, err := e.Dispatch(ev)
	require.NoError(t, err)
	return effects
}

func cues(effects []game.Effect) []string {
	var out []string
	for _, eff := range effects {
		if c, ok := eff.(game.PlayCue); ok {
			out = append(out, c.Cue)
		}
	}
	return out
}

func TestSingleIncrementSolvesLevel(t *testing.T) {
	e := newStarted(t, ifPass(), loop())
	require.Equal(t, "if", e.Levels()[0].Title, "easier level comes first")

	dispatch(t, e, game.Event{Type: EventSelectLine, ID: 1})
	effects := dispatch(t, e, game.Event{Type: EventIndent, Delta: 1})

	assert.Equal(t, []int{0, 1}, e.Indents())
	assert.True(t, e.Correct(0))
	assert.True(t, e.Correct(1))
	assert.Equal(t, []string{CueIndent, CueLineCorrect, CueLevelComplete}, cues(effects))
	assert.Contains(t, effects, game.StartTimer{Name: TimerAdvance, After: 600 * time.Millisecond})

	// locked until the advance fires
	assert.Empty(t, dispatch(t, e, game.Event{Type: EventIndent, Delta: 1}))
	assert.Equal(t, []int{0, 1}, e.Indents())

	dispatch(t, e, game.Event{Type: game.EventTimer, Timer: TimerAdvance})
	v := e.View().(View)
	assert.Equal(t, 1, v.Level)
	assert.Equal(t, "loop", v.LevelTitle)
	assert.Equal(t, []int{1, 0, 0}, e.Indents())
	assert.Equal(t, 0, v.Selected)
}

func TestFinalLevelCompletes(t *testing.T) {
	e := newStarted(t, ifPass(), loop())
	dispatch(t, e, game.Event{Type: EventSetIndent, ID: 1, Value: 1})
	dispatch(t, e, game.Event{Type: game.EventTimer, Timer: TimerAdvance})

	dispatch(t, e, game.Event{Type: EventSetIndent, ID: 0, Value: 0})
	dispatch(t, e, game.Event{Type: EventSetIndent, ID: 1, Value: 1})
	dispatch(t, e, game.Event{Type: EventSetIndent, ID: 2, Value: 2})
	effects := dispatch(t, e, game.Event{Type: game.EventTimer, Timer: TimerAdvance})

	var results []game.Result
	for _, eff := range effects {
		if c, ok := eff.(game.Completed); ok {
			results = append(results, c.Result)
		}
	}
	require.Len(t, results, 1)
	assert.Equal(t, 5, results[0].Score, "sum of line counts")
	assert.Equal(t, 60*time.Second, results[0].TimeSpent)
	assert.Equal(t, game.PhaseCompleted, e.Phase())

	assert.Empty(t, dispatch(t, e, game.Event{Type: game.EventTimer, Timer: TimerAdvance}))
}

func TestClampAndKeys(t *testing.T) {
	e := newStarted(t, loop())

	for i := 0; i < 10; i++ {
		dispatch(t, e, game.Event{Type: EventKey, Key: "["})
	}
	assert.Equal(t, 0, e.Indents()[0])

	dispatch(t, e, game.Event{Type: EventKey, Key: "ArrowDown"})
	dispatch(t, e, game.Event{Type: EventKey, Key: "ArrowDown"})
	dispatch(t, e, game.Event{Type: EventKey, Key: "ArrowDown"})
	assert.Equal(t, 2, e.View().(View).Selected, "selection stops at the last line")

	for i := 0; i < 10; i++ {
		dispatch(t, e, game.Event{Type: EventKey, Key: "]"})
	}
	assert.Equal(t, MaxIndent, e.Indents()[2])

	dispatch(t, e, game.Event{Type: EventKey, Key: "ArrowUp"})
	dispatch(t, e, game.Event{Type: EventSetIndent, ID: 1, Value: -4})
	assert.Equal(t, 0, e.Indents()[1])
}

func TestIndentsStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	e := newStarted(t, loop())
	keys := []string{"[", "]", "ArrowUp", "ArrowDown"}

	for i := 0; i < 300 && e.Phase() == game.PhaseRunning; i++ {
		switch rng.Intn(3) {
		case 0:
			dispatch(t, e, game.Event{Type: EventKey, Key: keys[rng.Intn(len(keys))]})
		case 1:
			dispatch(t, e, game.Event{Type: EventIndent, Delta: rng.Intn(9) - 4})
		case 2:
			dispatch(t, e, game.Event{Type: EventSetIndent, ID: rng.Intn(3), Value: rng.Intn(20) - 10})
		}
		v := e.View().(View)
		for j, ln := range v.Lines {
			assert.GreaterOrEqual(t, ln.Indent, 0)
			assert.LessOrEqual(t, ln.Indent, MaxIndent)
			assert.Equal(t, ln.Indent == loop().Lines[j].TargetIndent, ln.Correct)
		}
	}
}

func TestEditsRejectedOutsideRunning(t *testing.T) {
	e := New(Config{Levels: []Level{ifPass()}}, nil)
	_, err := e.Dispatch(game.Event{Type: EventIndent, Delta: 1})
	assert.ErrorIs(t, err, game.ErrInvalidPhase)

	dispatch(t, e, game.Event{Type: game.EventStart})
	_, err = e.Dispatch(game.Event{Type: EventSelectLine, ID: 5})
	assert.ErrorIs(t, err, game.ErrOutOfRange)
}

func TestEmptyPoolCompletesOnStart(t *testing.T) {
	solved := ifPass()
	solved.Scrambled = []int{0, 1}
	e := New(Config{Slug: "none", Levels: []Level{solved}}, nil)

	effects := dispatch(t, e, game.Event{Type: game.EventStart})
	require.Len(t, effects, 2)
	assert.Equal(t, game.Completed{Result: game.Result{Slug: "none"}}, effects[1])
}

func TestResetResamples(t *testing.T) {
	var pool []Level
	for i := 0; i < 12; i++ {
		l := loop()
		l.Title = fmt.Sprintf("loop-%d", i)
		pool = append(pool, l)
	}
	e := New(Config{Levels: pool}, rand.New(rand.NewSource(5)))
	assert.Len(t, e.Levels(), LevelsPerRun)

	_, err := e.Dispatch(game.Event{Type: game.EventReset})
	assert.ErrorIs(t, err, game.ErrInvalidPhase)
}
