package indentation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromContentLevels(t *testing.T) {
	content := `{
		"title": "Fix the blocks",
		"levels": [
			{"title": "if", "lines": [{"text": "if x:", "targetIndent": 0}, {"text": "pass", "target": 1}], "scrambled": [0, 0]},
			{"title": "raw", "lines": ["def f():", "    return 1"], "start": ["1"]},
			{"title": "empty", "lines": []}
		]
	}`

	cfg := ConfigFromContent("indent", "", "", content)
	assert.Equal(t, "Fix the blocks", cfg.Title)
	assert.Equal(t, LevelsPerRun, cfg.PerRun)
	require.Len(t, cfg.Levels, 2)

	assert.Equal(t, ifPass(), cfg.Levels[0])

	raw := cfg.Levels[1]
	assert.Equal(t, []IndentationLine{{Text: "def f():"}, {Text: "return 1", TargetIndent: 1}}, raw.Lines)
	assert.Equal(t, []int{1, 0}, raw.StartIndents(), "short scrambled pads with zero")
}

func TestConfigFromContentSingleLevel(t *testing.T) {
	cfg := ConfigFromContent("one", "One", "", map[string]any{
		"lines":     []any{"while True:", "\tbreak"},
		"scrambled": []any{0, 0},
	})
	require.Len(t, cfg.Levels, 1)
	assert.Equal(t, 1, cfg.Levels[0].Lines[1].TargetIndent)
}

func TestConfigFromContentMalformed(t *testing.T) {
	cfg := ConfigFromContent("bad", "Bad", "", `{"levels": `)
	assert.Empty(t, cfg.Levels)
}

func TestComplexity(t *testing.T) {
	assert.InDelta(t, 4.0, ifPass().Complexity(), 1e-9)
	assert.InDelta(t, 8.5, loop().Complexity(), 1e-9)
}

func TestPlayable(t *testing.T) {
	assert.True(t, ifPass().Playable())

	solved := ifPass()
	solved.Scrambled = []int{0, 1}
	assert.False(t, solved.Playable(), "already solved")

	deep := ifPass()
	deep.Lines[1].TargetIndent = MaxIndent + 1
	assert.False(t, deep.Playable(), "target out of reach")

	assert.False(t, Level{}.Playable())
}

func TestSampleSortsByComplexity(t *testing.T) {
	pool := []Level{loop(), ifPass(), loop(), ifPass()}
	got := Sample(pool, 3, rand.New(rand.NewSource(1)))
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Complexity(), got[i].Complexity())
	}

	assert.Len(t, Sample(pool, 10, rand.New(rand.NewSource(1))), 4)
	assert.Empty(t, Sample(nil, 5, rand.New(rand.NewSource(1))))
}
