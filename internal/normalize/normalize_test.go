package normalize

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDecode(t *testing.T) {
	t.Run("json string", func(t *testing.T) {
		v := Decode(`{"steps":[{"data":[3,1,2]}]}`)
		steps, ok := Path(v, "steps")
		require.True(t, ok)
		assert.Len(t, steps, 1)
	})

	t.Run("malformed json becomes nil", func(t *testing.T) {
		assert.Nil(t, Decode(`{"steps": [`))
	})

	t.Run("map any keys", func(t *testing.T) {
		v := Decode(map[any]any{"a": map[any]any{"b": 1}, 7: "dropped"})
		got, ok := Path(v, "a", "b")
		require.True(t, ok)
		assert.Equal(t, 1, got)
	})
}

func TestDecodeLeavesInputUntouched(t *testing.T) {
	in := map[string]any{"steps": []any{map[any]any{"data": []any{3, 1}}}}

	out := Decode(in)
	got, ok := Path(out, "steps")
	require.True(t, ok)
	_, converted := got.([]any)[0].(map[string]any)
	assert.True(t, converted)

	_, still := in["steps"].([]any)[0].(map[any]any)
	assert.True(t, still, "input must not be rewritten")
}

func TestDecodeSharedContentConcurrently(t *testing.T) {
	var content any
	require.NoError(t, yaml.Unmarshal([]byte(`
steps:
  - description: Start
    data: [3, 1, 2]
  - description: Swap
    data: [1, 3, 2]
`), &content))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				steps, ok := Path(Decode(content), "steps")
				if !ok || len(steps.([]any)) != 2 {
					t.Error("steps not found")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestFirstOfPriority(t *testing.T) {
	v := Decode(`{"steps": [], "algorithm": {"steps": [{"id": 1}]}}`)

	got, ok := FirstOf(v, IsNonEmptyList, Key("steps"), Key("algorithm.steps"))
	require.True(t, ok)
	l, _ := List(got)
	assert.Len(t, l, 1, "empty list under the first key must fall through")

	_, ok = FirstOf(v, IsNonEmptyList, Key("missing"), Key("also.missing"))
	assert.False(t, ok)
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []float64
		ok   bool
	}{
		{name: "plain", in: `[5, 2, 9]`, want: []float64{5, 2, 9}, ok: true},
		{name: "strings", in: `["4", " 7 ", "x"]`, want: []float64{4, 7}, ok: true},
		{name: "value objects", in: `[{"value": 3}, {"value": "8"}, {"label": "n"}]`, want: []float64{3, 8}, ok: true},
		{name: "no numbers", in: `["a", null]`, want: []float64{}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Numbers(Decode(tt.in))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	_, ok := Numbers(Decode(`{"not": "a list"}`))
	assert.False(t, ok)
}

func TestStringAtAndIntAt(t *testing.T) {
	v := Decode(`{"desc": "", "text": "Swap 3 and 1", "meta": {"limit": "90"}}`)
	assert.Equal(t, "Swap 3 and 1", StringAt(v, "description", "desc", "text"))

	n, ok := IntAt(v, "timeLimit", "meta.limit")
	require.True(t, ok)
	assert.Equal(t, 90, n)
}
