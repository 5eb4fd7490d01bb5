package algoviz

import (
	"github.com/terra-clan/pylearn-arcade/internal/normalize"
)

// VisualizationStep is one frame of an algorithm trace.
type VisualizationStep struct {
	ID          int       `json:"id"`
	Description string    `json:"description"`
	Data        []float64 `json:"data"`
	Highlights  []int     `json:"highlights,omitempty"`
	Comparison  []int     `json:"comparison,omitempty"`
	Action      string    `json:"action"`
}

// FallbackData is drawn when a step carries no usable numbers.
var FallbackData = []float64{1, 2, 3, 4, 5}

var (
	stepLists = []normalize.Extractor{
		normalize.Key("steps"),
		normalize.Key("algorithm.steps"),
		normalize.Key("algorithmVisualization.steps"),
		normalize.Key("algorithm_visualization.steps"),
		normalize.Key("visualization.steps"),
		normalize.Key("animation.steps"),
		normalize.Key("frames"),
		normalize.Self,
	}
	dataKeys = []normalize.Extractor{
		normalize.Key("data"),
		normalize.Key("values"),
		normalize.Key("array"),
		normalize.Key("bars"),
		normalize.Key("list_data"),
		normalize.Key("state.data"),
	}
	highlightKeys  = []normalize.Extractor{normalize.Key("highlights"), normalize.Key("highlight"), normalize.Key("highlighted"), normalize.Key("active")}
	comparisonKeys = []normalize.Extractor{normalize.Key("comparison"), normalize.Key("comparing"), normalize.Key("compare")}
)

func hasNumbers(v any) bool {
	_, ok := normalize.Numbers(v)
	return ok
}

// NormalizeSteps turns any supported content shape into a non-empty step
// list. Content with no recognizable steps yields a single fallback frame.
func NormalizeSteps(content any) []VisualizationStep {
	v := normalize.Decode(content)

	raw, ok := normalize.FirstOf(v, normalize.IsNonEmptyList, stepLists...)
	if !ok {
		return []VisualizationStep{fallbackStep()}
	}
	list, _ := normalize.List(raw)

	steps := make([]VisualizationStep, 0, len(list))
	for i, item := range list {
		steps = append(steps, stepFrom(i, item))
	}
	return steps
}

func stepFrom(i int, item any) VisualizationStep {
	s := VisualizationStep{
		ID:          i + 1,
		Description: normalize.StringAt(item, "description", "desc", "text", "explanation", "message"),
		Action:      normalize.StringAt(item, "action", "type", "operation"),
	}
	if id, ok := normalize.IntAt(item, "id", "step"); ok {
		s.ID = id
	}

	if raw, ok := normalize.FirstOf(item, hasNumbers, dataKeys...); ok {
		s.Data, _ = normalize.Numbers(raw)
	} else if nums, ok := normalize.Numbers(item); ok {
		// a bare array is a frame of its own
		s.Data = nums
	} else {
		s.Data = append([]float64(nil), FallbackData...)
	}

	if raw, ok := normalize.FirstOf(item, nil, highlightKeys...); ok {
		s.Highlights = indices(raw, len(s.Data))
	}
	if raw, ok := normalize.FirstOf(item, nil, comparisonKeys...); ok {
		s.Comparison = indices(raw, len(s.Data))
	}
	return s
}

// indices reads a list of indices, or a single index, dropping entries that
// fall outside the frame.
func indices(raw any, n int) []int {
	ints, ok := normalize.Ints(raw)
	if !ok {
		single, ok := normalize.Int(raw)
		if !ok {
			return nil
		}
		ints = []int{single}
	}
	out := make([]int, 0, len(ints))
	for _, i := range ints {
		if i >= 0 && i < n {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func fallbackStep() VisualizationStep {
	return VisualizationStep{
		ID:          1,
		Description: "No visualization data available.",
		Data:        append([]float64(nil), FallbackData...),
		Action:      "start",
	}
}

// HasSteps reports whether content carries a recognizable step list.
func HasSteps(content any) bool {
	_, ok := normalize.FirstOf(normalize.Decode(content), normalize.IsNonEmptyList, stepLists...)
	return ok
}
