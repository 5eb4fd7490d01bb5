package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/models"
)

func TestValidateActivities(t *testing.T) {
	activities := []*models.Activity{
		{
			Slug: "pairs",
			Type: game.KindMatching,
			Content: map[string]any{"pairs": []any{
				map[string]any{"left": "list", "right": "Mutable sequence"},
			}},
		},
		{Slug: "empty", Type: game.KindMatching, Content: `{"pairs":[]}`},
	}

	var out bytes.Buffer
	failed := validateActivities(&out, activities)

	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "ok   pairs (matching)")
	assert.Contains(t, out.String(), "FAIL empty (matching)")
	assert.Contains(t, out.String(), "2 activities, 1 failed")
}

func TestContentValidateBundledPacks(t *testing.T) {
	var out bytes.Buffer
	contentValidateCmd.SetOut(&out)
	contentDir = "../../content"

	err := runContentValidate(contentValidateCmd, nil)
	assert.NoError(t, err, out.String())
	assert.Contains(t, out.String(), "0 failed")
}
