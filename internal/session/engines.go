package session

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/game/algoviz"
	"github.com/terra-clan/pylearn-arcade/internal/game/indentation"
	"github.com/terra-clan/pylearn-arcade/internal/game/matching"
	"github.com/terra-clan/pylearn-arcade/internal/models"
)

// ErrNothingPlayable is returned by Check for content that normalizes to an
// empty game.
var ErrNothingPlayable = errors.New("activity content has nothing playable")

// NewEngine builds the engine for an activity's type from its content.
func NewEngine(a *models.Activity, rng *rand.Rand) (game.Engine, error) {
	switch a.Type {
	case game.KindMatching:
		cfg := matching.ConfigFromContent(a.Slug, a.Title, a.TimeLimit, a.Instructions, a.Content)
		return matching.New(cfg, rng), nil
	case game.KindIndentation:
		cfg := indentation.ConfigFromContent(a.Slug, a.Title, a.Instructions, a.Content)
		return indentation.New(cfg, rng), nil
	case game.KindAlgorithm:
		desc := a.Description
		if desc == "" {
			desc = a.Instructions
		}
		return algoviz.New(algoviz.ConfigFromContent(a.Slug, a.Title, desc, a.Content)), nil
	}
	return nil, fmt.Errorf("unsupported activity type %q", a.Type)
}

// Check reports whether an activity would produce a playable game. Engines
// still start on unplayable content; this is for authoring checks.
func Check(a *models.Activity) error {
	switch a.Type {
	case game.KindMatching:
		cfg := matching.ConfigFromContent(a.Slug, a.Title, a.TimeLimit, a.Instructions, a.Content)
		if len(cfg.Pairs) == 0 {
			return fmt.Errorf("%w: no matching pairs", ErrNothingPlayable)
		}
	case game.KindIndentation:
		cfg := indentation.ConfigFromContent(a.Slug, a.Title, a.Instructions, a.Content)
		playable := 0
		for _, l := range cfg.Levels {
			if l.Playable() {
				playable++
			}
		}
		if playable == 0 {
			return fmt.Errorf("%w: no playable levels out of %d", ErrNothingPlayable, len(cfg.Levels))
		}
	case game.KindAlgorithm:
		if !algoviz.HasSteps(a.Content) {
			return fmt.Errorf("%w: no visualization steps", ErrNothingPlayable)
		}
	default:
		return fmt.Errorf("unsupported activity type %q", a.Type)
	}
	return nil
}
