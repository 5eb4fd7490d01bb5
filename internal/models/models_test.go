package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/pylearn-arcade/internal/game"
)

func TestStatusFromPhase(t *testing.T) {
	assert.Equal(t, SessionStart, StatusFromPhase(game.PhaseStart))
	assert.Equal(t, SessionRunning, StatusFromPhase(game.PhaseRunning))
	assert.Equal(t, SessionPaused, StatusFromPhase(game.PhasePaused))
	assert.Equal(t, SessionCompleted, StatusFromPhase(game.PhaseCompleted))
}

func TestApplyResult(t *testing.T) {
	now := time.Now()
	s := &GameSession{Status: SessionRunning, ExpiresAt: now.Add(time.Minute)}
	s.ApplyResult(game.Result{Score: 75, TimeSpent: 90 * time.Second, Mistakes: 2}, now)

	assert.Equal(t, SessionCompleted, s.Status)
	require.NotNil(t, s.Score)
	assert.Equal(t, 75, *s.Score)
	assert.Equal(t, 90, *s.TimeSpentSec)
	assert.Equal(t, 2, s.Mistakes)
	assert.False(t, s.IsTerminal())
	assert.False(t, s.IsExpired(now))
	assert.True(t, s.IsExpired(now.Add(2*time.Minute)))
	assert.Zero(t, s.TimeRemaining(now.Add(2*time.Minute)))
}

func TestGenerateSessionToken(t *testing.T) {
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.Len(t, a, 48)
	assert.NotEqual(t, a, b)
}

func TestPlayerID(t *testing.T) {
	assert.Equal(t, "anonymous", PlayerID("", ""))
	assert.Equal(t, PlayerID("tok", ""), PlayerID("tok", "cookie"))
	assert.NotEqual(t, PlayerID("tok", ""), PlayerID("", "cookie"))
	assert.Len(t, PlayerID("tok", ""), 16)

	p := &Player{BearerToken: "abcdefghijk"}
	assert.False(t, p.Anonymous())
	assert.Equal(t, "abcdefgh...", p.MaskedToken())
	assert.True(t, (&Player{}).Anonymous())
}

func TestActivityFilters(t *testing.T) {
	a := &Activity{Slug: "x", Type: game.KindMatching, Category: "basics", Tags: []string{"lists"}}
	assert.True(t, ActivityFilters{}.Matches(a))
	assert.True(t, ActivityFilters{Category: "basics", Tag: "lists"}.Matches(a))
	assert.False(t, ActivityFilters{Type: game.KindAlgorithm}.Matches(a))
	assert.False(t, ActivityFilters{Tag: "dicts"}.Matches(a))
	assert.Equal(t, []string{"lists"}, a.Summary().Tags)
	assert.Equal(t, []string{}, (&Activity{}).Summary().Tags)
}
