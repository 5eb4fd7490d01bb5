package api

import (
	"context"

	"github.com/terra-clan/pylearn-arcade/internal/models"
)

type contextKey string

const playerContextKey contextKey = "player"

// PlayerFromContext extracts the Player from context. It never returns nil;
// a request without credentials yields the anonymous player.
func PlayerFromContext(ctx context.Context) *models.Player {
	player, ok := ctx.Value(playerContextKey).(*models.Player)
	if !ok || player == nil {
		return &models.Player{ID: models.PlayerID("", "")}
	}
	return player
}

// ContextWithPlayer adds the Player to context
func ContextWithPlayer(ctx context.Context, player *models.Player) context.Context {
	return context.WithValue(ctx, playerContextKey, player)
}
