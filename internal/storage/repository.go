package storage

import (
	"context"
	"time"

	"github.com/terra-clan/pylearn-arcade/internal/models"
)

// Repository defines the interface for game session persistence.
// Lookups return nil, nil when nothing matches.
type Repository interface {
	CreateSession(ctx context.Context, s *models.GameSession) error
	GetSession(ctx context.Context, id string) (*models.GameSession, error)
	GetSessionByToken(ctx context.Context, token string) (*models.GameSession, error)
	UpdateSession(ctx context.Context, s *models.GameSession) error
	ListSessions(ctx context.Context, filters models.SessionFilters) ([]*models.GameSession, int, error)
	GetExpiredSessions(ctx context.Context, now time.Time) ([]*models.GameSession, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
