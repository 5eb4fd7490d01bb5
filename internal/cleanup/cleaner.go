// Package cleanup reaps game sessions that have sat idle past their TTL.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/pylearn-arcade/internal/models"
)

// Reaper is the part of the session manager the cleaner drives
type Reaper interface {
	GetExpired(ctx context.Context) ([]*models.GameSession, error)
	Expire(ctx context.Context, id string) error
}

// Cleaner handles periodic cleanup of idle sessions
type Cleaner struct {
	reaper   Reaper
	interval time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(reaper Reaper, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = time.Minute
	}

	return &Cleaner{
		reaper:   reaper,
		interval: interval,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.Run(ctx)
}

// Run is the main loop for the cleanup worker. It returns when ctx is done.
func (c *Cleaner) Run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.Cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.Cleanup(ctx)
		}
	}
}

// Cleanup runs one cycle and returns how many sessions were reaped
func (c *Cleaner) Cleanup(ctx context.Context) int {
	slog.Debug("running cleanup cycle")

	expired, err := c.reaper.GetExpired(ctx)
	if err != nil {
		// A partial list is still worth reaping
		slog.Error("failed to get expired sessions", "error", err)
	}

	if len(expired) == 0 {
		slog.Debug("no expired sessions found")
		return 0
	}

	slog.Info("found expired sessions", "count", len(expired))

	reaped := 0
	for _, s := range expired {
		slog.Info("expiring idle session",
			"session_id", s.ID,
			"player_id", s.PlayerID,
			"activity", s.ActivitySlug,
			"expired_at", s.ExpiresAt,
		)

		if err := c.reaper.Expire(ctx, s.ID); err != nil {
			slog.Error("failed to expire session",
				"error", err,
				"session_id", s.ID,
			)
			continue
		}
		reaped++
	}

	return reaped
}
