package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/terra-clan/pylearn-arcade/internal/models"
)

// MemoryRepository keeps sessions in process memory. It is used when no
// DATABASE_DSN is configured and by tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.GameSession
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*models.GameSession)}
}

func clone(s *models.GameSession) *models.GameSession {
	c := *s
	if s.Score != nil {
		v := *s.Score
		c.Score = &v
	}
	if s.TimeSpentSec != nil {
		v := *s.TimeSpentSec
		c.TimeSpentSec = &v
	}
	if s.Reward != nil {
		r := *s.Reward
		c.Reward = &r
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// CreateSession stores a copy of s
func (r *MemoryRepository) CreateSession(_ context.Context, s *models.GameSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("failed to create session: duplicate id %s", s.ID)
	}
	r.sessions[s.ID] = clone(s)
	return nil
}

// GetSession retrieves a session by ID
func (r *MemoryRepository) GetSession(_ context.Context, id string) (*models.GameSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return clone(s), nil
}

// GetSessionByToken retrieves a session by its player token
func (r *MemoryRepository) GetSessionByToken(_ context.Context, token string) (*models.GameSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Token == token {
			return clone(s), nil
		}
	}
	return nil, nil
}

// UpdateSession replaces the stored copy
func (r *MemoryRepository) UpdateSession(_ context.Context, s *models.GameSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return fmt.Errorf("session not found: %s", s.ID)
	}
	r.sessions[s.ID] = clone(s)
	return nil
}

// ListSessions returns one page of sessions, newest first, plus the total
func (r *MemoryRepository) ListSessions(_ context.Context, filters models.SessionFilters) ([]*models.GameSession, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.GameSession
	for _, s := range r.sessions {
		if filters.PlayerID != "" && s.PlayerID != filters.PlayerID {
			continue
		}
		if filters.ActivitySlug != "" && s.ActivitySlug != filters.ActivitySlug {
			continue
		}
		if filters.Status != "" && s.Status != filters.Status {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filters.Offset > 0 {
		if filters.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filters.Offset:]
		}
	}
	if filters.Limit > 0 && len(matched) > filters.Limit {
		matched = matched[:filters.Limit]
	}

	out := make([]*models.GameSession, 0, len(matched))
	for _, s := range matched {
		out = append(out, clone(s))
	}
	return out, total, nil
}

// GetExpiredSessions returns unfinished sessions whose idle TTL has passed
func (r *MemoryRepository) GetExpiredSessions(_ context.Context, now time.Time) ([]*models.GameSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.GameSession
	for _, s := range r.sessions {
		if s.IsExpired(now) && !s.IsTerminal() && s.Status != models.SessionCompleted {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out, nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}
