package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/terra-clan/pylearn-arcade/internal/game"
)

// SessionStatus represents the current state of a game session
type SessionStatus string

const (
	SessionStart     SessionStatus = "start"     // Created, instructions shown
	SessionRunning   SessionStatus = "running"   // Clock or autoplay ticking
	SessionPaused    SessionStatus = "paused"    // Step player waiting for input
	SessionCompleted SessionStatus = "completed" // Engine finished, result recorded
	SessionAbandoned SessionStatus = "abandoned" // Deleted by the player
	SessionExpired   SessionStatus = "expired"   // Reaped after inactivity
)

// StatusFromPhase maps an engine phase to a session status
func StatusFromPhase(p game.Phase) SessionStatus {
	switch p {
	case game.PhaseRunning:
		return SessionRunning
	case game.PhasePaused:
		return SessionPaused
	case game.PhaseCompleted:
		return SessionCompleted
	default:
		return SessionStart
	}
}

// RewardState mirrors the last reward submission outcome
type RewardState struct {
	Status           string `json:"status"`
	Diamonds         int    `json:"diamonds"`
	Experience       int    `json:"experience"`
	AlreadyCompleted bool   `json:"already_completed"`
	Message          string `json:"message,omitempty"`
	Attempts         int    `json:"attempts"`
}

// GameSession is one playthrough of one activity by one player.
type GameSession struct {
	ID           string        `json:"id"`
	Token        string        `json:"-"`
	ActivitySlug string        `json:"activity_slug"`
	Kind         game.Kind     `json:"kind"`
	Status       SessionStatus `json:"status"`
	PlayerID     string        `json:"player_id"`
	Score        *int          `json:"score,omitempty"`
	TimeSpentSec *int          `json:"time_spent_sec,omitempty"`
	Mistakes     int           `json:"mistakes"`
	Reward       *RewardState  `json:"reward,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

// IsTerminal returns true if the session can no longer change
func (s *GameSession) IsTerminal() bool {
	return s.Status == SessionAbandoned || s.Status == SessionExpired
}

// IsExpired checks if the idle TTL has elapsed
func (s *GameSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// TimeRemaining returns the duration until expiry (0 if expired)
func (s *GameSession) TimeRemaining(now time.Time) time.Duration {
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ApplyResult records a finished run
func (s *GameSession) ApplyResult(res game.Result, at time.Time) {
	score := res.Score
	spent := res.TimeSpentSeconds()
	s.Status = SessionCompleted
	s.Score = &score
	s.TimeSpentSec = &spent
	s.Mistakes = res.Mistakes
	s.CompletedAt = &at
}

// GenerateSessionToken creates a cryptographically random 48-char hex token
func GenerateSessionToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// SessionFilters defines filters for listing sessions
type SessionFilters struct {
	PlayerID     string
	ActivitySlug string
	Status       SessionStatus
	Limit        int
	Offset       int
}

// CreateSessionRequest represents a request to start playing an activity
type CreateSessionRequest struct {
	ActivitySlug string `json:"activity_slug" validate:"required,max=128"`
}

// EventRequest is a player event posted to a session
type EventRequest struct {
	Type  string `json:"type" validate:"required,max=32"`
	ID    int    `json:"id" validate:"gte=0"`
	Delta int    `json:"delta" validate:"gte=-6,lte=6"`
	Value int    `json:"value" validate:"gte=0,lte=6"`
	Key   string `json:"key" validate:"max=16"`
}

// SessionResponse is returned for every session read or update
type SessionResponse struct {
	Session *GameSession `json:"session"`
	View    any          `json:"view,omitempty"`
	Muted   bool         `json:"muted"`
	// Stale is set when the view came from the last snapshot rather than a
	// live engine.
	Stale bool `json:"stale,omitempty"`
}

// CreateSessionResponse is returned after creating a session
type CreateSessionResponse struct {
	SessionResponse
	Token string `json:"token"`
}
