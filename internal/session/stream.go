package session

import (
	"context"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/models"
)

// Message types pushed to stream subscribers
const (
	MessageState  = "state"
	MessageCue    = "cue"
	MessageSpeech = "speech"
	MessageReward = "reward"
)

const streamBuffer = 32

// Message is one server push on a session stream.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Stream is one subscriber attached to a live session. C is closed when the
// session leaves memory or the stream is closed.
type Stream struct {
	C <-chan Message

	m   *Manager
	l   *live
	key uint64
}

// Dispatch sends an event on behalf of the stream's token holder.
func (s *Stream) Dispatch(ctx context.Context, ev game.Event) (*models.SessionResponse, error) {
	return s.m.dispatch(ctx, s.l, ev)
}

// Close detaches the subscriber
func (s *Stream) Close() {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if ch, ok := s.l.subs[s.key]; ok {
		delete(s.l.subs, s.key)
		close(ch)
	}
}

// publishLocked fans msg out without blocking; slow subscribers miss it.
func (l *live) publishLocked(msg Message) {
	for _, ch := range l.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (l *live) closeSubsLocked() {
	for key, ch := range l.subs {
		delete(l.subs, key)
		close(ch)
	}
}
