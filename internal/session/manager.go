// Package session owns running games. The Manager builds an engine per
// session, serializes every event into it, carries out the effects it returns
// (timers, cues, speech, completion) and reports finished runs exactly once.
package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/terra-clan/pylearn-arcade/internal/audio"
	"github.com/terra-clan/pylearn-arcade/internal/content"
	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/metrics"
	"github.com/terra-clan/pylearn-arcade/internal/models"
	"github.com/terra-clan/pylearn-arcade/internal/rewards"
	"github.com/terra-clan/pylearn-arcade/internal/storage"
	"github.com/terra-clan/pylearn-arcade/pkg/client"
)

// Common errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrActivityNotFound = errors.New("activity not found")
	ErrSessionClosed    = errors.New("session is no longer active")
	ErrRateLimited      = errors.New("too many events")
	ErrClaimInProgress  = errors.New("reward claim already in progress")
	ErrNotCompleted     = errors.New("session has not been completed")
	ErrInvalidToken     = errors.New("invalid session token")
)

// EventToggleMute flips the player's mute preference. It is handled by the
// manager and never reaches an engine.
const EventToggleMute = "toggle_mute"

// Options tunes a Manager. Zero values get defaults.
type Options struct {
	// TTL is the idle time after which a session is reaped.
	TTL time.Duration
	// EventRate is the sustained player events per second per session;
	// zero or less disables throttling.
	EventRate  float64
	EventBurst int
	// SubmitTimeout bounds one reward submission.
	SubmitTimeout time.Duration

	Scheduler game.Scheduler
	Sink      audio.Sink
	NewRand   func() *rand.Rand
	Logger    *slog.Logger
}

// Manager runs game sessions
type Manager struct {
	source  content.Source
	repo    storage.Repository
	state   storage.StateStore
	rewards *rewards.Adapter

	sched   game.Scheduler
	sink    audio.Sink
	newRand func() *rand.Rand
	opts    Options
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*live
}

// live is a session whose engine is in memory. Every field below mu is
// guarded by it; session.ID, Kind, PlayerID and Token never change.
type live struct {
	mu sync.Mutex

	session *models.GameSession
	engine  game.Engine
	creds   client.Credentials
	limiter *rate.Limiter
	muted   bool

	timers    map[string]*armed
	gen       uint64
	speech    game.Stopper
	speechGen uint64

	result    *game.Result
	outcome   *rewards.Outcome
	submitted bool
	claiming  bool
	closed    bool
	saved     models.SessionStatus

	subs    map[uint64]chan Message
	nextSub uint64
}

type armed struct {
	gen    uint64
	after  time.Duration
	repeat bool
	stop   game.Stopper
}

// NewManager creates a session manager
func NewManager(source content.Source, repo storage.Repository, state storage.StateStore, adapter *rewards.Adapter, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	if opts.EventBurst <= 0 {
		opts.EventBurst = 20
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 10 * time.Second
	}
	if opts.Scheduler == nil {
		opts.Scheduler = game.SystemScheduler{}
	}
	if opts.Sink == nil {
		opts.Sink = audio.Discard{}
	}
	if opts.NewRand == nil {
		opts.NewRand = func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Manager{
		source:   source,
		repo:     repo,
		state:    state,
		rewards:  adapter,
		sched:    opts.Scheduler,
		sink:     opts.Sink,
		newRand:  opts.NewRand,
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*live),
	}
}

// Ping checks the session store
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Create starts a session for an activity. The engine waits on its start
// screen until the player sends "start".
func (m *Manager) Create(ctx context.Context, slug string, player *models.Player) (*models.CreateSessionResponse, error) {
	activity, err := m.source.Activity(ctx, slug)
	if errors.Is(err, content.ErrActivityNotFound) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve activity: %w", err)
	}

	engine, err := NewEngine(activity, m.newRand())
	if err != nil {
		return nil, err
	}

	token, err := models.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	playerID := models.PlayerID("", "")
	var creds client.Credentials
	if player != nil {
		playerID = player.ID
		creds = client.Credentials{BearerToken: player.BearerToken, Cookie: player.Cookie}
	}

	now := m.sched.Now()
	s := &models.GameSession{
		ID:           uuid.New().String(),
		Token:        token,
		ActivitySlug: activity.Slug,
		Kind:         activity.Type,
		Status:       models.SessionStart,
		PlayerID:     playerID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.opts.TTL),
	}

	if err := m.repo.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	l := &live{
		session: s,
		engine:  engine,
		creds:   creds,
		limiter: m.newLimiter(),
		timers:  make(map[string]*armed),
		subs:    make(map[uint64]chan Message),
		saved:   s.Status,
	}
	if !player.Anonymous() {
		muted, err := m.state.Muted(ctx, playerID)
		if err != nil {
			m.logger.Warn("failed to read mute preference", "error", err, "player_id", playerID)
		}
		l.muted = muted
	}

	m.mu.Lock()
	m.sessions[s.ID] = l
	m.mu.Unlock()

	metrics.SessionsCreated.WithLabelValues(string(s.Kind)).Inc()
	metrics.SessionsLive.Inc()

	l.mu.Lock()
	m.snapshotLocked(ctx, l)
	resp := l.responseLocked()
	l.mu.Unlock()

	m.logger.Info("session created",
		"session_id", s.ID,
		"activity", s.ActivitySlug,
		"kind", s.Kind,
		"player_id", playerID,
	)

	return &models.CreateSessionResponse{SessionResponse: *resp, Token: token}, nil
}

func (m *Manager) newLimiter() *rate.Limiter {
	if m.opts.EventRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(m.opts.EventRate), m.opts.EventBurst)
}

// owns reports whether player may act on s: anyone presenting the session
// token, or the player whose credentials started it. Sessions started
// anonymously have no owner and need the token.
func owns(s *models.GameSession, player *models.Player) bool {
	if player == nil {
		return false
	}
	if player.SessionToken != "" && subtle.ConstantTimeCompare([]byte(player.SessionToken), []byte(s.Token)) == 1 {
		return true
	}
	return s.PlayerID != models.PlayerID("", "") && player.ID == s.PlayerID
}

// lookup returns the live session for id, or ErrSessionClosed when it exists
// only in the repository.
func (m *Manager) lookup(ctx context.Context, id string, player *models.Player) (*live, error) {
	m.mu.RLock()
	l, ok := m.sessions[id]
	m.mu.RUnlock()

	if ok {
		if !owns(l.session, player) {
			return nil, ErrSessionNotFound
		}
		return l, nil
	}

	s, err := m.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil || !owns(s, player) {
		return nil, ErrSessionNotFound
	}
	return nil, ErrSessionClosed
}

// Get returns the session and its current view. Sessions no longer in memory
// are answered from the repository and the last snapshot.
func (m *Manager) Get(ctx context.Context, id string, player *models.Player) (*models.SessionResponse, error) {
	l, err := m.lookup(ctx, id, player)
	if err == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.responseLocked(), nil
	}
	if !errors.Is(err, ErrSessionClosed) {
		return nil, err
	}

	s, err := m.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}

	resp := &models.SessionResponse{Session: s, Stale: true}
	snap, err := m.state.LoadSnapshot(ctx, id)
	if err != nil {
		m.logger.Warn("failed to load snapshot", "error", err, "session_id", id)
	} else if snap != nil {
		resp.View = snap.View
	}
	if player != nil && !player.Anonymous() {
		if muted, err := m.state.Muted(ctx, player.ID); err == nil {
			resp.Muted = muted
		}
	}
	return resp, nil
}

// List returns sessions matching filters plus the total count
func (m *Manager) List(ctx context.Context, filters models.SessionFilters) ([]*models.GameSession, int, error) {
	sessions, total, err := m.repo.ListSessions(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, total, nil
}

// Dispatch applies one player event to the session's engine.
func (m *Manager) Dispatch(ctx context.Context, id string, player *models.Player, ev game.Event) (*models.SessionResponse, error) {
	l, err := m.lookup(ctx, id, player)
	if err != nil {
		return nil, err
	}
	return m.dispatch(ctx, l, ev)
}

func (m *Manager) dispatch(ctx context.Context, l *live, ev game.Event) (*models.SessionResponse, error) {
	kind := string(l.session.Kind)

	if ev.Type == game.EventTimer {
		metrics.Events.WithLabelValues(kind, ev.Type, "rejected").Inc()
		return nil, game.ErrUnknownEvent
	}
	if !l.limiter.Allow() {
		metrics.Events.WithLabelValues(kind, ev.Type, "throttled").Inc()
		return nil, ErrRateLimited
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrSessionClosed
	}

	var submit *game.Result
	if ev.Type == EventToggleMute {
		m.toggleMuteLocked(ctx, l)
	} else {
		ev.At = m.sched.Now()
		res, err := m.applyLocked(ctx, l, ev)
		if err != nil {
			l.mu.Unlock()
			metrics.Events.WithLabelValues(kind, ev.Type, "rejected").Inc()
			return nil, err
		}
		submit = res
	}

	l.session.ExpiresAt = m.sched.Now().Add(m.opts.TTL)
	m.persistLocked(ctx, l)
	m.snapshotLocked(ctx, l)
	l.mu.Unlock()

	metrics.Events.WithLabelValues(kind, ev.Type, "ok").Inc()

	if submit != nil {
		m.submit(ctx, l, *submit)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.responseLocked(), nil
}

// applyLocked runs ev through the engine and carries out its effects. It
// returns the result to submit when this event completed the run.
func (m *Manager) applyLocked(ctx context.Context, l *live, ev game.Event) (*game.Result, error) {
	effects, err := l.engine.Dispatch(ev)
	if err != nil {
		return nil, err
	}

	var submit *game.Result
	for _, eff := range effects {
		switch e := eff.(type) {
		case game.StartTimer:
			m.armLocked(l, e)
		case game.StopTimer:
			l.stopTimerLocked(e.Name)
		case game.PlayCue:
			m.cueLocked(ctx, l, e.Cue)
		case game.Say:
			m.sayLocked(ctx, l, e)
		case game.Completed:
			if res := m.completeLocked(l, e.Result); res != nil {
				submit = res
			}
		}
	}

	if !l.submitted {
		l.session.Status = models.StatusFromPhase(l.engine.Phase())
	}
	if l.session.StartedAt == nil && l.session.Status != models.SessionStart {
		at := ev.At
		l.session.StartedAt = &at
	}

	l.publishLocked(Message{Type: MessageState, Data: l.responseLocked()})
	return submit, nil
}

func (m *Manager) armLocked(l *live, e game.StartTimer) {
	l.stopTimerLocked(e.Name)
	l.gen++
	t := &armed{gen: l.gen, after: e.After, repeat: e.Repeat}
	l.timers[e.Name] = t

	name, gen := e.Name, t.gen
	t.stop = m.sched.AfterFunc(e.After, func() { m.fire(l, name, gen) })
}

func (l *live) stopTimerLocked(name string) {
	if t, ok := l.timers[name]; ok {
		t.stop.Stop()
		delete(l.timers, name)
	}
}

func (l *live) stopAllLocked() {
	for name := range l.timers {
		l.stopTimerLocked(name)
	}
	if l.speech != nil {
		l.speech.Stop()
		l.speech = nil
	}
	l.speechGen++
}

// fire delivers a timer to the engine. A timer that was stopped or re-armed
// since it was scheduled is ignored.
func (m *Manager) fire(l *live, name string, gen uint64) {
	ctx := context.Background()

	l.mu.Lock()
	t, ok := l.timers[name]
	if l.closed || !ok || t.gen != gen {
		l.mu.Unlock()
		return
	}
	if t.repeat {
		t.stop = m.sched.AfterFunc(t.after, func() { m.fire(l, name, gen) })
	} else {
		delete(l.timers, name)
	}

	submit, err := m.applyLocked(ctx, l, game.Event{Type: game.EventTimer, Timer: name, At: m.sched.Now()})
	if err != nil {
		m.logger.Warn("timer event rejected", "error", err, "session_id", l.session.ID, "timer", name)
	}
	if l.session.Status != l.saved {
		m.persistLocked(ctx, l)
		m.snapshotLocked(ctx, l)
	}
	l.mu.Unlock()

	if submit != nil {
		m.submit(ctx, l, *submit)
	}
}

func (m *Manager) cueLocked(ctx context.Context, l *live, name string) {
	cue, ok := audio.Lookup(name)
	if !ok {
		m.logger.Debug("unknown audio cue", "cue", name, "session_id", l.session.ID)
		return
	}
	if l.muted {
		return
	}
	if err := m.sink.PlayCue(ctx, l.session.ID, cue); err != nil {
		m.logger.Warn("failed to play cue", "error", err, "cue", name, "session_id", l.session.ID)
	}
	l.publishLocked(Message{Type: MessageCue, Data: cue})
}

// sayLocked schedules speech. A newer Say replaces a pending one.
func (m *Manager) sayLocked(ctx context.Context, l *live, e game.Say) {
	if l.speech != nil {
		l.speech.Stop()
		l.speech = nil
	}
	l.speechGen++

	if e.Delay <= 0 {
		m.speakLocked(ctx, l, e.Text)
		return
	}

	gen, text := l.speechGen, e.Text
	l.speech = m.sched.AfterFunc(e.Delay, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed || gen != l.speechGen {
			return
		}
		l.speech = nil
		m.speakLocked(context.Background(), l, text)
	})
}

func (m *Manager) speakLocked(ctx context.Context, l *live, text string) {
	if l.muted || text == "" {
		return
	}
	if err := m.sink.Say(ctx, l.session.ID, text); err != nil {
		m.logger.Warn("failed to speak", "error", err, "session_id", l.session.ID)
	}
	l.publishLocked(Message{Type: MessageSpeech, Data: text})
}

func (m *Manager) toggleMuteLocked(ctx context.Context, l *live) {
	l.muted = !l.muted
	if l.muted && l.speech != nil {
		l.speech.Stop()
		l.speech = nil
	}
	if l.session.PlayerID != models.PlayerID("", "") {
		if err := m.state.SetMuted(ctx, l.session.PlayerID, l.muted); err != nil {
			m.logger.Warn("failed to store mute preference", "error", err, "player_id", l.session.PlayerID)
		}
	}
	l.publishLocked(Message{Type: MessageState, Data: l.responseLocked()})
}

// completeLocked records the first result of the session and marks a claim
// in flight. Later completions, for example after a reset, are ignored.
func (m *Manager) completeLocked(l *live, res game.Result) *game.Result {
	if l.submitted {
		m.logger.Debug("ignoring repeated completion", "session_id", l.session.ID)
		return nil
	}
	l.submitted = true
	l.claiming = true
	l.result = &res
	l.session.ApplyResult(res, m.sched.Now())
	l.session.Reward = &models.RewardState{Status: string(rewards.StatusPending)}

	metrics.Completions.WithLabelValues(string(l.session.Kind)).Inc()
	metrics.Scores.WithLabelValues(string(l.session.Kind)).Observe(float64(res.Score))

	m.logger.Info("session completed",
		"session_id", l.session.ID,
		"activity", l.session.ActivitySlug,
		"score", res.Score,
		"time_spent_sec", res.TimeSpentSeconds(),
		"mistakes", res.Mistakes,
	)

	out := res
	return &out
}

// submit reports res to the reward service. The caller must have set
// l.claiming.
func (m *Manager) submit(ctx context.Context, l *live, res game.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.SubmitTimeout)
	defer cancel()

	l.mu.Lock()
	creds := l.creds
	l.mu.Unlock()

	start := time.Now()
	outcome := m.rewards.Submit(ctx, creds, res)
	metrics.ObserveSince(metrics.RewardLatency, start)
	metrics.RewardOutcomes.WithLabelValues(string(outcome.Status)).Inc()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.claiming = false
	l.outcome = &outcome
	attempts := 0
	if l.session.Reward != nil {
		attempts = l.session.Reward.Attempts
	}
	l.session.Reward = &models.RewardState{
		Status:           string(outcome.Status),
		Diamonds:         outcome.Diamonds,
		Experience:       outcome.Experience,
		AlreadyCompleted: outcome.AlreadyCompleted,
		Message:          outcome.Message,
		Attempts:         attempts + 1,
	}
	if !l.closed {
		m.persistLocked(ctx, l)
		m.snapshotLocked(ctx, l)
	} else if err := m.repo.UpdateSession(ctx, l.session); err != nil {
		m.logger.Error("failed to record reward outcome", "error", err, "session_id", l.session.ID)
	}
	l.publishLocked(Message{Type: MessageReward, Data: outcome})

	m.logger.Info("reward submitted",
		"session_id", l.session.ID,
		"status", outcome.Status,
		"attempt", attempts+1,
	)
}

// Claim retries reward submission for a completed session. It is allowed
// after a failed attempt, or after login_required once the caller presents
// credentials; otherwise the last outcome is returned unchanged.
func (m *Manager) Claim(ctx context.Context, id string, player *models.Player) (*rewards.Outcome, error) {
	l, err := m.lookup(ctx, id, player)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if l.result == nil {
		l.mu.Unlock()
		return nil, ErrNotCompleted
	}
	if l.claiming {
		l.mu.Unlock()
		return nil, ErrClaimInProgress
	}
	if l.outcome != nil && !canRetry(l.outcome.Status, player) {
		out := *l.outcome
		l.mu.Unlock()
		return &out, nil
	}
	if !player.Anonymous() {
		l.creds = client.Credentials{BearerToken: player.BearerToken, Cookie: player.Cookie}
	}
	l.claiming = true
	res := *l.result
	l.mu.Unlock()

	m.submit(ctx, l, res)

	l.mu.Lock()
	defer l.mu.Unlock()
	out := *l.outcome
	return &out, nil
}

func canRetry(status rewards.Status, player *models.Player) bool {
	if status.Retryable() {
		return true
	}
	return status == rewards.StatusLoginRequired && !player.Anonymous()
}

// Delete abandons a session, cancelling its timers and speech.
func (m *Manager) Delete(ctx context.Context, id string, player *models.Player) error {
	l, err := m.lookup(ctx, id, player)
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	if err != nil {
		return err
	}

	m.evict(ctx, l, models.SessionAbandoned, "deleted")
	if err := m.state.DeleteSnapshot(ctx, id); err != nil {
		m.logger.Warn("failed to delete snapshot", "error", err, "session_id", id)
	}

	m.logger.Info("session deleted", "session_id", id)
	return nil
}

// GetExpired returns sessions idle past their TTL: live ones and unfinished
// ones left in the repository by an earlier process.
func (m *Manager) GetExpired(ctx context.Context) ([]*models.GameSession, error) {
	now := m.sched.Now()
	var expired []*models.GameSession
	seen := make(map[string]bool)

	m.mu.RLock()
	lives := make([]*live, 0, len(m.sessions))
	for _, l := range m.sessions {
		lives = append(lives, l)
	}
	m.mu.RUnlock()

	for _, l := range lives {
		l.mu.Lock()
		if !l.closed && l.session.IsExpired(now) {
			s := *l.session
			expired = append(expired, &s)
		}
		seen[l.session.ID] = true
		l.mu.Unlock()
	}

	stale, err := m.repo.GetExpiredSessions(ctx, now)
	if err != nil {
		return expired, fmt.Errorf("failed to get expired sessions: %w", err)
	}
	for _, s := range stale {
		if !seen[s.ID] {
			expired = append(expired, s)
		}
	}
	return expired, nil
}

// Expire reaps one session: timers stop, the engine is dropped and an
// unfinished session is marked expired.
func (m *Manager) Expire(ctx context.Context, id string) error {
	m.mu.RLock()
	l, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		m.evict(ctx, l, models.SessionExpired, "expired")
		return nil
	}

	s, err := m.repo.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil {
		return ErrSessionNotFound
	}
	if s.IsTerminal() || s.Status == models.SessionCompleted {
		return nil
	}
	s.Status = models.SessionExpired
	if err := m.repo.UpdateSession(ctx, s); err != nil {
		return fmt.Errorf("failed to expire session: %w", err)
	}
	return nil
}

func (m *Manager) evict(ctx context.Context, l *live, status models.SessionStatus, reason string) {
	m.mu.Lock()
	_, present := m.sessions[l.session.ID]
	delete(m.sessions, l.session.ID)
	m.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.stopAllLocked()
	l.closed = true
	if l.session.Status != models.SessionCompleted {
		l.session.Status = status
	}
	if err := m.repo.UpdateSession(ctx, l.session); err != nil {
		m.logger.Error("failed to persist evicted session", "error", err, "session_id", l.session.ID)
	}
	l.closeSubsLocked()

	if present {
		metrics.SessionsLive.Dec()
	}
	metrics.SessionsEnded.WithLabelValues(reason).Inc()
}

// Subscribe attaches a stream to a live session. The token is the one handed
// out by Create. The current state is queued as the first message.
func (m *Manager) Subscribe(id, token string) (*Stream, error) {
	m.mu.RLock()
	l, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(l.session.Token)) != 1 {
		return nil, ErrInvalidToken
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrSessionClosed
	}

	ch := make(chan Message, streamBuffer)
	l.nextSub++
	key := l.nextSub
	l.subs[key] = ch
	ch <- Message{Type: MessageState, Data: l.responseLocked()}

	return &Stream{C: ch, m: m, l: l, key: key}, nil
}

// Live returns the number of sessions held in memory
func (m *Manager) Live() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops every live session without changing its stored status.
func (m *Manager) Close() error {
	m.mu.Lock()
	lives := m.sessions
	m.sessions = make(map[string]*live)
	m.mu.Unlock()

	for _, l := range lives {
		l.mu.Lock()
		l.stopAllLocked()
		l.closed = true
		l.closeSubsLocked()
		l.mu.Unlock()
	}
	metrics.SessionsLive.Sub(float64(len(lives)))
	return nil
}

func (m *Manager) persistLocked(ctx context.Context, l *live) {
	if err := m.repo.UpdateSession(ctx, l.session); err != nil {
		m.logger.Error("failed to persist session", "error", err, "session_id", l.session.ID)
		return
	}
	l.saved = l.session.Status
}

func (m *Manager) snapshotLocked(ctx context.Context, l *live) {
	view, err := json.Marshal(l.engine.View())
	if err != nil {
		m.logger.Error("failed to encode view", "error", err, "session_id", l.session.ID)
		return
	}
	snap := storage.Snapshot{SessionID: l.session.ID, View: view, SavedAt: m.sched.Now()}
	if err := m.state.SaveSnapshot(ctx, snap, m.opts.TTL); err != nil {
		m.logger.Warn("failed to save snapshot", "error", err, "session_id", l.session.ID)
	}
}

func (l *live) responseLocked() *models.SessionResponse {
	s := *l.session
	if l.session.Reward != nil {
		r := *l.session.Reward
		s.Reward = &r
	}
	return &models.SessionResponse{
		Session: &s,
		View:    l.engine.View(),
		Muted:   l.muted,
	}
}
