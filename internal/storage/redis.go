package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotPrefix = "arcade:snapshot:"
	mutePrefix     = "arcade:mute:"
)

// Snapshot is the last rendered view of a session, kept so that a restarted
// process can still answer reads for sessions whose engine is gone.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	View      json.RawMessage `json:"view"`
	SavedAt   time.Time       `json:"saved_at"`
}

// StateStore persists view snapshots and per-player preferences.
type StateStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot, ttl time.Duration) error
	LoadSnapshot(ctx context.Context, sessionID string) (*Snapshot, error)
	DeleteSnapshot(ctx context.Context, sessionID string) error
	SetMuted(ctx context.Context, playerID string, muted bool) error
	Muted(ctx context.Context, playerID string) (bool, error)
}

// RedisStore implements StateStore on Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to address and pings it
func NewRedisStore(ctx context.Context, address, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("connected to redis", "address", address, "db", db)
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// SaveSnapshot stores snap under the session id. ttl <= 0 keeps it forever.
func (s *RedisStore) SaveSnapshot(ctx context.Context, snap Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, snapshotPrefix+snap.SessionID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns nil, nil when no snapshot exists
func (s *RedisStore) LoadSnapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// DeleteSnapshot removes the snapshot for a session
func (s *RedisStore) DeleteSnapshot(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, snapshotPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// SetMuted stores the player's mute preference without expiry
func (s *RedisStore) SetMuted(ctx context.Context, playerID string, muted bool) error {
	key := mutePrefix + playerID
	var err error
	if muted {
		err = s.client.Set(ctx, key, "1", 0).Err()
	} else {
		err = s.client.Del(ctx, key).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to store mute preference: %w", err)
	}
	return nil
}

// Muted reports the stored preference, false when unset
func (s *RedisStore) Muted(ctx context.Context, playerID string) (bool, error) {
	n, err := s.client.Exists(ctx, mutePrefix+playerID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read mute preference: %w", err)
	}
	return n > 0, nil
}

// HealthCheck verifies Redis connectivity
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStateStore is a StateStore for single-process runs and tests. TTLs
// are honoured lazily on read.
type MemoryStateStore struct {
	mu        sync.Mutex
	now       func() time.Time
	snapshots map[string]memorySnapshot
	muted     map[string]bool
}

type memorySnapshot struct {
	snap    Snapshot
	expires time.Time
}

// NewMemoryStateStore creates an empty store. now may be nil.
func NewMemoryStateStore(now func() time.Time) *MemoryStateStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStateStore{
		now:       now,
		snapshots: make(map[string]memorySnapshot),
		muted:     make(map[string]bool),
	}
}

// SaveSnapshot implements StateStore
func (m *MemoryStateStore) SaveSnapshot(_ context.Context, snap Snapshot, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memorySnapshot{snap: snap}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.snapshots[snap.SessionID] = entry
	return nil
}

// LoadSnapshot implements StateStore
func (m *MemoryStateStore) LoadSnapshot(_ context.Context, sessionID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.snapshots[sessionID]
	if !ok {
		return nil, nil
	}
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		delete(m.snapshots, sessionID)
		return nil, nil
	}
	snap := entry.snap
	return &snap, nil
}

// DeleteSnapshot implements StateStore
func (m *MemoryStateStore) DeleteSnapshot(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, sessionID)
	return nil
}

// SetMuted implements StateStore
func (m *MemoryStateStore) SetMuted(_ context.Context, playerID string, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if muted {
		m.muted[playerID] = true
	} else {
		delete(m.muted, playerID)
	}
	return nil
}

// Muted implements StateStore
func (m *MemoryStateStore) Muted(_ context.Context, playerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted[playerID], nil
}
