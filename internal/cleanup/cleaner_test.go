package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/pylearn-arcade/internal/models"
)

type fakeReaper struct {
	mu      sync.Mutex
	expired []*models.GameSession
	listErr error
	fail    map[string]bool
	reaped  []string
}

func (f *fakeReaper) GetExpired(context.Context) ([]*models.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.expired
	f.expired = nil
	return out, f.listErr
}

func (f *fakeReaper) Expire(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return errors.New("boom")
	}
	f.reaped = append(f.reaped, id)
	return nil
}

func (f *fakeReaper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reaped)
}

func TestCleanupSkipsFailures(t *testing.T) {
	r := &fakeReaper{
		expired: []*models.GameSession{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		fail:    map[string]bool{"b": true},
	}
	c := NewCleaner(r, time.Minute)

	assert.Equal(t, 2, c.Cleanup(context.Background()))
	assert.Equal(t, []string{"a", "c"}, r.reaped)
	assert.Zero(t, c.Cleanup(context.Background()))
}

func TestCleanupReapsPartialListOnError(t *testing.T) {
	r := &fakeReaper{
		expired: []*models.GameSession{{ID: "a"}},
		listErr: errors.New("db down"),
	}
	assert.Equal(t, 1, NewCleaner(r, 0).Cleanup(context.Background()))
}

func TestRunCleansImmediatelyAndStops(t *testing.T) {
	r := &fakeReaper{expired: []*models.GameSession{{ID: "a"}}}
	c := NewCleaner(r, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}
