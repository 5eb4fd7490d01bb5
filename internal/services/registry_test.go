package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok() Checker { return CheckerFunc(func(context.Context) error { return nil }) }

func failing(msg string) Checker {
	return CheckerFunc(func(context.Context) error { return errors.New(msg) })
}

func TestHealthCheckAll(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("database", ok())
	r.RegisterOptional("rewards", failing("connection refused"))

	statuses, ready := r.HealthCheckAll(context.Background())
	assert.True(t, ready, "optional failures do not block readiness")
	require.Len(t, statuses, 2)
	assert.Equal(t, "database", statuses[0].Name)
	assert.True(t, statuses[0].Healthy)
	assert.False(t, statuses[1].Healthy)
	assert.True(t, statuses[1].Optional)
	assert.Equal(t, "connection refused", statuses[1].Error)

	r.Register("redis", failing("timeout"))
	_, ready = r.HealthCheckAll(context.Background())
	assert.False(t, ready)

	r.Unregister("redis")
	assert.Equal(t, []string{"database", "rewards"}, r.List())
}

func TestHealthCheckTimeout(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register("slow", CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	statuses, ready := r.HealthCheckAll(context.Background())
	assert.False(t, ready)
	require.Len(t, statuses, 1)
	assert.Contains(t, statuses[0].Error, "deadline")
}
