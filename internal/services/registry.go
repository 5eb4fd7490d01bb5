// Package services tracks the external dependencies the arcade talks to and
// reports their health for the readiness probe.
package services

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Checker is anything that can report its own health
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f
func (f CheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

type entry struct {
	checker  Checker
	optional bool
}

// Status is the health of one dependency
type Status struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Registry manages dependency health checkers
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	timeout time.Duration
}

// NewRegistry creates a new registry. Each check gets timeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Registry{
		entries: make(map[string]entry),
		timeout: timeout,
	}
}

// Register adds a dependency that must be healthy for the service to be ready
func (r *Registry) Register(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{checker: c}
}

// RegisterOptional adds a dependency that is reported but never blocks
// readiness
func (r *Registry) RegisterOptional(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{checker: c, optional: true}
}

// Unregister removes a dependency from the registry
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// List returns all registered names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll checks every dependency concurrently. ready is false when
// any required dependency is unhealthy.
func (r *Registry) HealthCheckAll(ctx context.Context) (statuses []Status, ready bool) {
	r.mu.RLock()
	entries := make(map[string]entry, len(r.entries))
	for name, e := range r.entries {
		entries[name] = e
	}
	r.mu.RUnlock()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	ready = true
	for name, e := range entries {
		wg.Add(1)
		go func(name string, e entry) {
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			err := e.checker.HealthCheck(cctx)

			st := Status{Name: name, Healthy: err == nil, Optional: e.optional}
			if err != nil {
				st.Error = err.Error()
			}

			mu.Lock()
			statuses = append(statuses, st)
			if err != nil && !e.optional {
				ready = false
			}
			mu.Unlock()
		}(name, e)
	}
	wg.Wait()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses, ready
}
