package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"golang.org/x/sync/singleflight"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/models"
)

// Source resolves activities by slug
type Source interface {
	Activity(ctx context.Context, slug string) (*models.Activity, error)
}

// Chain asks each source in turn and returns the first hit.
type Chain []Source

// Activity implements Source
func (c Chain) Activity(ctx context.Context, slug string) (*models.Activity, error) {
	for _, s := range c {
		a, err := s.Activity(ctx, slug)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, ErrActivityNotFound) {
			return nil, err
		}
	}
	return nil, ErrActivityNotFound
}

// queryTimeout bounds a shared activity lookup once it no longer follows the
// caller's context.
const queryTimeout = 5 * time.Second

// SQLSource reads activities from the main application's activities table.
type SQLSource struct {
	db    *sql.DB
	group singleflight.Group
	fetch func(ctx context.Context, slug string) (*models.Activity, error)
}

func newSQLSource(db *sql.DB) *SQLSource {
	s := &SQLSource{db: db}
	s.fetch = s.query
	return s
}

// NewSQLSource opens dsn with the lib/pq driver and checks connectivity
func NewSQLSource(ctx context.Context, dsn string) (*SQLSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open content database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping content database: %w", err)
	}
	return newSQLSource(db), nil
}

// NewSQLSourceFromDB wraps an existing handle
func NewSQLSourceFromDB(db *sql.DB) *SQLSource {
	return newSQLSource(db)
}

// Close closes the database handle
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database
func (s *SQLSource) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Activity implements Source. Concurrent lookups for the same slug share one
// query, which runs detached from any single caller: a caller that gives up
// gets its own context error while the others still receive the result.
func (s *SQLSource) Activity(ctx context.Context, slug string) (*models.Activity, error) {
	ch := s.group.DoChan(slug, func() (any, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queryTimeout)
		defer cancel()
		return s.fetch(qctx, slug)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Activity), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SQLSource) query(ctx context.Context, slug string) (*models.Activity, error) {
	query := `
		SELECT slug, type, title, category, time_limit, instructions, content, tags
		FROM activities
		WHERE slug = $1
	`

	var (
		a            models.Activity
		kind         string
		category     sql.NullString
		timeLimit    sql.NullInt64
		instructions sql.NullString
		body         sql.NullString
		tags         []string
	)
	err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&a.Slug, &kind, &a.Title, &category, &timeLimit, &instructions, &body, pq.Array(&tags),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}

	a.Type = game.Kind(strings.ToLower(kind))
	if !a.Type.Valid() {
		slog.Warn("activity has unplayable type", "slug", slug, "type", kind)
		return nil, ErrActivityNotFound
	}
	a.Category = category.String
	a.TimeLimit = int(timeLimit.Int64)
	a.Instructions = instructions.String
	a.Tags = tags
	if body.Valid {
		a.Content = body.String
	}
	return &a, nil
}
