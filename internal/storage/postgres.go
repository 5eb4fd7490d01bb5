package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 20
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 2
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const (
	sessionColumns = `id, token, activity_slug, kind, status, player_id, score, time_spent_sec, mistakes, reward, created_at, started_at, completed_at, expires_at`
	selectColumns  = `id::text, token, activity_slug, kind, status, player_id, score, time_spent_sec, mistakes, reward, created_at, started_at, completed_at, expires_at`
)

// CreateSession inserts a new game session
func (r *PostgresRepository) CreateSession(ctx context.Context, s *models.GameSession) error {
	rewardJSON, err := marshalReward(s.Reward)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO game_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.pool.Exec(ctx, query,
		s.ID,
		s.Token,
		s.ActivitySlug,
		string(s.Kind),
		string(s.Status),
		s.PlayerID,
		nullInt(s.Score),
		nullInt(s.TimeSpentSec),
		s.Mistakes,
		rewardJSON,
		s.CreatedAt,
		nullTime(s.StartedAt),
		nullTime(s.CompletedAt),
		s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*models.GameSession, error) {
	return r.getSession(ctx, "id", id)
}

// GetSessionByToken retrieves a session by its player token
func (r *PostgresRepository) GetSessionByToken(ctx context.Context, token string) (*models.GameSession, error) {
	return r.getSession(ctx, "token", token)
}

func (r *PostgresRepository) getSession(ctx context.Context, field, value string) (*models.GameSession, error) {
	query := `SELECT ` + selectColumns + ` FROM game_sessions WHERE ` + field + ` = $1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// UpdateSession writes the mutable fields of a session
func (r *PostgresRepository) UpdateSession(ctx context.Context, s *models.GameSession) error {
	rewardJSON, err := marshalReward(s.Reward)
	if err != nil {
		return err
	}

	query := `
		UPDATE game_sessions
		SET status = $2, score = $3, time_spent_sec = $4, mistakes = $5, reward = $6,
		    started_at = $7, completed_at = $8, expires_at = $9
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		s.ID,
		string(s.Status),
		nullInt(s.Score),
		nullInt(s.TimeSpentSec),
		s.Mistakes,
		rewardJSON,
		nullTime(s.StartedAt),
		nullTime(s.CompletedAt),
		s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", s.ID)
	}

	return nil
}

// ListSessions returns one page of sessions plus the total match count
func (r *PostgresRepository) ListSessions(ctx context.Context, filters models.SessionFilters) ([]*models.GameSession, int, error) {
	where := ` WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.PlayerID != "" {
		where += fmt.Sprintf(" AND player_id = $%d", argNum)
		args = append(args, filters.PlayerID)
		argNum++
	}
	if filters.ActivitySlug != "" {
		where += fmt.Sprintf(" AND activity_slug = $%d", argNum)
		args = append(args, filters.ActivitySlug)
		argNum++
	}
	if filters.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM game_sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	query := `SELECT ` + selectColumns + ` FROM game_sessions` + where + ` ORDER BY created_at DESC`

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.GameSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, total, rows.Err()
}

// GetExpiredSessions returns unfinished sessions whose idle TTL has passed
func (r *PostgresRepository) GetExpiredSessions(ctx context.Context, now time.Time) ([]*models.GameSession, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM game_sessions
		WHERE expires_at < $1 AND status NOT IN ('completed', 'abandoned', 'expired')
		ORDER BY expires_at
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.GameSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*models.GameSession, error) {
	var s models.GameSession
	var kind, status string
	var score, spent sql.NullInt32
	var rewardJSON []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.Token,
		&s.ActivitySlug,
		&kind,
		&status,
		&s.PlayerID,
		&score,
		&spent,
		&s.Mistakes,
		&rewardJSON,
		&s.CreatedAt,
		&startedAt,
		&completedAt,
		&s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	s.Kind = game.Kind(kind)
	s.Status = models.SessionStatus(status)
	if score.Valid {
		v := int(score.Int32)
		s.Score = &v
	}
	if spent.Valid {
		v := int(spent.Int32)
		s.TimeSpentSec = &v
	}
	if startedAt.Valid {
		s.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	if len(rewardJSON) > 0 {
		var reward models.RewardState
		if err := json.Unmarshal(rewardJSON, &reward); err == nil {
			s.Reward = &reward
		}
	}

	return &s, nil
}

func marshalReward(r *models.RewardState) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reward: %w", err)
	}
	return b, nil
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
