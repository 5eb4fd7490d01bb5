package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationStatus describes one migration file and whether it has been applied
type MigrationStatus struct {
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// ListMigrationFiles returns the .sql files in dir in apply order
func ListMigrationFiles(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".sql") {
			migrations = append(migrations, f.Name())
		}
	}
	sort.Strings(migrations)
	return migrations, nil
}

// RunMigrations applies every pending migration from dir, each in its own
// transaction. It returns the names that were applied.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) ([]string, error) {
	if err := createMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrations, err := ListMigrationFiles(dir)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, migration := range migrations {
		if _, ok := applied[migration]; ok {
			slog.Debug("migration already applied", "migration", migration)
			continue
		}

		slog.Info("applying migration", "migration", migration)

		content, err := os.ReadFile(filepath.Join(dir, migration))
		if err != nil {
			return done, fmt.Errorf("failed to read migration %s: %w", migration, err)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return done, fmt.Errorf("failed to begin transaction for %s: %w", migration, err)
		}

		if _, err := tx.Exec(ctx, string(content)); err != nil {
			tx.Rollback(ctx)
			return done, fmt.Errorf("failed to execute migration %s: %w", migration, err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, migration); err != nil {
			tx.Rollback(ctx)
			return done, fmt.Errorf("failed to record migration %s: %w", migration, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return done, fmt.Errorf("failed to commit migration %s: %w", migration, err)
		}

		done = append(done, migration)
		slog.Info("migration applied successfully", "migration", migration)
	}

	return done, nil
}

// Status reports every migration file in dir alongside its applied state
func Status(ctx context.Context, pool *pgxpool.Pool, dir string) ([]MigrationStatus, error) {
	if err := createMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := ListMigrationFiles(dir)
	if err != nil {
		return nil, err
	}

	return mergeStatus(files, applied), nil
}

// mergeStatus lists files in order, then any applied names no longer on disk
func mergeStatus(files []string, applied map[string]time.Time) []MigrationStatus {
	out := make([]MigrationStatus, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, name := range files {
		st := MigrationStatus{Name: name}
		if at, ok := applied[name]; ok {
			st.Applied = true
			st.AppliedAt = &at
		}
		seen[name] = true
		out = append(out, st)
	}

	var orphans []string
	for name := range applied {
		if !seen[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	for _, name := range orphans {
		at := applied[name]
		out = append(out, MigrationStatus{Name: name, Applied: true, AppliedAt: &at})
	}
	return out
}

// createMigrationsTable creates the schema_migrations table if it doesn't exist
func createMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// getAppliedMigrations returns applied migration names with their timestamps
func getAppliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]time.Time, error) {
	rows, err := pool.Query(ctx, `SELECT name, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var name string
		var at time.Time
		if err := rows.Scan(&name, &at); err != nil {
			return nil, err
		}
		applied[name] = at
	}

	return applied, rows.Err()
}

// MigrateFromDSN is a convenience function to run migrations with a DSN
func MigrateFromDSN(ctx context.Context, dsn, dir string) ([]string, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	return RunMigrations(ctx, pool, dir)
}
