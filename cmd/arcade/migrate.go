package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/terra-clan/pylearn-arcade/internal/config"
	"github.com/terra-clan/pylearn-arcade/internal/storage"
)

var (
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Manage the session database schema",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	}
	migrateStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they have been applied",
		Args:  cobra.NoArgs,
		RunE:  runMigrateStatus,
	}
)

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

func databaseConfig() (config.DatabaseConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	if cfg.Database.DSN == "" {
		return config.DatabaseConfig{}, fmt.Errorf("DATABASE_DSN is required")
	}
	return cfg.Database, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	db, err := databaseConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	applied, err := storage.MigrateFromDSN(ctx, db.DSN, db.MigrationsDir)
	for _, name := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to apply")
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	db, err := databaseConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, db.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	statuses, err := storage.Status(ctx, pool, db.MigrationsDir)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MIGRATION\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		state, at := "pending", "-"
		if s.Applied {
			state = "applied"
		}
		if s.AppliedAt != nil {
			at = s.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, state, at)
	}
	return tw.Flush()
}
