package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eyueldk/edkstack-files/internal/app"
	"github.com/eyueldk/edkstack-files/internal/config"
	"github.com/eyueldk/edkstack-files/internal/db"
	"github.com/eyueldk/edkstack-files/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply or roll back the embedded PostgreSQL migrations.

The SQLite metadata store migrates itself on open, so these commands only
report success for it.

Examples:
  # Apply all pending migrations
  filesctl migrate up

  # Roll back the last migration
  filesctl migrate down --steps 1`,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, 0)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return runMigrate(cmd, steps)
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

// runMigrate applies all migrations when down is 0, otherwise rolls back down steps.
func runMigrate(cmd *cobra.Command, down int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if cfg.MetadataDriver != "postgres" {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "metadata driver %q migrates on open, nothing to do\n", cfg.MetadataDriver)
		return err
	}

	if down > 0 {
		if err := db.MigrateDown(cfg.DatabaseURL, down, log); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", down)
		return err
	}
	if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return err
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stored objects that no file record refers to",
		Long: `Scan object storage under the configured key prefix and delete every object
that has no metadata row and is older than SWEEP_GRACE_PERIOD.

Examples:
  # Show what would be deleted
  filesctl sweep --dry-run

  # Reclaim orphans older than one hour
  SWEEP_GRACE_PERIOD=1h filesctl sweep`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return withApp(cmd, app.Options{}, func(ctx context.Context, a *app.App) error {
				res, err := a.Sweeper(dryRun).RunOnce(ctx)
				if perr := printResult(cmd, res); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().Bool("dry-run", false, "Report orphans without deleting them")
	return cmd
}
