// Package commands implements the filesctl maintenance CLI.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eyueldk/edkstack-files/internal/app"
	"github.com/eyueldk/edkstack-files/internal/config"
	"github.com/eyueldk/edkstack-files/internal/logger"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

// NewRootCmd builds the command tree. Configuration comes from the same
// environment variables (and .env file) as the API server.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "filesctl",
		Short: "Maintenance tool for the files service",
		Long: `filesctl operates directly on the files metadata store and object storage.

It reads the same environment variables as the API server, so run it with
the server's .env file or environment.

Use "filesctl [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("output", "o", "json", "Output format (json|yaml)")

	root.AddCommand(
		newVersionCmd(),
		newMigrateCmd(),
		newSweepCmd(),
		newGetCmd(),
		newURLCmd(),
		newAcquireCmd(),
		newReleaseCmd(),
		newDeleteCmd(),
	)
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "filesctl %s (%s)\n", Version, Commit)
			return err
		},
	}
}

// withApp loads configuration, wires the application and runs fn.
func withApp(cmd *cobra.Command, opts app.Options, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, log, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// printResult writes v to the command's output in the selected format.
func printResult(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	return encode(cmd.OutOrStdout(), format, v)
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q (use json or yaml)", format)
	}
}
