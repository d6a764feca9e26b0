package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eyueldk/edkstack-files/internal/app"
	"github.com/eyueldk/edkstack-files/internal/file"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>...",
		Short: "Show file records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, app.Options{}, func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					f, err := a.Files.GetFile(ctx, args[0])
					if err != nil {
						return describe(args[0], err)
					}
					return printResult(cmd, f)
				}
				files, err := a.Files.GetFiles(ctx, args)
				if err != nil {
					return err
				}
				return printResult(cmd, files)
			})
		},
	}
}

func newURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url <id>...",
		Short: "Resolve download URLs",
		Long: `Resolve download URLs. Public files get their public URL, private files a
presigned URL valid for FILES_PRESIGN_TTL. Unknown ids are left out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, app.Options{}, func(ctx context.Context, a *app.App) error {
				urls, err := a.Files.GetURLs(ctx, args)
				if err != nil {
					return err
				}
				return printResult(cmd, urls)
			})
		},
	}
}

func newAcquireCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acquire <id>...",
		Short: "Add a reference to files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			purpose, _ := cmd.Flags().GetString("purpose")
			return withApp(cmd, app.Options{}, func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					f, err := a.Files.AcquireFile(ctx, args[0], purpose)
					if err != nil {
						return describe(args[0], err)
					}
					return printResult(cmd, f)
				}
				files, err := a.Files.AcquireFiles(ctx, args, purpose)
				if err != nil {
					return err
				}
				if files == nil {
					files = []*file.File{}
				}
				return printResult(cmd, files)
			})
		},
	}
	cmd.Flags().String("purpose", "", "Only acquire files with this purpose")
	return cmd
}

func newReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <id>...",
		Short: "Drop a reference to files, deleting those left unreferenced",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, app.Options{}, func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					if err := a.Files.ReleaseFile(ctx, args[0]); err != nil {
						return describe(args[0], err)
					}
				} else if err := a.Files.ReleaseFiles(ctx, args); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "released %d file(s)\n", len(args))
				return err
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete files regardless of their reference count",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, app.Options{}, func(ctx context.Context, a *app.App) error {
				if err := a.Files.DeleteFiles(ctx, args); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %d file(s)\n", len(args))
				return err
			})
		},
	}
}

func describe(id string, err error) error {
	if errors.Is(err, file.ErrNotFound) {
		return fmt.Errorf("file %s: %w", id, err)
	}
	return err
}
