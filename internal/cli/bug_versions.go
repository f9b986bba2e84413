package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"registry-core/internal/app"
	"registry-core/internal/types"
)

type fixBugVersionsOptions struct {
	Package string
}

func newFixBugVersionsCommand(backend *backendOptions) *cobra.Command {
	opts := fixBugVersionsOptions{}
	cmd := &cobra.Command{
		Use:   "fix-bug-versions",
		Short: "Invalidate caches of every package named in the bug-versions package",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFixBugVersions(cmd.Context(), cmd, backend, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Package, "package", types.BugVersionsPackage, "Published package name")
	return cmd
}

func runFixBugVersions(ctx context.Context, cmd *cobra.Command, backend *backendOptions, opts fixBugVersionsOptions) error {
	service := newAppService()
	result, err := service.PackagePublished(ctx, app.PackagePublishedRequest{
		Backend: backendConfig(cmd, backend),
		Package: opts.Package,
	})
	if err != nil {
		return err
	}
	if !result.Handled {
		fmt.Fprintf(cmd.OutOrStdout(), "nothing to do for %s\n", opts.Package)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleaned %d package caches (%d failed)\n", len(result.Cleaned), len(result.Failed))
	for _, name := range result.Failed {
		fmt.Fprintf(cmd.OutOrStdout(), "failed: %s\n", name)
	}
	return nil
}
