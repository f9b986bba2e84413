package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"registry-core/internal/app"
)

type readOptions struct {
	FullManifest   bool
	WithBugVersion bool
}

func addReadFlags(cmd *cobra.Command, opts *readOptions, withFull bool) {
	cmd.Flags().BoolVar(&opts.WithBugVersion, "with-bug-version", true, "Apply bug version advice")
	_ = viper.BindPFlag("with_bug_version", cmd.Flags().Lookup("with-bug-version"))
	if withFull {
		cmd.Flags().BoolVar(&opts.FullManifest, "full", false, "Return full manifests instead of abbreviated ones")
	}
}

func newResolveCommand(backend *backendOptions) *cobra.Command {
	opts := readOptions{}
	cmd := &cobra.Command{
		Use:   "resolve <name@selector>",
		Short: "Resolve a package spec to a stored version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), cmd, backend, opts, args[0])
		},
	}
	addReadFlags(cmd, &opts, false)
	return cmd
}

func runResolve(ctx context.Context, cmd *cobra.Command, backend *backendOptions, opts readOptions, spec string) error {
	service := newAppService()
	result, err := service.ResolveVersion(ctx, app.ResolveVersionRequest{
		Backend:        backendConfig(cmd, backend),
		Spec:           spec,
		WithBugVersion: resolveBool(cmd, opts.WithBugVersion, "with_bug_version", "with-bug-version"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Version)
	return nil
}

func newManifestCommand(backend *backendOptions) *cobra.Command {
	opts := readOptions{}
	cmd := &cobra.Command{
		Use:   "manifest <name@selector>",
		Short: "Print the manifest a package spec resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifest(cmd.Context(), cmd, backend, opts, args[0])
		},
	}
	addReadFlags(cmd, &opts, true)
	return cmd
}

func runManifest(ctx context.Context, cmd *cobra.Command, backend *backendOptions, opts readOptions, spec string) error {
	service := newAppService()
	result, err := service.ReadManifest(ctx, app.ReadManifestRequest{
		Backend:        backendConfig(cmd, backend),
		Spec:           spec,
		FullManifest:   opts.FullManifest,
		WithBugVersion: resolveBool(cmd, opts.WithBugVersion, "with_bug_version", "with-bug-version"),
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd, result.Manifest)
}

func newManifestsCommand(backend *backendOptions) *cobra.Command {
	opts := readOptions{}
	cmd := &cobra.Command{
		Use:   "manifests <name>",
		Short: "Print every version manifest of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifests(cmd.Context(), cmd, backend, opts, args[0])
		},
	}
	addReadFlags(cmd, &opts, true)
	return cmd
}

func runManifests(ctx context.Context, cmd *cobra.Command, backend *backendOptions, opts readOptions, name string) error {
	service := newAppService()
	result, err := service.ListManifests(ctx, app.ListManifestsRequest{
		Backend:        backendConfig(cmd, backend),
		Package:        name,
		FullManifest:   opts.FullManifest,
		WithBugVersion: resolveBool(cmd, opts.WithBugVersion, "with_bug_version", "with-bug-version"),
	})
	if err != nil {
		return err
	}
	for _, gap := range result.Gaps {
		log.Warn().
			Str("package", gap.FullName).
			Str("version", gap.Version).
			Str("fixed", gap.FixedVersion).
			Msg("fixed version missing, bug version served unchanged")
	}
	return writeJSON(cmd, result.Manifests)
}

func newBlockInfoCommand(backend *backendOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block-info <name>",
		Short: "Show whether a package is blocked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlockInfo(cmd.Context(), cmd, backend, args[0])
		},
	}
	return cmd
}

func runBlockInfo(ctx context.Context, cmd *cobra.Command, backend *backendOptions, name string) error {
	service := newAppService()
	result, err := service.BlockInfo(ctx, app.BlockInfoRequest{
		Backend: backendConfig(cmd, backend),
		Package: name,
	})
	if err != nil {
		return err
	}
	if !result.Blocked {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: not blocked\n", name)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: blocked, reason: %s\n", name, result.Reason)
	return nil
}

func writeJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
