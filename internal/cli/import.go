package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"registry-core/internal/app"
)

func newImportCommand(backend *backendOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a registry snapshot file into MySQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd.Context(), cmd, backend)
		},
	}
	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, backend *backendOptions) error {
	service := newAppService()
	result, err := service.Import(ctx, app.ImportRequest{
		SnapshotPath: resolveString(cmd, backend.Snapshot, "snapshot", "snapshot"),
		MySQL:        mysqlConfig(cmd, backend),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d packages, %d versions, %d proxy caches\n",
		result.Packages, result.Versions, result.ProxyCaches)
	return nil
}
