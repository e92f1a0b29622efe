package cli

import (
	"context"

	"github.com/spf13/cobra"

	"apk-installer/internal/app"
)

type uninstallOptions struct {
	Yes bool
}

func newUninstallCommand() *cobra.Command {
	opts := uninstallOptions{}
	cmd := &cobra.Command{
		Use:   "uninstall <package>",
		Short: "Remove an installed package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUninstall(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func runUninstall(ctx context.Context, packageName string, opts uninstallOptions) error {
	service, err := newAppService(ctx, !opts.Yes)
	if err != nil {
		return err
	}
	defer service.Close()

	events, unsubscribe := service.Bus.Subscribe(256)
	defer unsubscribe()
	result, err := service.Uninstall(ctx, app.UninstallRequest{PackageName: packageName})
	if err != nil {
		return err
	}
	return follow(ctx, service, result.Operation, events)
}
