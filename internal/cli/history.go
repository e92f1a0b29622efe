package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"apk-installer/internal/app"
)

type historyOptions struct {
	Package string
	Since   string
	Limit   int
}

func newHistoryCommand() *cobra.Command {
	opts := historyOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished installs and uninstalls",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Package, "package", "", "Only show this package")
	cmd.Flags().StringVar(&opts.Since, "since", "", "Only show entries since a time, date or duration (e.g. 24h)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "Maximum entries (negative for all)")
	return cmd
}

func runHistory(ctx context.Context, cmd *cobra.Command, opts historyOptions) error {
	limit := resolveInt(cmd, opts.Limit, "history.limit", "limit")
	service, err := newAppService(ctx, false)
	if err != nil {
		return err
	}
	defer service.Close()

	entries, err := service.ListHistory(ctx, app.HistoryRequest{PackageName: opts.Package, Since: opts.Since, Limit: limit})
	if err != nil {
		return err
	}
	for _, entry := range entries {
		line := fmt.Sprintf("%s  %-24s %-10s %s", entry.Time.Format("2006-01-02 15:04:05"), entry.Event, entry.VersionName, entry.PackageName)
		if entry.Message != "" {
			line += "  " + entry.Message
		}
		fmt.Println(line)
	}
	return nil
}
