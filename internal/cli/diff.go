package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"apk-installer/internal/app"
	"apk-installer/internal/types"
)

type diffOptions struct {
	Apk string
}

func newDiffCommand() *cobra.Command {
	opts := diffOptions{}
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show the permissions an APK adds over the installed version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiff(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Apk, "apk", "", "APK path")
	return cmd
}

func runDiff(ctx context.Context, opts diffOptions) error {
	service, err := newAppService(ctx, false)
	if err != nil {
		return err
	}
	defer service.Close()

	result, err := service.PermissionDiff(ctx, app.DiffRequest{ApkPath: opts.Apk})
	if err != nil {
		return err
	}
	if result.Installed == nil {
		fmt.Printf("%s %d (not installed)\n", result.Candidate.PackageName, result.Candidate.VersionCode)
	} else {
		fmt.Printf("%s %d -> %d\n", result.Candidate.PackageName, result.Installed.VersionCode, result.Candidate.VersionCode)
	}
	printGroups("personal", result.Diff.Personal)
	printGroups("device", result.Diff.Device)
	if result.Diff.RequiresConfirmation {
		fmt.Println(color.Yellow.Sprint("confirmation required"))
	}
	return nil
}

func printGroups(title string, groups []types.PermissionGroup) {
	if len(groups) == 0 {
		return
	}
	fmt.Println(color.Bold.Sprint(title))
	for _, group := range groups {
		fmt.Printf("  %s: %s\n", group.Name, strings.Join(group.Permissions, ", "))
	}
}
