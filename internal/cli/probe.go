package cli

import (
	"context"
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"apk-installer/internal/app"
)

type probeOptions struct {
	Artifact  string
	TargetSDK int
}

func newProbeCommand() *cobra.Command {
	opts := probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Report which installer strategies are usable on the device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Artifact, "artifact", "", "Artifact file name (non-.apk files use file copy)")
	cmd.Flags().IntVar(&opts.TargetSDK, "target-sdk", 0, "Archive target SDK")
	return cmd
}

func runProbe(ctx context.Context, opts probeOptions) error {
	service, err := newAppService(ctx, false)
	if err != nil {
		return err
	}
	defer service.Close()

	report := service.Probe(ctx, app.ProbeRequest{ArtifactPath: opts.Artifact, TargetSDK: int32(opts.TargetSDK)})
	fmt.Printf("device: %s %s (sdk %d)\n", report.Device.Brand, report.Device.Model, report.Device.SDK)
	for _, check := range report.Checks {
		mark := color.Red.Sprint("no ")
		if check.Eligible {
			mark = color.Green.Sprint("yes")
		}
		fmt.Printf("  %-10s %s %s\n", check.Installer, mark, check.Reason)
	}
	fmt.Printf("selected: %s\n", color.Bold.Sprint(string(report.Selected)))
	return nil
}
