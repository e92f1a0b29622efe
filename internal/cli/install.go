package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"apk-installer/internal/app"
	"apk-installer/internal/types"
)

type installOptions struct {
	URL         string
	Apk         string
	Package     string
	VersionCode int
	VersionName string
	Hash        string
	HashType    string
	Size        int
	Permissions []string
	TargetSDK   int
	Signer      string
	Yes         bool
	DryRun      bool
}

func newInstallCommand() *cobra.Command {
	opts := installOptions{}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download, verify and install an APK",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstall(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.URL, "url", "", "Artifact URL (http, https, file or s3)")
	cmd.Flags().StringVar(&opts.Apk, "apk", "", "Local artifact path")
	cmd.Flags().StringVar(&opts.Package, "package", "", "Expected package name")
	cmd.Flags().IntVar(&opts.VersionCode, "version-code", 0, "Expected version code")
	cmd.Flags().StringVar(&opts.VersionName, "version-name", "", "Expected version name")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "Expected artifact hash (hex)")
	cmd.Flags().StringVar(&opts.HashType, "hash-type", "sha256", "Hash type (sha256, sha512 or blake3)")
	cmd.Flags().IntVar(&opts.Size, "size", 0, "Expected artifact size in bytes")
	cmd.Flags().StringSliceVar(&opts.Permissions, "permission", nil, "Declared permissions")
	cmd.Flags().IntVar(&opts.TargetSDK, "target-sdk", 0, "Expected target SDK")
	cmd.Flags().StringVar(&opts.Signer, "signer", "", "Expected signer certificate SHA-256 fingerprint")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Accept permission prompts")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Verify and stage without installing")
	_ = viper.BindPFlag("installer.dry_run", cmd.Flags().Lookup("dry-run"))
	return cmd
}

func runInstall(ctx context.Context, cmd *cobra.Command, opts installOptions) error {
	hashType := resolveString(cmd, opts.HashType, "install.hash_type", "hash-type")
	assumeYes := resolveBool(cmd, opts.Yes, "install.assume_yes", "yes")
	expected := types.ExpectedApk{
		PackageName:       strings.TrimSpace(opts.Package),
		VersionCode:       int64(opts.VersionCode),
		VersionName:       strings.TrimSpace(opts.VersionName),
		Permissions:       opts.Permissions,
		TargetSDK:         types.TargetSDKUnknown,
		Hash:              strings.TrimSpace(opts.Hash),
		HashType:          types.HashType(strings.ToLower(strings.TrimSpace(hashType))),
		Size:              int64(opts.Size),
		SignerFingerprint: strings.TrimSpace(opts.Signer),
	}
	if opts.TargetSDK > 0 {
		expected.TargetSDK = int32(opts.TargetSDK)
	}
	service, err := newAppService(ctx, !assumeYes)
	if err != nil {
		return err
	}
	defer service.Close()

	events, unsubscribe := service.Bus.Subscribe(256)
	defer unsubscribe()
	result, err := service.Install(ctx, app.InstallRequest{
		URL:       opts.URL,
		LocalPath: opts.Apk,
		Expected:  expected,
	})
	if err != nil {
		return err
	}
	return follow(ctx, service, result.Operation, events)
}

// follow prints events for op until it is terminal. An interrupt cancels the
// operation and keeps waiting for the tracker to confirm.
func follow(ctx context.Context, service *app.Service, op types.Operation, events <-chan types.Event) error {
	interrupt, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	printer := newEventPrinter(os.Stdout)
	interrupted := interrupt.Done()
	for {
		select {
		case <-interrupted:
			interrupted = nil
			if err := service.Cancel(context.WithoutCancel(ctx), op.ID); err != nil {
				log.Warn().Err(err).Str("operation", op.ID).Msg("cancel refused")
			}
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.ID != op.ID || (event.Session != 0 && event.Session != op.Session) {
				continue
			}
			printer.Print(event)
			if event.Action.Terminal() {
				return operationError(types.Operation{Status: event.Status, LastError: event.ErrorMessage})
			}
		}
	}
}
