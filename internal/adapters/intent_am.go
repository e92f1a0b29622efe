package adapters

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

const (
	defaultIntentWait  = 5 * time.Minute
	defaultIntentPoll  = 2 * time.Second
	apkMimeType        = "application/vnd.android.package-archive"
	intentActionView   = "android.intent.action.VIEW"
	intentActionDelete = "android.intent.action.DELETE"
)

// IntentAMAdapter launches the system installer activities with `am start`
// and watches package state to learn how the user left them. Leaving the
// dialog without the expected state change counts as cancelled.
type IntentAMAdapter struct {
	Runner   ports.CommandRunner
	Files    ports.DeviceFilesPort
	Packages ports.InstalledPackagesPort
	Wait     time.Duration
	Poll     time.Duration
}

func NewIntentAMAdapter(runner ports.CommandRunner, files ports.DeviceFilesPort, packages ports.InstalledPackagesPort, wait time.Duration) IntentAMAdapter {
	if wait <= 0 {
		wait = defaultIntentWait
	}
	return IntentAMAdapter{Runner: runner, Files: files, Packages: packages, Wait: wait, Poll: defaultIntentPoll}
}

func (a IntentAMAdapter) ViewPackage(ctx context.Context, path string, expected types.PackageInfo) (types.IntentResult, error) {
	devicePath := path
	if a.Files != nil {
		var err error
		devicePath, err = a.Files.Push(ctx, path)
		if err != nil {
			return types.IntentResultCanceled, err
		}
		defer a.Files.Remove(context.WithoutCancel(ctx), devicePath)
	}
	if _, _, err := a.Runner.Run(ctx, "am", "start", "-W",
		"-a", intentActionView,
		"-d", "file://"+devicePath,
		"-t", apkMimeType,
		"--grant-read-uri-permission"); err != nil {
		return types.IntentResultCanceled, err
	}
	return a.await(ctx, expected.PackageName, func(info *types.PackageInfo) bool {
		return info != nil && info.VersionCode == expected.VersionCode
	}), nil
}

func (a IntentAMAdapter) DeletePackage(ctx context.Context, packageName string) (types.IntentResult, error) {
	if _, _, err := a.Runner.Run(ctx, "am", "start", "-W",
		"-a", intentActionDelete,
		"-d", "package:"+packageName); err != nil {
		return types.IntentResultCanceled, err
	}
	return a.await(ctx, packageName, func(info *types.PackageInfo) bool { return info == nil }), nil
}

func (a IntentAMAdapter) await(ctx context.Context, packageName string, done func(*types.PackageInfo) bool) types.IntentResult {
	poll := a.Poll
	if poll <= 0 {
		poll = defaultIntentPoll
	}
	deadline := time.NewTimer(a.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		info, err := a.Packages.InstalledPackage(ctx, packageName)
		if err != nil {
			log.Ctx(ctx).Debug().Err(err).Str("package", packageName).Msg("package state poll failed")
		} else if done(info) {
			return types.IntentResultOK
		}
		select {
		case <-ctx.Done():
			return types.IntentResultCanceled
		case <-deadline.C:
			return types.IntentResultCanceled
		case <-ticker.C:
		}
	}
}

var _ ports.IntentPort = IntentAMAdapter{}
