package installers

import (
	"context"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// DirectIntentInstaller defers to the OS package installer UI. It is the
// fallback that works everywhere but always needs the user.
type DirectIntentInstaller struct {
	Intents ports.IntentPort
	out     signaller
}

func NewDirectIntentInstaller(intents ports.IntentPort, sink ports.SignalSink) DirectIntentInstaller {
	return DirectIntentInstaller{Intents: intents, out: newSignaller(sink)}
}

func (i DirectIntentInstaller) Kind() types.InstallerKind { return types.InstallerDirectIntent }

func (i DirectIntentInstaller) SupportsUnattended() bool { return false }

func (i DirectIntentInstaller) SupportsDurableReference() bool { return true }

func (i DirectIntentInstaller) Install(ctx context.Context, staged types.StagedFile, op types.OperationContext) error {
	i.out.userInteraction(types.OperationKindInstall, op, op.ID)
	result, err := i.Intents.ViewPackage(ctx, staged.Path, staged.Info)
	if err != nil {
		return types.NewPlatformError("package installer activity unavailable", err)
	}
	i.report(types.OperationKindInstall, op, result)
	return nil
}

func (i DirectIntentInstaller) Uninstall(ctx context.Context, packageName string, op types.OperationContext) error {
	i.out.userInteraction(types.OperationKindUninstall, op, op.ID)
	result, err := i.Intents.DeletePackage(ctx, packageName)
	if err != nil {
		return types.NewPlatformError("package uninstaller activity unavailable", err)
	}
	i.report(types.OperationKindUninstall, op, result)
	return nil
}

func (i DirectIntentInstaller) report(kind types.OperationKind, op types.OperationContext, result types.IntentResult) {
	switch result {
	case types.IntentResultOK:
		i.out.complete(kind, op)
	case types.IntentResultCanceled:
		i.out.interrupted(kind, op, "")
	default:
		if kind == types.OperationKindUninstall {
			i.out.interrupted(kind, op, "uninstall failed in the system uninstaller")
			return
		}
		i.out.interrupted(kind, op, "install failed in the system package installer")
	}
}

var _ ports.InstallerPort = DirectIntentInstaller{}
