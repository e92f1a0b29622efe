package installers

import (
	"context"

	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// DummyInstaller reports success without touching the device. Used for dry
// runs.
type DummyInstaller struct {
	out signaller
}

func NewDummyInstaller(sink ports.SignalSink) DummyInstaller {
	return DummyInstaller{out: newSignaller(sink)}
}

func (i DummyInstaller) Kind() types.InstallerKind { return types.InstallerDummy }

func (i DummyInstaller) SupportsUnattended() bool { return true }

func (i DummyInstaller) SupportsDurableReference() bool { return true }

func (i DummyInstaller) Install(ctx context.Context, staged types.StagedFile, op types.OperationContext) error {
	log.Ctx(ctx).Info().Str("path", staged.Path).Msg("dry run: skipping install")
	i.out.complete(types.OperationKindInstall, op)
	return nil
}

func (i DummyInstaller) Uninstall(ctx context.Context, packageName string, op types.OperationContext) error {
	log.Ctx(ctx).Info().Str("package", packageName).Msg("dry run: skipping uninstall")
	i.out.complete(types.OperationKindUninstall, op)
	return nil
}

var _ ports.InstallerPort = DummyInstaller{}
