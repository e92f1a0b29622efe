package installers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/shared"
	"apk-installer/internal/types"
)

// RootShellInstaller runs pm through a su session. One shared mutex
// serializes all packages on the single root channel; a command cannot be
// cancelled once written to the shell.
type RootShellInstaller struct {
	Shell ports.RootShellPort
	Files ports.DeviceFilesPort
	mu    *sync.Mutex
	out   signaller
}

func NewRootShellInstaller(shell ports.RootShellPort, files ports.DeviceFilesPort, sink ports.SignalSink) RootShellInstaller {
	return RootShellInstaller{Shell: shell, Files: files, mu: &sync.Mutex{}, out: newSignaller(sink)}
}

func (i RootShellInstaller) Kind() types.InstallerKind { return types.InstallerRoot }

func (i RootShellInstaller) SupportsUnattended() bool { return true }

func (i RootShellInstaller) SupportsDurableReference() bool { return false }

func (i RootShellInstaller) Install(ctx context.Context, staged types.StagedFile, op types.OperationContext) error {
	target := staged.Path
	if i.Files != nil {
		pushed, err := i.Files.Push(ctx, staged.Path)
		if err != nil {
			return types.NewPlatformError("copying apk to device failed", err)
		}
		defer i.Files.Remove(ctx, pushed)
		target = pushed
	}
	command := "pm install -r " + shared.ShellQuote(target)
	return i.run(ctx, types.OperationKindInstall, command, op)
}

func (i RootShellInstaller) Uninstall(ctx context.Context, packageName string, op types.OperationContext) error {
	command := "pm uninstall " + shared.ShellQuote(packageName)
	return i.run(ctx, types.OperationKindUninstall, command, op)
}

func (i RootShellInstaller) run(ctx context.Context, kind types.OperationKind, command string, op types.OperationContext) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	session, err := i.Shell.Open(ctx)
	if err != nil {
		return types.NewPlatformError("root shell unavailable", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Ctx(ctx).Warn().Err(closeErr).Msg("failed to close root shell")
		}
	}()

	log.Ctx(ctx).Debug().Str("command", command).Msg("running root shell command")
	exitCode, output, err := session.Run(ctx, command)
	if err != nil {
		i.out.interrupted(kind, op, "root shell command failed: "+err.Error())
		return nil
	}
	if exitCode != 0 || !pmSucceeded(output) {
		i.out.interrupted(kind, op, rootFailureMessage(kind, exitCode, output))
		return nil
	}
	i.out.complete(kind, op)
	return nil
}

func rootFailureMessage(kind types.OperationKind, exitCode int, output string) string {
	table := installReturnCodes
	if kind == types.OperationKindUninstall {
		table = deleteReturnCodes
	}
	if code, name, ok := parsePMFailure(output, table); ok {
		if code != 0 {
			return describe(table, code)
		}
		return name
	}
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return fmt.Sprintf("pm exited with code %d", exitCode)
	}
	return fmt.Sprintf("pm exited with code %d: %s", exitCode, trimmed)
}

var _ ports.InstallerPort = RootShellInstaller{}
