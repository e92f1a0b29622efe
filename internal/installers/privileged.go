package installers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"apk-installer/internal/core"
	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// PrivilegedInstaller talks to the out-of-process privileged extension.
// Binding is serialized so only one request owns the channel at a time.
type PrivilegedInstaller struct {
	Binder      ports.PrivilegedBinderPort
	BindTimeout time.Duration
	// InstallerPackage is reported to the OS as the installing package.
	InstallerPackage string
	mu               *sync.Mutex
	out              signaller
}

func NewPrivilegedInstaller(binder ports.PrivilegedBinderPort, sink ports.SignalSink, bindTimeout time.Duration, installerPackage string) PrivilegedInstaller {
	if bindTimeout <= 0 {
		bindTimeout = core.DefaultBindTimeout
	}
	return PrivilegedInstaller{
		Binder:           binder,
		BindTimeout:      bindTimeout,
		InstallerPackage: installerPackage,
		mu:               &sync.Mutex{},
		out:              newSignaller(sink),
	}
}

func (i PrivilegedInstaller) Kind() types.InstallerKind { return types.InstallerPrivileged }

func (i PrivilegedInstaller) SupportsUnattended() bool { return true }

func (i PrivilegedInstaller) SupportsDurableReference() bool { return true }

func (i PrivilegedInstaller) Install(ctx context.Context, staged types.StagedFile, op types.OperationContext) error {
	return i.call(ctx, types.OperationKindInstall, op, func(conn ports.PrivilegedConn) error {
		return conn.InstallPackage(ctx, staged.Path, installReplaceExisting, i.InstallerPackage)
	})
}

func (i PrivilegedInstaller) Uninstall(ctx context.Context, packageName string, op types.OperationContext) error {
	return i.call(ctx, types.OperationKindUninstall, op, func(conn ports.PrivilegedConn) error {
		return conn.DeletePackage(ctx, packageName, 0)
	})
}

func (i PrivilegedInstaller) call(ctx context.Context, kind types.OperationKind, op types.OperationContext, request func(ports.PrivilegedConn) error) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	bindCtx, cancel := context.WithTimeout(ctx, i.BindTimeout)
	conn, err := i.Binder.Bind(bindCtx)
	if err != nil {
		cancel()
		return types.NewPlatformError("binding to privileged extension failed", err)
	}
	defer conn.Close()
	granted, err := conn.HasPrivilegedPermissions(bindCtx)
	cancel()
	if err != nil {
		i.out.interrupted(kind, op, "connecting to privileged service failed")
		return nil
	}
	if !granted {
		return types.NewPlatformError("privileged extension has not been granted the required permissions", nil)
	}

	if err := request(conn); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("privileged extension call failed")
		i.out.interrupted(kind, op, "connecting to privileged service failed")
		return nil
	}

	results := conn.Results()
	for {
		select {
		case <-ctx.Done():
			i.out.interrupted(kind, op, "privileged extension call abandoned: "+ctx.Err().Error())
			return nil
		case <-conn.Done():
			// The final result is queued before the connection closes.
			if result, ok := queuedResult(results, op.PackageName); ok {
				i.handleResult(kind, op, result.ReturnCode)
				return nil
			}
			i.out.interrupted(kind, op, "privileged extension disconnected before completing")
			return nil
		case result, ok := <-results:
			if !ok {
				i.out.interrupted(kind, op, "privileged extension disconnected before completing")
				return nil
			}
			if result.PackageName != "" && result.PackageName != op.PackageName {
				log.Ctx(ctx).Debug().Str("result_package", result.PackageName).Msg("ignoring result for another package")
				continue
			}
			i.handleResult(kind, op, result.ReturnCode)
			return nil
		}
	}
}

// queuedResult takes a result for packageName already waiting in results
// without blocking.
func queuedResult(results <-chan types.PrivilegedResult, packageName string) (types.PrivilegedResult, bool) {
	for {
		select {
		case result, ok := <-results:
			if !ok {
				return types.PrivilegedResult{}, false
			}
			if result.PackageName != "" && result.PackageName != packageName {
				continue
			}
			return result, true
		default:
			return types.PrivilegedResult{}, false
		}
	}
}

func (i PrivilegedInstaller) handleResult(kind types.OperationKind, op types.OperationContext, code int) {
	if kind == types.OperationKindUninstall {
		if code == deleteSucceeded {
			i.out.complete(kind, op)
			return
		}
		i.out.interrupted(kind, op, deleteErrorMessage(code))
		return
	}
	if code == installSucceeded {
		i.out.complete(kind, op)
		return
	}
	i.out.interrupted(kind, op, installErrorMessage(code))
}

var _ ports.InstallerPort = PrivilegedInstaller{}
