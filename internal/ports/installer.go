package ports

import (
	"context"

	"apk-installer/internal/types"
)

// InstallerPort is one install strategy. Install and Uninstall return once
// the request has been handed off; completion arrives through the
// SignalSink given at construction. A returned error is a synchronous
// failure: a PlatformIncompatible kind lets the tracker fall back to the
// next eligible strategy.
type InstallerPort interface {
	Kind() types.InstallerKind
	Install(ctx context.Context, staged types.StagedFile, op types.OperationContext) error
	Uninstall(ctx context.Context, packageName string, op types.OperationContext) error
	SupportsUnattended() bool
	SupportsDurableReference() bool
}

// CancelablePort is implemented by strategies that can abort an in-flight
// request.
type CancelablePort interface {
	Cancel(ctx context.Context, op types.OperationContext) error
}

// TargetAwarePort narrows SupportsUnattended for a given archive target SDK.
type TargetAwarePort interface {
	SupportsUnattendedTarget(targetSDK int32) bool
}

// SignalSink accepts lifecycle signals from strategies and other processes.
type SignalSink interface {
	Deliver(event types.Event)
}

type StagerPort interface {
	Stage(ctx context.Context, sourcePath string, expected types.ExpectedApk) (types.StagedFile, error)
	Release(staged types.StagedFile)
}

type VerifierPort interface {
	Verify(ctx context.Context, path string, expected types.ExpectedApk) (types.PackageInfo, error)
}
