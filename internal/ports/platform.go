package ports

import (
	"context"

	"apk-installer/internal/types"
)

// InstalledPackagesPort returns nil info without error when the package is
// not installed.
type InstalledPackagesPort interface {
	InstalledPackage(ctx context.Context, name string) (*types.PackageInfo, error)
}

type ArchivePort interface {
	Parse(ctx context.Context, path string) (types.PackageInfo, error)
	SignerFingerprint(ctx context.Context, path string) (string, error)
}

type DevicePort interface {
	DeviceInfo(ctx context.Context) (types.DeviceInfo, error)
}

type PermissionCatalogPort interface {
	Lookup(name string) (types.PermissionInfo, bool)
}

type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, stderr string, err error)
}

// RootShellPort opens an elevated shell. Sessions must always be closed.
type RootShellPort interface {
	Open(ctx context.Context) (ShellSession, error)
}

type ShellSession interface {
	Run(ctx context.Context, command string) (exitCode int, output string, err error)
	Close() error
}

// DeviceFilesPort makes a host file readable by device-side commands. With a
// local transport Push returns the path unchanged.
type DeviceFilesPort interface {
	Push(ctx context.Context, localPath string) (string, error)
	Remove(ctx context.Context, devicePath string) error
}
