package ports

import (
	"context"

	"apk-installer/internal/types"
)

// SessionPort drives the OS staged-session installer.
type SessionPort interface {
	Create(ctx context.Context, packageName string, size int64) (int, error)
	Write(ctx context.Context, sessionID int, path string) error
	Commit(ctx context.Context, sessionID int) (types.SessionResult, error)
	Abandon(ctx context.Context, sessionID int) error
	Uninstall(ctx context.Context, packageName string) (types.SessionResult, error)
}

// SessionRegistryPort remembers sessions created by this installer so they
// can be abandoned after a restart.
type SessionRegistryPort interface {
	RecordSession(ctx context.Context, sessionID int, packageName string) error
	ForgetSession(ctx context.Context, sessionID int) error
	OwnedSessions(ctx context.Context) ([]int, error)
}

// IntentPort hands an install or uninstall to the OS confirmation flow and
// reports how the user left it.
type IntentPort interface {
	ViewPackage(ctx context.Context, path string, expected types.PackageInfo) (types.IntentResult, error)
	DeletePackage(ctx context.Context, packageName string) (types.IntentResult, error)
}
