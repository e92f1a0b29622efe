package ports

import (
	"context"

	"apk-installer/internal/types"
)

type PrivilegedBinderPort interface {
	// ExtensionInstalled reports whether the helper package is present.
	ExtensionInstalled(ctx context.Context) (bool, error)
	// Bind connects to the helper; it must give up when ctx is done.
	Bind(ctx context.Context) (PrivilegedConn, error)
}

// PrivilegedConn is a live binding to the privileged helper. Results are
// delivered on the channel returned by Results; Done is closed when the
// helper disconnects.
type PrivilegedConn interface {
	HasPrivilegedPermissions(ctx context.Context) (bool, error)
	InstallPackage(ctx context.Context, path string, flags int, installer string) error
	DeletePackage(ctx context.Context, packageName string, flags int) error
	Results() <-chan types.PrivilegedResult
	Done() <-chan struct{}
	Close() error
}
