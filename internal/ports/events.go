package ports

import (
	"context"

	"apk-installer/internal/types"
)

type EventBusPort interface {
	Publish(event types.Event)
	Subscribe(buffer int) (<-chan types.Event, func())
}

// ConfirmationPort asks the user to approve an install or uninstall. The
// answer is handed back through Tracker.Resume with the same token.
type ConfirmationPort interface {
	RequestInstallConfirmation(ctx context.Context, token string, op types.Operation, diff types.PermissionDiff) error
	RequestUninstallConfirmation(ctx context.Context, token string, op types.Operation) error
}

type HistoryPort interface {
	Append(ctx context.Context, entry types.HistoryEntry) error
	List(ctx context.Context, filter types.HistoryFilter) ([]types.HistoryEntry, error)
}

type DownloaderPort interface {
	Download(ctx context.Context, url string, dest string, progress func(read int64, total int64)) error
}
