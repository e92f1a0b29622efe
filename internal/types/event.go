package types

import "time"

type Action string

const (
	ActionDownloadStarted     Action = "DOWNLOAD_STARTED"
	ActionDownloadProgress    Action = "DOWNLOAD_PROGRESS"
	ActionDownloadComplete    Action = "DOWNLOAD_COMPLETE"
	ActionDownloadInterrupted Action = "DOWNLOAD_INTERRUPTED"

	ActionInstallStarted         Action = "INSTALL_STARTED"
	ActionInstallComplete        Action = "INSTALL_COMPLETE"
	ActionInstallInterrupted     Action = "INSTALL_INTERRUPTED"
	ActionInstallUserInteraction Action = "INSTALL_USER_INTERACTION"

	ActionUninstallStarted         Action = "UNINSTALL_STARTED"
	ActionUninstallComplete        Action = "UNINSTALL_COMPLETE"
	ActionUninstallInterrupted     Action = "UNINSTALL_INTERRUPTED"
	ActionUninstallUserInteraction Action = "UNINSTALL_USER_INTERACTION"
)

// Terminal reports whether the action ends an operation.
func (a Action) Terminal() bool {
	switch a {
	case ActionInstallComplete, ActionInstallInterrupted,
		ActionUninstallComplete, ActionUninstallInterrupted:
		return true
	default:
		return false
	}
}

func (a Action) Kind() OperationKind {
	switch a {
	case ActionUninstallStarted, ActionUninstallComplete,
		ActionUninstallInterrupted, ActionUninstallUserInteraction:
		return OperationKindUninstall
	default:
		return OperationKindInstall
	}
}

// Event is both the inbound signal delivered to the tracker and the lifecycle
// notification it publishes. The payload is self-describing so that a signal
// arriving after a restart can rebuild the operation record.
type Event struct {
	Action       Action    `json:"action"`
	ID           string    `json:"id"`
	Session      uint64    `json:"session,omitempty"`
	PackageName  string    `json:"package_name,omitempty"`
	VersionCode  int64     `json:"version_code,omitempty"`
	VersionName  string    `json:"version_name,omitempty"`
	Token        string    `json:"token,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	BytesRead    int64     `json:"bytes_read,omitempty"`
	TotalBytes   int64     `json:"total_bytes,omitempty"`
	Status       Status    `json:"status,omitempty"`
	Installer    string    `json:"installer,omitempty"`
	Time         time.Time `json:"time"`
}

// HistoryEntry is one row of the append-only install log.
type HistoryEntry struct {
	OperationID string    `json:"operation_id"`
	Session     uint64    `json:"session,omitempty"`
	Time        time.Time `json:"time"`
	PackageName string    `json:"package_name"`
	VersionCode int64     `json:"version_code"`
	VersionName string    `json:"version_name,omitempty"`
	Event       Action    `json:"event"`
	Message     string    `json:"message,omitempty"`
}

// HistoryFilter narrows a history listing. Zero fields match everything and
// a non-positive Limit returns every match.
type HistoryFilter struct {
	OperationID string
	Session     uint64
	PackageName string
	Since       time.Time
	Limit       int
}
