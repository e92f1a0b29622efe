package types

import "time"

type OperationKind string

const (
	OperationKindInstall   OperationKind = "install"
	OperationKindUninstall OperationKind = "uninstall"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusDownloading    Status = "downloading"
	StatusReadyToInstall Status = "ready_to_install"
	StatusInstalling     Status = "installing"
	StatusInstalled      Status = "installed"
	StatusUninstalling   Status = "uninstalling"
	StatusComplete       Status = "complete"
	StatusInterrupted    Status = "interrupted"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusInstalled, StatusComplete, StatusInterrupted:
		return true
	default:
		return false
	}
}

// Operation is one install or uninstall attempt. ID is the canonical source
// URL for installs and the package name for uninstalls.
type Operation struct {
	ID               string        `json:"id"`
	Session          uint64        `json:"session"`
	Kind             OperationKind `json:"kind"`
	PackageName      string        `json:"package_name"`
	VersionCode      int64         `json:"version_code"`
	VersionName      string        `json:"version_name,omitempty"`
	Status           Status        `json:"status"`
	LastError        string        `json:"last_error,omitempty"`
	InteractionToken string        `json:"interaction_token,omitempty"`
	Installer        InstallerKind `json:"installer,omitempty"`
	BytesRead        int64         `json:"bytes_read,omitempty"`
	TotalBytes       int64         `json:"total_bytes,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// InstallRequest is what a caller hands the tracker to queue an install.
type InstallRequest struct {
	URL      string
	Expected ExpectedApk
	// LocalPath skips the download when the artifact is already on disk.
	LocalPath string
}

type UninstallRequest struct {
	PackageName string
}

// OperationContext is passed to installer strategies. It carries identity
// only; strategies report back through the signal sink.
type OperationContext struct {
	ID          string
	Session     uint64
	PackageName string
	VersionCode int64
	VersionName string
}
