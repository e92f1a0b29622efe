package types

import "time"

type InstallerKind string

const (
	InstallerPrivileged   InstallerKind = "privileged"
	InstallerRoot         InstallerKind = "root"
	InstallerSession      InstallerKind = "session"
	InstallerDirectIntent InstallerKind = "direct"
	InstallerFileCopy     InstallerKind = "file-copy"
	InstallerDummy        InstallerKind = "dummy"
)

// DeviceInfo is the subset of build properties installer selection reads.
type DeviceInfo struct {
	SDK   int    `json:"sdk"`
	Brand string `json:"brand"`
	Model string `json:"model"`
}

// RuntimePermissionSDK is the first OS version that confirms dangerous
// permissions at runtime instead of at install time.
const RuntimePermissionSDK = 23

// CapabilityCheck records why a strategy was or was not eligible.
type CapabilityCheck struct {
	Installer InstallerKind `json:"installer"`
	Eligible  bool          `json:"eligible"`
	Reason    string        `json:"reason,omitempty"`
}

// InstallerCapability is computed per operation; Eligible is in priority order
// and Selected is its first element.
type InstallerCapability struct {
	Selected InstallerKind     `json:"selected"`
	Eligible []InstallerKind   `json:"eligible"`
	Checks   []CapabilityCheck `json:"checks"`
	Device   DeviceInfo        `json:"device"`
	Computed time.Time         `json:"computed"`
}

// DeviceRule excludes installers on matching devices. Matches entries have
// the form "brand:model", where either side may be "*" or end with "*".
type DeviceRule struct {
	Name               string          `yaml:"name"`
	Installers         []InstallerKind `yaml:"installers"`
	Matches            []string        `yaml:"matches"`
	RequiresAnyPackage []string        `yaml:"requires_any_package,omitempty"`
}

type SessionStatus int

const (
	SessionStatusPendingUserAction SessionStatus = -1
	SessionStatusSuccess           SessionStatus = 0
	SessionStatusFailure           SessionStatus = 1
	SessionStatusFailureBlocked    SessionStatus = 2
	SessionStatusFailureAborted    SessionStatus = 3
	SessionStatusFailureInvalid    SessionStatus = 4
	SessionStatusFailureConflict   SessionStatus = 5
	SessionStatusFailureStorage    SessionStatus = 6
	SessionStatusFailureIncompat   SessionStatus = 7
)

type SessionResult struct {
	SessionID int           `json:"session_id"`
	Status    SessionStatus `json:"status"`
	Message   string        `json:"message,omitempty"`
}

// PrivilegedResult is the callback payload of the privileged helper.
type PrivilegedResult struct {
	PackageName string `json:"package_name"`
	ReturnCode  int    `json:"return_code"`
}

// IntentResult is how the OS confirmation flow ended.
type IntentResult int

const (
	IntentResultOK IntentResult = iota
	IntentResultCanceled
	IntentResultFirstUser
)
