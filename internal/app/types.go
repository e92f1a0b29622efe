package app

import "apk-installer/internal/types"

type InstallRequest struct {
	URL       string
	LocalPath string
	Expected  types.ExpectedApk
	// Wait blocks until the operation is terminal.
	Wait bool
}

type InstallResult struct {
	Operation types.Operation
}

type UninstallRequest struct {
	PackageName string
	Wait        bool
}

type UninstallResult struct {
	Operation types.Operation
}

type ProbeRequest struct {
	ArtifactPath string
	TargetSDK    int32
}

type HistoryRequest struct {
	PackageName string
	// Since is a timestamp, a date or a duration back from now.
	Since string
	Limit int
}

type DiffRequest struct {
	ApkPath string
}

type DiffResult struct {
	Candidate types.PackageInfo
	Installed *types.PackageInfo
	Diff      types.PermissionDiff
}
