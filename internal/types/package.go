package types

// TargetSDKUnknown marks an expectation that carries no target SDK, as
// produced by older repository indexes.
const TargetSDKUnknown int32 = -1

type HashType string

const (
	HashTypeSHA256 HashType = "sha256"
	HashTypeSHA512 HashType = "sha512"
	HashTypeBLAKE3 HashType = "blake3"
)

type RequestedPermission struct {
	Name    string `json:"name" yaml:"name"`
	Granted bool   `json:"granted,omitempty" yaml:"granted,omitempty"`
	// MaxSDK is zero when the permission applies to every OS version.
	MaxSDK int32 `json:"max_sdk,omitempty" yaml:"max_sdk,omitempty"`
}

// PackageInfo describes either an installed package or a parsed archive.
type PackageInfo struct {
	PackageName          string                `json:"package_name"`
	VersionCode          int64                 `json:"version_code"`
	VersionName          string                `json:"version_name,omitempty"`
	MinSDK               int32                 `json:"min_sdk,omitempty"`
	TargetSDK            int32                 `json:"target_sdk,omitempty"`
	RequestedPermissions []RequestedPermission `json:"requested_permissions,omitempty"`
	SignerFingerprint    string                `json:"signer_fingerprint,omitempty"`
}

func (p PackageInfo) PermissionNames() []string {
	names := make([]string, 0, len(p.RequestedPermissions))
	for _, perm := range p.RequestedPermissions {
		names = append(names, perm.Name)
	}
	return names
}

// ExpectedApk is the server-declared identity an artifact must match.
type ExpectedApk struct {
	PackageName       string   `json:"package_name" yaml:"package_name"`
	VersionCode       int64    `json:"version_code" yaml:"version_code"`
	VersionName       string   `json:"version_name,omitempty" yaml:"version_name,omitempty"`
	Permissions       []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	TargetSDK         int32    `json:"target_sdk" yaml:"target_sdk"`
	Hash              string   `json:"hash" yaml:"hash"`
	HashType          HashType `json:"hash_type" yaml:"hash_type"`
	Size              int64    `json:"size,omitempty" yaml:"size,omitempty"`
	SignerFingerprint string   `json:"signer_fingerprint,omitempty" yaml:"signer_fingerprint,omitempty"`
}

// StagedFile is a hash-verified private copy of a downloaded artifact.
type StagedFile struct {
	Path     string      `json:"path"`
	Source   string      `json:"source"`
	Hash     string      `json:"hash"`
	HashType HashType    `json:"hash_type"`
	Info     PackageInfo `json:"info"`
	IsApk    bool        `json:"is_apk"`
}

type CacheState string

const (
	CacheStateMissOrPartial CacheState = "miss_or_partial"
	CacheStateCached        CacheState = "cached"
	CacheStateCorrupted     CacheState = "corrupted"
)
