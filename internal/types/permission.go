package types

type PermissionCategory string

const (
	PermissionCategoryPersonal PermissionCategory = "personal"
	PermissionCategoryDevice   PermissionCategory = "device"
)

type ProtectionLevel string

const (
	ProtectionNormal      ProtectionLevel = "normal"
	ProtectionDangerous   ProtectionLevel = "dangerous"
	ProtectionSignature   ProtectionLevel = "signature"
	ProtectionDevelopment ProtectionLevel = "development"
)

// PermissionInfo is catalog metadata for a single permission name.
type PermissionInfo struct {
	Name       string             `yaml:"name"`
	Group      string             `yaml:"group,omitempty"`
	Category   PermissionCategory `yaml:"category,omitempty"`
	Protection ProtectionLevel    `yaml:"protection,omitempty"`
	Label      string             `yaml:"label,omitempty"`
}

// PermissionGroup is a display bucket of new permissions sharing a group.
type PermissionGroup struct {
	Name        string
	Permissions []string
}

type PermissionDiff struct {
	All      []string
	Existing []string
	New      []string
	Personal []PermissionGroup
	Device   []PermissionGroup
	// FreshInstall is set when no version of the package is installed.
	FreshInstall         bool
	RequiresConfirmation bool
}
