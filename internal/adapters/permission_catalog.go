package adapters

import (
	_ "embed"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

//go:embed catalog/permissions.yaml
var builtinPermissionCatalog []byte

type permissionCatalogFile struct {
	Permissions []types.PermissionInfo `yaml:"permissions"`
}

// PermissionCatalogAdapter serves permission metadata from the built-in
// catalog, optionally extended by a YAML file with the same layout.
type PermissionCatalogAdapter struct {
	entries map[string]types.PermissionInfo
}

func NewPermissionCatalogAdapter(extraPath string) (PermissionCatalogAdapter, error) {
	catalog := PermissionCatalogAdapter{entries: map[string]types.PermissionInfo{}}
	if err := catalog.load(builtinPermissionCatalog); err != nil {
		return PermissionCatalogAdapter{}, err
	}
	if strings.TrimSpace(extraPath) == "" {
		return catalog, nil
	}
	data, err := os.ReadFile(extraPath)
	if err != nil {
		return PermissionCatalogAdapter{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read permission catalog").
			WithCause(err)
	}
	if err := catalog.load(data); err != nil {
		return PermissionCatalogAdapter{}, err
	}
	return catalog, nil
}

func (c PermissionCatalogAdapter) Lookup(name string) (types.PermissionInfo, bool) {
	info, ok := c.entries[name]
	return info, ok
}

func (c PermissionCatalogAdapter) load(data []byte) error {
	var file permissionCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse permission catalog").
			WithCause(err)
	}
	for _, entry := range file.Permissions {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}
		if entry.Category == "" {
			entry.Category = types.PermissionCategoryDevice
		}
		if entry.Protection == "" {
			entry.Protection = types.ProtectionDangerous
		}
		c.entries[name] = entry
	}
	return nil
}

var _ ports.PermissionCatalogPort = PermissionCatalogAdapter{}
