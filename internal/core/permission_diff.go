package core

import (
	"sort"
	"strings"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

type PermissionDiffEngine struct {
	Catalog ports.PermissionCatalogPort
}

func NewPermissionDiffEngine(catalog ports.PermissionCatalogPort) PermissionDiffEngine {
	return PermissionDiffEngine{Catalog: catalog}
}

// Diff classifies the candidate's requested permissions against the installed
// version. installed is nil for a fresh install. Permissions whose maximum
// SDK is below sdk are not in effect and are left out.
func (e PermissionDiffEngine) Diff(candidate types.PackageInfo, installed *types.PackageInfo, sdk int) types.PermissionDiff {
	requested := effectivePermissions(candidate.RequestedPermissions, sdk)
	diff := types.PermissionDiff{All: requested}

	if installed == nil {
		diff.FreshInstall = true
		diff.New = append([]string(nil), requested...)
		diff.Personal, diff.Device = e.partition(diff.New, nil)
		// The runtime-permission model prompts on first use.
		diff.RequiresConfirmation = sdk < types.RuntimePermissionSDK && len(diff.New) > 0
		return diff
	}

	granted := map[string]struct{}{}
	for _, perm := range installed.RequestedPermissions {
		if perm.Granted {
			granted[perm.Name] = struct{}{}
		}
	}
	for _, name := range requested {
		if _, ok := granted[name]; ok {
			diff.Existing = append(diff.Existing, name)
			continue
		}
		diff.New = append(diff.New, name)
	}
	diff.Personal, diff.Device = e.partition(diff.New, granted)
	diff.RequiresConfirmation = len(diff.Personal)+len(diff.Device) > 0
	return diff
}

func (e PermissionDiffEngine) partition(names []string, granted map[string]struct{}) ([]types.PermissionGroup, []types.PermissionGroup) {
	personal := map[string][]string{}
	device := map[string][]string{}
	for _, name := range names {
		info := e.lookup(name)
		if !displayable(info, granted) {
			continue
		}
		group := info.Group
		if group == "" {
			group = permissionNamespace(name)
		}
		if info.Category == types.PermissionCategoryPersonal {
			personal[group] = append(personal[group], name)
			continue
		}
		device[group] = append(device[group], name)
	}
	return sortedGroups(personal), sortedGroups(device)
}

func (e PermissionDiffEngine) lookup(name string) types.PermissionInfo {
	if e.Catalog != nil {
		if info, ok := e.Catalog.Lookup(name); ok {
			return info
		}
	}
	return types.PermissionInfo{Name: name, Category: types.PermissionCategoryDevice, Protection: types.ProtectionDangerous}
}

// displayable mirrors what the OS itself shows at install time: normal and
// dangerous permissions, and development permissions already held.
func displayable(info types.PermissionInfo, granted map[string]struct{}) bool {
	switch info.Protection {
	case types.ProtectionSignature:
		return false
	case types.ProtectionDevelopment:
		_, ok := granted[info.Name]
		return ok
	default:
		return true
	}
}

func effectivePermissions(perms []types.RequestedPermission, sdk int) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(perms))
	for _, perm := range perms {
		name := strings.TrimSpace(perm.Name)
		if name == "" {
			continue
		}
		if perm.MaxSDK > 0 && sdk > 0 && int(perm.MaxSDK) < sdk {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func permissionNamespace(name string) string {
	if idx := strings.Index(name, ".permission."); idx > 0 {
		return name[:idx]
	}
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[:idx]
	}
	return name
}

func sortedGroups(groups map[string][]string) []types.PermissionGroup {
	if len(groups) == 0 {
		return nil
	}
	out := make([]types.PermissionGroup, 0, len(groups))
	for name, perms := range groups {
		sort.Strings(perms)
		out = append(out, types.PermissionGroup{Name: name, Permissions: perms})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
