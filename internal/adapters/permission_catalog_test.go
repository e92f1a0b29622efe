package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apk-installer/internal/types"
)

func TestPermissionCatalogBuiltin(t *testing.T) {
	catalog, err := NewPermissionCatalogAdapter("")
	require.NoError(t, err)

	info, ok := catalog.Lookup("android.permission.READ_CONTACTS")
	require.True(t, ok)
	assert.Equal(t, types.PermissionCategoryPersonal, info.Category)
	assert.Equal(t, "android.permission-group.CONTACTS", info.Group)

	info, ok = catalog.Lookup("android.permission.INSTALL_PACKAGES")
	require.True(t, ok)
	assert.Equal(t, types.ProtectionSignature, info.Protection)

	_, ok = catalog.Lookup("com.example.permission.C2D")
	assert.False(t, ok)
}

func TestPermissionCatalogExtraFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`permissions:
  - name: com.example.permission.SYNC
    group: com.example.sync
  - name: android.permission.CAMERA
    category: personal
    protection: dangerous
  - name: " "
`), 0o644))

	catalog, err := NewPermissionCatalogAdapter(path)
	require.NoError(t, err)

	info, ok := catalog.Lookup("com.example.permission.SYNC")
	require.True(t, ok)
	assert.Equal(t, types.PermissionCategoryDevice, info.Category)
	assert.Equal(t, types.ProtectionDangerous, info.Protection)

	info, ok = catalog.Lookup("android.permission.CAMERA")
	require.True(t, ok)
	assert.Equal(t, types.PermissionCategoryPersonal, info.Category)
}

func TestPermissionCatalogErrors(t *testing.T) {
	_, err := NewPermissionCatalogAdapter(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("permissions: [unterminated"), 0o644))
	_, err = NewPermissionCatalogAdapter(path)
	require.Error(t, err)
}
