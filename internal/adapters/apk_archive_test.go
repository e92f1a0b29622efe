package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApkArchiveRejectsNonArchives(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.apk")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a zip"), 0o600))
	archive := NewApkArchiveAdapter()

	_, err := archive.Parse(t.Context(), path)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))

	_, err = archive.SignerFingerprint(t.Context(), path)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}
