package adapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuShellSessionRunsCommands(t *testing.T) {
	shell := NewSuShellAdapter(NewCommandRunnerAdapter("local", "", "", time.Minute), "sh")
	session, err := shell.Open(t.Context())
	require.NoError(t, err)
	defer session.Close()

	code, out, err := session.Run(t.Context(), "echo Success")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "Success\n", out)

	code, out, err = session.Run(t.Context(), "echo 'Failure [INSTALL_FAILED_INVALID_APK]'; false")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Equal(t, "Failure [INSTALL_FAILED_INVALID_APK]\n", out)
}

func TestSuShellMissingBinary(t *testing.T) {
	shell := NewSuShellAdapter(NewCommandRunnerAdapter("local", "", "", time.Minute), "/nonexistent/su")
	_, err := shell.Open(t.Context())
	require.Error(t, err)
}
