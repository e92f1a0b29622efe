package adapters

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/gookit/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apk-installer/internal/types"
)

type answer struct {
	token    string
	accepted bool
}

func TestPromptConfirmation(t *testing.T) {
	color.Disable()
	diff := types.PermissionDiff{
		Personal: []types.PermissionGroup{{Name: "android.permission-group.CONTACTS", Permissions: []string{"android.permission.READ_CONTACTS"}}},
		Device:   []types.PermissionGroup{{Name: "android.permission-group.CAMERA", Permissions: []string{"android.permission.CAMERA"}}},
	}
	op := types.Operation{PackageName: "com.example.app", VersionName: "2.0"}

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "yes\n", want: true},
		{name: "short yes with spaces", input: "  Y \n", want: true},
		{name: "no", input: "n\n", want: false},
		{name: "empty line declines", input: "\n", want: false},
		{name: "eof declines", input: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			var got []answer
			prompt := NewPromptConfirmationAdapter(strings.NewReader(tt.input), &out)
			prompt.Resume = func(token string, accepted bool) error {
				got = append(got, answer{token, accepted})
				return nil
			}

			require.NoError(t, prompt.RequestInstallConfirmation(t.Context(), "tok-1", op, diff))
			assert.Equal(t, []answer{{"tok-1", tt.want}}, got)
			text := out.String()
			assert.Contains(t, text, "Update com.example.app to 2.0")
			assert.Contains(t, text, "Personal")
			assert.Contains(t, text, "android.permission-group.CAMERA: android.permission.CAMERA")
		})
	}
}

func TestPromptConfirmationFreshInstallAndUninstall(t *testing.T) {
	color.Disable()
	var out bytes.Buffer
	var got []answer
	prompt := NewPromptConfirmationAdapter(strings.NewReader("y\ny\n"), &out)
	prompt.Resume = func(token string, accepted bool) error {
		got = append(got, answer{token, accepted})
		return nil
	}

	op := types.Operation{PackageName: "com.example.app", VersionCode: 7}
	require.NoError(t, prompt.RequestInstallConfirmation(t.Context(), "a", op, types.PermissionDiff{FreshInstall: true}))
	require.NoError(t, prompt.RequestUninstallConfirmation(t.Context(), "b", op))
	assert.Equal(t, []answer{{"a", true}, {"b", true}}, got)
	assert.Contains(t, out.String(), "Install com.example.app (7)")
	assert.Contains(t, out.String(), "Uninstall com.example.app")
}

func TestPromptConfirmationHonoursContext(t *testing.T) {
	reader, writer := io.Pipe()
	t.Cleanup(func() { _ = writer.Close() })
	prompt := NewPromptConfirmationAdapter(reader, io.Discard)
	prompt.Resume = func(string, bool) error {
		t.Error("resume must not be called")
		return nil
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := prompt.RequestUninstallConfirmation(ctx, "tok", types.Operation{PackageName: "com.example.app"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPromptConfirmationNeedsResume(t *testing.T) {
	prompt := NewPromptConfirmationAdapter(strings.NewReader("y\n"), io.Discard)
	err := prompt.RequestUninstallConfirmation(t.Context(), "tok", types.Operation{})
	require.Error(t, err)
}

func TestAutoConfirmationAcceptsEverything(t *testing.T) {
	var got []answer
	auto := &AutoConfirmationAdapter{Resume: func(token string, accepted bool) error {
		got = append(got, answer{token, accepted})
		return nil
	}}
	require.NoError(t, auto.RequestInstallConfirmation(t.Context(), "a", types.Operation{}, types.PermissionDiff{}))
	require.NoError(t, auto.RequestUninstallConfirmation(t.Context(), "b", types.Operation{}))
	assert.Equal(t, []answer{{"a", true}, {"b", true}}, got)
}
