package installers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apk-installer/internal/types"
)

func TestRootShellInstaller(t *testing.T) {
	staged := types.StagedFile{Path: "/var/lib/apk-installer/staging/app.apk", IsApk: true}

	tests := []struct {
		name        string
		shell       fakeShell
		files       fakeFiles
		wantAction  types.Action
		wantMessage string
		wantErrKind types.ErrorKind
	}{
		{
			name:       "success",
			shell:      fakeShell{output: "Success\n"},
			wantAction: types.ActionInstallComplete,
		},
		{
			name:        "pm failure is described",
			shell:       fakeShell{exitCode: 1, output: "Failure [INSTALL_FAILED_INSUFFICIENT_STORAGE]"},
			wantAction:  types.ActionInstallInterrupted,
			wantMessage: "Error -4: the package manager service found that the device didn't have enough storage space to install the app",
		},
		{
			name:        "unrecognized output",
			shell:       fakeShell{exitCode: 255, output: "Killed"},
			wantAction:  types.ActionInstallInterrupted,
			wantMessage: "pm exited with code 255: Killed",
		},
		{
			name:        "su missing is a platform error",
			shell:       fakeShell{openErr: errUnavailable},
			wantErrKind: types.ErrorKindPlatform,
		},
		{
			name:        "push failure is a platform error",
			shell:       fakeShell{output: "Success"},
			files:       fakeFiles{pushErr: errUnavailable},
			wantErrKind: types.ErrorKindPlatform,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var commands, removed []string
			tt.shell.commands = &commands
			if tt.files.pushErr == nil {
				tt.files.removed = &removed
			}
			sink := &recordingSink{}
			installer := NewRootShellInstaller(tt.shell, tt.files, sink)

			err := installer.Install(t.Context(), staged, testOp)
			if tt.wantErrKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrKind, types.KindOf(err))
				assert.Empty(t, sink.actions())
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff([]string{"pm install -r /data/local/tmp/app.apk"}, commands); diff != "" {
				t.Fatalf("commands mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, []string{"/data/local/tmp/app.apk"}, removed)
			last := sink.last()
			assert.Equal(t, tt.wantAction, last.Action)
			assert.Equal(t, tt.wantMessage, last.ErrorMessage)
			assert.Equal(t, testOp.ID, last.ID)
			assert.Equal(t, testOp.Session, last.Session)
		})
	}
}

func TestRootShellUninstallUsesDeleteCodes(t *testing.T) {
	var commands []string
	sink := &recordingSink{}
	installer := NewRootShellInstaller(fakeShell{exitCode: 1, output: "Failure [DELETE_FAILED_USER_RESTRICTED]", commands: &commands}, nil, sink)

	require.NoError(t, installer.Uninstall(t.Context(), "com.example.app", testOp))
	assert.Equal(t, []string{"pm uninstall com.example.app"}, commands)
	last := sink.last()
	assert.Equal(t, types.ActionUninstallInterrupted, last.Action)
	assert.Equal(t, "Error -3: the system failed to delete the package since the user is restricted", last.ErrorMessage)
}
