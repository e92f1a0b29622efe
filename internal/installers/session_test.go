package installers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apk-installer/internal/types"
)

func stagedApk(t *testing.T) types.StagedFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.apk")
	require.NoError(t, os.WriteFile(path, []byte("apk"), 0o600))
	return types.StagedFile{Path: path, IsApk: true}
}

func TestSessionInstallerReportsCommitResult(t *testing.T) {
	tests := []struct {
		name        string
		result      types.SessionResult
		wantAction  types.Action
		wantMessage string
		wantToken   string
		wantOwned   bool
	}{
		{
			name:       "success",
			result:     types.SessionResult{Status: types.SessionStatusSuccess},
			wantAction: types.ActionInstallComplete,
		},
		{
			name:       "pending user action keeps the session",
			result:     types.SessionResult{Status: types.SessionStatusPendingUserAction},
			wantAction: types.ActionInstallUserInteraction,
			wantToken:  "1",
			wantOwned:  true,
		},
		{
			name:       "aborted means the user declined",
			result:     types.SessionResult{Status: types.SessionStatusFailureAborted, Message: "INSTALL_FAILED_ABORTED"},
			wantAction: types.ActionInstallInterrupted,
		},
		{
			name:        "conflict carries the message",
			result:      types.SessionResult{Status: types.SessionStatusFailureConflict, Message: "INSTALL_FAILED_UPDATE_INCOMPATIBLE"},
			wantAction:  types.ActionInstallInterrupted,
			wantMessage: "INSTALL_FAILED_UPDATE_INCOMPATIBLE",
		},
		{
			name:        "failure without message",
			result:      types.SessionResult{Status: types.SessionStatusFailureStorage},
			wantAction:  types.ActionInstallInterrupted,
			wantMessage: "session failed with status 6",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &fakeSessions{result: tt.result}
			registry := newFakeRegistry()
			sink := &recordingSink{}
			installer := NewSessionInstaller(sessions, registry, sink, 34)

			require.NoError(t, installer.Install(t.Context(), stagedApk(t), testOp))
			last := sink.last()
			assert.Equal(t, tt.wantAction, last.Action)
			assert.Equal(t, tt.wantMessage, last.ErrorMessage)
			assert.Equal(t, tt.wantToken, last.Token)
			owned, err := registry.OwnedSessions(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwned, len(owned) == 1)
		})
	}
}

func TestSessionInstallerAbandonsStaleSessionsOnce(t *testing.T) {
	sessions := &fakeSessions{nextID: 100, result: types.SessionResult{Status: types.SessionStatusSuccess}}
	registry := newFakeRegistry(7)
	installer := NewSessionInstaller(sessions, registry, &recordingSink{}, 34)

	require.NoError(t, installer.Install(t.Context(), stagedApk(t), testOp))
	require.NoError(t, installer.Install(t.Context(), stagedApk(t), testOp))
	assert.Equal(t, []int{7}, sessions.abandoned)
	owned, err := registry.OwnedSessions(t.Context())
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestSessionInstallerWriteFailureAbandons(t *testing.T) {
	sessions := &fakeSessions{writeErr: errors.New("no space left on device")}
	registry := newFakeRegistry()
	sink := &recordingSink{}
	installer := NewSessionInstaller(sessions, registry, sink, 34)

	require.NoError(t, installer.Install(t.Context(), stagedApk(t), testOp))
	assert.Equal(t, []int{1}, sessions.abandoned)
	last := sink.last()
	assert.Equal(t, types.ActionInstallInterrupted, last.Action)
	assert.Contains(t, last.ErrorMessage, "no space left on device")
}

func TestSessionInstallerCreateFailureFallsBack(t *testing.T) {
	sink := &recordingSink{}
	installer := NewSessionInstaller(&fakeSessions{createErr: errUnavailable}, nil, sink, 34)

	err := installer.Install(t.Context(), stagedApk(t), testOp)
	require.Error(t, err)
	assert.Equal(t, types.ErrorKindPlatform, types.KindOf(err))
	assert.Empty(t, sink.actions())
}

func TestSessionInstallerUnattendedDependsOnTarget(t *testing.T) {
	assert.False(t, NewSessionInstaller(nil, nil, nil, 34).SupportsUnattended())
	assert.False(t, NewSessionInstaller(nil, nil, nil, 30).SupportsUnattendedTarget(34))
	assert.True(t, NewSessionInstaller(nil, nil, nil, 31).SupportsUnattendedTarget(30))
	assert.False(t, NewSessionInstaller(nil, nil, nil, 34).SupportsUnattendedTarget(28))
}

func TestSessionInstallerCancelAbandonsActiveSession(t *testing.T) {
	sessions := &fakeSessions{}
	installer := NewSessionInstaller(sessions, nil, &recordingSink{}, 34)
	installer.track(testOp.ID, 9)

	require.NoError(t, installer.Cancel(t.Context(), testOp))
	assert.Equal(t, []int{9}, sessions.abandoned)
	require.NoError(t, installer.Cancel(t.Context(), types.OperationContext{ID: "unknown"}))
	assert.Equal(t, []int{9}, sessions.abandoned)
}

func TestSessionInstallerCancelAfterUserInteraction(t *testing.T) {
	sessions := &fakeSessions{result: types.SessionResult{Status: types.SessionStatusPendingUserAction}}
	registry := newFakeRegistry()
	sink := &recordingSink{}
	installer := NewSessionInstaller(sessions, registry, sink, 34)

	require.NoError(t, installer.Install(t.Context(), stagedApk(t), testOp))
	require.Equal(t, types.ActionInstallUserInteraction, sink.last().Action)
	assert.Empty(t, sessions.abandoned)

	require.NoError(t, installer.Cancel(t.Context(), testOp))
	assert.Equal(t, []int{1}, sessions.abandoned)
	owned, err := registry.OwnedSessions(t.Context())
	require.NoError(t, err)
	assert.Empty(t, owned)

	require.NoError(t, installer.Cancel(t.Context(), testOp))
	assert.Equal(t, []int{1}, sessions.abandoned)
}

func TestSessionInstallerUntracksFinishedSession(t *testing.T) {
	sessions := &fakeSessions{result: types.SessionResult{Status: types.SessionStatusSuccess}}
	installer := NewSessionInstaller(sessions, newFakeRegistry(), &recordingSink{}, 34)

	require.NoError(t, installer.Install(t.Context(), stagedApk(t), testOp))
	require.NoError(t, installer.Cancel(t.Context(), testOp))
	assert.Empty(t, sessions.abandoned)
}
