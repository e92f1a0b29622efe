package installers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apk-installer/internal/types"
)

func TestDirectIntentInstaller(t *testing.T) {
	tests := []struct {
		name        string
		intents     fakeIntents
		uninstall   bool
		want        []types.Action
		wantMessage string
		wantErrKind types.ErrorKind
	}{
		{
			name:    "accepted install",
			intents: fakeIntents{result: types.IntentResultOK},
			want:    []types.Action{types.ActionInstallUserInteraction, types.ActionInstallComplete},
		},
		{
			name:    "cancelled install",
			intents: fakeIntents{result: types.IntentResultCanceled},
			want:    []types.Action{types.ActionInstallUserInteraction, types.ActionInstallInterrupted},
		},
		{
			name:        "installer reported failure",
			intents:     fakeIntents{result: types.IntentResultFirstUser},
			want:        []types.Action{types.ActionInstallUserInteraction, types.ActionInstallInterrupted},
			wantMessage: "install failed in the system package installer",
		},
		{
			name:      "accepted uninstall",
			intents:   fakeIntents{result: types.IntentResultOK},
			uninstall: true,
			want:      []types.Action{types.ActionUninstallUserInteraction, types.ActionUninstallComplete},
		},
		{
			name:        "activity missing",
			intents:     fakeIntents{err: errUnavailable},
			want:        []types.Action{types.ActionInstallUserInteraction},
			wantErrKind: types.ErrorKindPlatform,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			installer := NewDirectIntentInstaller(tt.intents, sink)
			var err error
			if tt.uninstall {
				err = installer.Uninstall(t.Context(), testOp.PackageName, testOp)
			} else {
				err = installer.Install(t.Context(), types.StagedFile{Path: "/staging/app.apk"}, testOp)
			}
			if tt.wantErrKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrKind, types.KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantMessage, sink.last().ErrorMessage)
			}
			if diff := cmp.Diff(tt.want, sink.actions()); diff != "" {
				t.Fatalf("actions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
