package adapters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apk-installer/internal/types"
)

// sequencePackages returns the queued states in order, then repeats the last.
type sequencePackages struct {
	mu     sync.Mutex
	states []*types.PackageInfo
}

func (p *sequencePackages) InstalledPackage(context.Context, string) (*types.PackageInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.states) == 0 {
		return nil, nil
	}
	state := p.states[0]
	if len(p.states) > 1 {
		p.states = p.states[1:]
	}
	return state, nil
}

func TestIntentAMAdapterViewPackage(t *testing.T) {
	old := &types.PackageInfo{PackageName: "com.example.app", VersionCode: 6}
	updated := &types.PackageInfo{PackageName: "com.example.app", VersionCode: 7}
	expected := types.PackageInfo{PackageName: "com.example.app", VersionCode: 7}

	tests := []struct {
		name   string
		states []*types.PackageInfo
		want   types.IntentResult
	}{
		{name: "user installs", states: []*types.PackageInfo{old, old, updated}, want: types.IntentResultOK},
		{name: "user leaves", states: []*types.PackageInfo{old}, want: types.IntentResultCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newScriptedRunner(nil)
			adapter := NewIntentAMAdapter(runner, nil, &sequencePackages{states: tt.states}, 200*time.Millisecond)
			adapter.Poll = 5 * time.Millisecond

			result, err := adapter.ViewPackage(t.Context(), "/sdcard/app.apk", expected)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
			assert.Equal(t, []string{
				"am start -W -a android.intent.action.VIEW -d file:///sdcard/app.apk -t application/vnd.android.package-archive --grant-read-uri-permission",
			}, runner.commands())
		})
	}
}

func TestIntentAMAdapterDeletePackage(t *testing.T) {
	runner := newScriptedRunner(nil)
	installed := &types.PackageInfo{PackageName: "com.example.app"}
	adapter := NewIntentAMAdapter(runner, nil, &sequencePackages{states: []*types.PackageInfo{installed, nil}}, time.Second)
	adapter.Poll = 5 * time.Millisecond

	result, err := adapter.DeletePackage(t.Context(), "com.example.app")
	require.NoError(t, err)
	assert.Equal(t, types.IntentResultOK, result)
	assert.Equal(t, []string{"am start -W -a android.intent.action.DELETE -d package:com.example.app"}, runner.commands())
}
