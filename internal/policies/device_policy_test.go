package policies

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apk-installer/internal/types"
)

func hasPackages(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, name := range names {
		set[name] = true
	}
	return func(name string) bool { return set[name] }
}

func TestDevicePolicyDeniesStockMIUI(t *testing.T) {
	policy := NewDevicePolicy(DefaultDeviceRules)

	rule, denied := policy.Denied(types.InstallerSession,
		types.DeviceInfo{SDK: 33, Brand: "Redmi", Model: "Note 12"},
		hasPackages("com.miui.securitycenter"))
	require.True(t, denied)
	if diff := cmp.Diff("miui-session-installer", rule.Name); diff != "" {
		t.Fatalf("unexpected rule (-want +got):\n%s", diff)
	}
}

func TestDevicePolicyAllowsCustomROMOnXiaomiHardware(t *testing.T) {
	policy := NewDevicePolicy(DefaultDeviceRules)

	_, denied := policy.Denied(types.InstallerSession,
		types.DeviceInfo{SDK: 33, Brand: "xiaomi", Model: "Mi 9"},
		hasPackages("org.lineageos.updater"))
	assert.False(t, denied)
}

func TestDevicePolicyOnlyCoversListedInstallers(t *testing.T) {
	policy := NewDevicePolicy(DefaultDeviceRules)

	_, denied := policy.Denied(types.InstallerPrivileged,
		types.DeviceInfo{SDK: 33, Brand: "Xiaomi"},
		hasPackages("com.miui.securitycenter"))
	assert.False(t, denied)
}

func TestDevicePolicyModelPrefix(t *testing.T) {
	policy := NewDevicePolicy([]types.DeviceRule{
		{Name: "tab-a", Installers: []types.InstallerKind{types.InstallerSession}, Matches: []string{"samsung:SM-T5*"}},
		{Name: "any-emulator", Matches: []string{"*:sdk_gphone*"}},
	})

	rule, denied := policy.Denied(types.InstallerSession, types.DeviceInfo{Brand: "samsung", Model: "SM-T510"}, nil)
	require.True(t, denied)
	assert.Equal(t, "tab-a", rule.Name)

	rule, denied = policy.Denied(types.InstallerRoot, types.DeviceInfo{Brand: "google", Model: "sdk_gphone64_x86_64"}, nil)
	require.True(t, denied)
	assert.Equal(t, "any-emulator", rule.Name)

	_, denied = policy.Denied(types.InstallerSession, types.DeviceInfo{Brand: "samsung", Model: "SM-G991B"}, nil)
	assert.False(t, denied)
}

func TestDevicePolicyFallsThroughToLaterRule(t *testing.T) {
	policy := NewDevicePolicy([]types.DeviceRule{
		{Name: "needs-vendor-app", Matches: []string{"acme:*"}, RequiresAnyPackage: []string{"com.acme.store"}},
		{Name: "acme-x1", Matches: []string{"acme:x1"}},
	})

	rule, denied := policy.Denied(types.InstallerSession, types.DeviceInfo{Brand: "ACME", Model: "X1"}, hasPackages())
	require.True(t, denied)
	assert.Equal(t, "acme-x1", rule.Name)
}

func TestSessionUnattendedSupported(t *testing.T) {
	cases := []struct {
		sdk    int
		target int32
		want   bool
	}{
		{sdk: 30, target: 34, want: false},
		{sdk: 31, target: 28, want: false},
		{sdk: 31, target: 29, want: true},
		{sdk: 32, target: 29, want: true},
		{sdk: 33, target: 29, want: false},
		{sdk: 33, target: 30, want: true},
		{sdk: 34, target: 30, want: false},
		{sdk: 34, target: 31, want: true},
		{sdk: 35, target: 32, want: false},
		{sdk: 36, target: 33, want: true},
	}
	for _, tc := range cases {
		got := SessionUnattendedSupported(tc.sdk, tc.target)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("sdk=%d target=%d (-want +got):\n%s", tc.sdk, tc.target, diff)
		}
	}
}
