package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"apk-installer/internal/policies"
	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

func allTestInstallers() []ports.InstallerPort {
	kinds := []types.InstallerKind{
		types.InstallerPrivileged,
		types.InstallerRoot,
		types.InstallerSession,
		types.InstallerDirectIntent,
		types.InstallerFileCopy,
		types.InstallerDummy,
	}
	out := make([]ports.InstallerPort, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, testInstaller{kind: kind})
	}
	return out
}

func TestInstallerFactoryProbe(t *testing.T) {
	pixel := testDevice{SDK: 34, Brand: "google", Model: "pixel 8"}
	working := testBinder{installed: true, conn: testConn{granted: true}}

	tests := []struct {
		name     string
		device   testDevice
		packages testPackages
		binder   ports.PrivilegedBinderPort
		shell    ports.RootShellPort
		prefs    InstallerPrefs
		req      ProbeRequest
		want     []types.InstallerKind
	}{
		{
			name:   "privileged helper wins and excludes session",
			device: pixel,
			binder: working,
			prefs:  InstallerPrefs{PrivilegedEnabled: true},
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerPrivileged, types.InstallerDirectIntent},
		},
		{
			name:   "helper without permissions falls back to session",
			device: pixel,
			binder: testBinder{installed: true, conn: testConn{granted: false}},
			prefs:  InstallerPrefs{PrivilegedEnabled: true},
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerSession, types.InstallerDirectIntent},
		},
		{
			name:   "bind failure falls back",
			device: pixel,
			binder: testBinder{installed: true, bindErr: errors.New("connection refused")},
			prefs:  InstallerPrefs{PrivilegedEnabled: true},
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerSession, types.InstallerDirectIntent},
		},
		{
			name:   "privileged disabled by preference",
			device: pixel,
			binder: working,
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerSession, types.InstallerDirectIntent},
		},
		{
			name:   "root shell with uid 0",
			device: pixel,
			shell:  testShell{uid: "0"},
			prefs:  InstallerPrefs{RootEnabled: true},
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerRoot, types.InstallerSession, types.InstallerDirectIntent},
		},
		{
			name:   "shell that is not root",
			device: pixel,
			shell:  testShell{uid: "2000"},
			prefs:  InstallerPrefs{RootEnabled: true},
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerSession, types.InstallerDirectIntent},
		},
		{
			name:   "missing su binary",
			device: pixel,
			shell:  testShell{},
			prefs:  InstallerPrefs{RootEnabled: true},
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerSession, types.InstallerDirectIntent},
		},
		{
			name:   "os too old for session installer",
			device: testDevice{SDK: 30, Brand: "google", Model: "pixel 4"},
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerDirectIntent},
		},
		{
			name:   "old installer forced",
			device: pixel,
			prefs:  InstallerPrefs{ForceOldInstaller: true},
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerDirectIntent},
		},
		{
			name:     "miui denylisted when vendor package present",
			device:   testDevice{SDK: 33, Brand: "Xiaomi", Model: "2201117TG"},
			packages: testPackages{"com.miui.securitycenter": {PackageName: "com.miui.securitycenter"}},
			req:      ProbeRequest{IsApk: true},
			want:     []types.InstallerKind{types.InstallerDirectIntent},
		},
		{
			name:   "xiaomi without miui keeps session",
			device: testDevice{SDK: 33, Brand: "Xiaomi", Model: "2201117TG"},
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerSession, types.InstallerDirectIntent},
		},
		{
			name:   "non apk artifacts are copied",
			device: pixel,
			binder: working,
			prefs:  InstallerPrefs{PrivilegedEnabled: true},
			req:    ProbeRequest{IsApk: false},
			want:   []types.InstallerKind{types.InstallerFileCopy},
		},
		{
			name:   "dry run overrides everything",
			device: pixel,
			binder: working,
			prefs:  InstallerPrefs{PrivilegedEnabled: true, DryRun: true},
			req:    ProbeRequest{IsApk: true},
			want:   []types.InstallerKind{types.InstallerDummy},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewInstallerFactory(tt.device, tt.packages, tt.binder, tt.shell, policies.NewDevicePolicy(policies.DefaultDeviceRules), tt.prefs, allTestInstallers()...)
			capability := factory.Probe(t.Context(), tt.req)
			if diff := cmp.Diff(tt.want, capability.Eligible); diff != "" {
				t.Fatalf("eligible installers mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.want[0], capability.Selected)
		})
	}
}

func TestInstallerFactoryUnconfiguredInstallerIsSkipped(t *testing.T) {
	factory := NewInstallerFactory(testDevice{SDK: 34}, nil, nil, nil, policies.NewDevicePolicy(nil), InstallerPrefs{}, testInstaller{kind: types.InstallerDirectIntent})
	capability := factory.Probe(t.Context(), ProbeRequest{IsApk: true})

	assert.Equal(t, types.InstallerDirectIntent, capability.Selected)
	var reasons []string
	for _, check := range capability.Checks {
		if check.Installer == types.InstallerSession {
			reasons = append(reasons, check.Reason)
		}
	}
	assert.Equal(t, []string{"installer not configured"}, reasons)
	assert.Len(t, capability.Checks, 4)
}
