package core

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"apk-installer/internal/policies"
	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

const DefaultBindTimeout = 3 * time.Second

// priorityOrder is the fixed evaluation order for APK installs.
var priorityOrder = []types.InstallerKind{
	types.InstallerPrivileged,
	types.InstallerRoot,
	types.InstallerSession,
	types.InstallerDirectIntent,
}

type InstallerPrefs struct {
	PrivilegedEnabled bool
	RootEnabled       bool
	ForceOldInstaller bool
	DryRun            bool
	BindTimeout       time.Duration
}

type ProbeRequest struct {
	IsApk     bool
	TargetSDK int32
}

// InstallerFactory decides which installer strategies are usable. Results
// are never cached across operations: helper apps, root grants and
// preferences can change at runtime.
type InstallerFactory struct {
	Device     ports.DevicePort
	Packages   ports.InstalledPackagesPort
	Privileged ports.PrivilegedBinderPort
	RootShell  ports.RootShellPort
	Policy     policies.DevicePolicy
	Prefs      InstallerPrefs
	Installers map[types.InstallerKind]ports.InstallerPort
	Clock      func() time.Time
}

func NewInstallerFactory(device ports.DevicePort, packages ports.InstalledPackagesPort, privileged ports.PrivilegedBinderPort, root ports.RootShellPort, policy policies.DevicePolicy, prefs InstallerPrefs, installers ...ports.InstallerPort) InstallerFactory {
	if prefs.BindTimeout <= 0 {
		prefs.BindTimeout = DefaultBindTimeout
	}
	registry := make(map[types.InstallerKind]ports.InstallerPort, len(installers))
	for _, inst := range installers {
		if inst != nil {
			registry[inst.Kind()] = inst
		}
	}
	return InstallerFactory{
		Device:     device,
		Packages:   packages,
		Privileged: privileged,
		RootShell:  root,
		Policy:     policy,
		Prefs:      prefs,
		Installers: registry,
		Clock:      time.Now,
	}
}

func (f InstallerFactory) Installer(kind types.InstallerKind) (ports.InstallerPort, bool) {
	inst, ok := f.Installers[kind]
	return inst, ok
}

// Probe evaluates every strategy in priority order. A failed check moves on
// to the next strategy; the direct intent installer is the universal
// fallback for APKs.
func (f InstallerFactory) Probe(ctx context.Context, req ProbeRequest) types.InstallerCapability {
	capability := types.InstallerCapability{Computed: f.Clock()}
	if f.Device != nil {
		device, err := f.Device.DeviceInfo(ctx)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to read device info")
		}
		capability.Device = device
	}

	switch {
	case f.Prefs.DryRun:
		f.record(&capability, types.InstallerDummy, true, "dry run")
		return capability
	case !req.IsApk:
		f.record(&capability, types.InstallerFileCopy, true, "artifact is not an apk")
		return capability
	}

	for _, kind := range priorityOrder {
		eligible, reason := f.check(ctx, kind, capability)
		f.record(&capability, kind, eligible, reason)
	}
	return capability
}

func (f InstallerFactory) record(capability *types.InstallerCapability, kind types.InstallerKind, eligible bool, reason string) {
	if eligible {
		if _, ok := f.Installers[kind]; !ok {
			eligible = false
			reason = "installer not configured"
		}
	}
	capability.Checks = append(capability.Checks, types.CapabilityCheck{Installer: kind, Eligible: eligible, Reason: reason})
	if !eligible {
		return
	}
	capability.Eligible = append(capability.Eligible, kind)
	if capability.Selected == "" {
		capability.Selected = kind
	}
}

func (f InstallerFactory) check(ctx context.Context, kind types.InstallerKind, capability types.InstallerCapability) (bool, string) {
	switch kind {
	case types.InstallerPrivileged:
		return f.checkPrivileged(ctx)
	case types.InstallerRoot:
		return f.checkRoot(ctx)
	case types.InstallerSession:
		return f.checkSession(ctx, capability)
	case types.InstallerDirectIntent:
		return true, ""
	default:
		return false, "unknown installer"
	}
}

func (f InstallerFactory) checkPrivileged(ctx context.Context) (bool, string) {
	if !f.Prefs.PrivilegedEnabled {
		return false, "disabled by preference"
	}
	if f.Privileged == nil {
		return false, "no privileged extension binder"
	}
	installed, err := f.Privileged.ExtensionInstalled(ctx)
	if err != nil {
		return false, "extension lookup failed: " + err.Error()
	}
	if !installed {
		return false, "extension not installed"
	}
	bindCtx, cancel := context.WithTimeout(ctx, f.Prefs.BindTimeout)
	defer cancel()
	conn, err := f.Privileged.Bind(bindCtx)
	if err != nil {
		return false, "bind failed: " + err.Error()
	}
	defer conn.Close()
	granted, err := conn.HasPrivilegedPermissions(bindCtx)
	if err != nil {
		return false, "permission check failed: " + err.Error()
	}
	if !granted {
		return false, "extension lacks privileged permissions"
	}
	return true, ""
}

func (f InstallerFactory) checkRoot(ctx context.Context) (bool, string) {
	if !f.Prefs.RootEnabled {
		return false, "disabled by preference"
	}
	if f.RootShell == nil {
		return false, "no root shell"
	}
	session, err := f.RootShell.Open(ctx)
	if err != nil {
		return false, "root shell unavailable: " + err.Error()
	}
	defer session.Close()
	code, out, err := session.Run(ctx, "id -u")
	if err != nil {
		return false, "root shell failed: " + err.Error()
	}
	if code != 0 || strings.TrimSpace(out) != "0" {
		return false, "shell is not running as root"
	}
	return true, ""
}

func (f InstallerFactory) checkSession(ctx context.Context, capability types.InstallerCapability) (bool, string) {
	if f.Prefs.ForceOldInstaller {
		return false, "old installer forced by preference"
	}
	if capability.Selected == types.InstallerPrivileged {
		return false, "privileged extension selected"
	}
	if capability.Device.SDK < policies.MinSessionSDK {
		return false, "os version below session installer minimum"
	}
	hasPackage := func(name string) bool {
		if f.Packages == nil {
			return false
		}
		info, err := f.Packages.InstalledPackage(ctx, name)
		return err == nil && info != nil
	}
	if rule, denied := f.Policy.Denied(types.InstallerSession, capability.Device, hasPackage); denied {
		return false, "device denylisted by rule " + rule.Name
	}
	return true, ""
}
