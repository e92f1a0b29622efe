package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

func defaultToken() string {
	return uuid.NewString()
}

func (t *Tracker) runInstall(ctx context.Context, op types.Operation, req types.InstallRequest) {
	logger := log.With().Str("operation", op.ID).Str("package", op.PackageName).Uint64("session", op.Session).Logger()
	ctx = logger.WithContext(ctx)
	defer t.recoverWorker(ctx, op)

	unlock := t.locks.lock(op.PackageName)
	defer unlock()
	if ctx.Err() != nil {
		return
	}

	source, err := t.fetch(ctx, op, req)
	if err != nil {
		if ctx.Err() == nil {
			t.Deliver(t.event(types.ActionInstallInterrupted, op, err.Error()))
		}
		return
	}

	staged, err := t.deps.Stager.Stage(ctx, source, req.Expected)
	if err != nil {
		logger.Warn().Err(err).Msg("staging failed")
		t.Deliver(t.event(types.ActionInstallInterrupted, op, err.Error()))
		return
	}
	if !t.update(op, func(rec *record) { rec.staged = staged }) {
		t.deps.Stager.Release(staged)
		return
	}

	device := t.deviceInfo(ctx)
	var installed *types.PackageInfo
	if t.deps.Packages != nil {
		installed, err = t.deps.Packages.InstalledPackage(ctx, op.PackageName)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to read installed package, treating as fresh install")
			installed = nil
		}
	}
	diff := t.deps.Diff.Diff(staged.Info, installed, device.SDK)
	logger.Debug().
		Int("new_permissions", len(diff.New)).
		Bool("confirmation", diff.RequiresConfirmation).
		Msg("computed permission diff")

	capability := t.deps.Prober.Probe(ctx, ProbeRequest{IsApk: staged.IsApk, TargetSDK: staged.Info.TargetSDK})
	confirmed := false
	var lastErr error
	for _, kind := range capability.Eligible {
		inst, ok := t.deps.Prober.Installer(kind)
		if !ok {
			continue
		}
		if unattended(inst, staged.Info.TargetSDK) && diff.RequiresConfirmation && !confirmed && t.deps.Confirm != nil {
			accepted, err := t.confirm(ctx, op, types.ActionInstallUserInteraction, func(token string) error {
				return t.deps.Confirm.RequestInstallConfirmation(ctx, token, op, diff)
			})
			if err != nil {
				if ctx.Err() == nil {
					t.Deliver(t.event(types.ActionInstallInterrupted, op, err.Error()))
				}
				return
			}
			if !accepted {
				t.Deliver(t.event(types.ActionInstallInterrupted, op, ""))
				return
			}
			confirmed = true
		}
		if !t.update(op, func(rec *record) { rec.installer = inst }) {
			return
		}
		started := t.event(types.ActionInstallStarted, op, "")
		started.Installer = string(kind)
		t.Deliver(started)

		err := inst.Install(ctx, staged, operationContext(op))
		if err == nil {
			t.awaitTerminal(ctx, op)
			return
		}
		lastErr = err
		if types.KindOf(err) == types.ErrorKindPlatform {
			logger.Info().Err(err).Str("installer", string(kind)).Msg("installer unavailable, falling back")
			continue
		}
		t.Deliver(t.event(types.ActionInstallInterrupted, op, err.Error()))
		return
	}
	t.Deliver(t.event(types.ActionInstallInterrupted, op, exhaustedMessage(lastErr)))
}

func (t *Tracker) runUninstall(ctx context.Context, op types.Operation) {
	logger := log.With().Str("operation", op.ID).Str("package", op.PackageName).Uint64("session", op.Session).Logger()
	ctx = logger.WithContext(ctx)
	defer t.recoverWorker(ctx, op)

	unlock := t.locks.lock(op.PackageName)
	defer unlock()
	if ctx.Err() != nil {
		return
	}

	capability := t.deps.Prober.Probe(ctx, ProbeRequest{IsApk: true})
	confirmed := false
	var lastErr error
	for _, kind := range capability.Eligible {
		inst, ok := t.deps.Prober.Installer(kind)
		if !ok {
			continue
		}
		if inst.SupportsUnattended() && !confirmed && t.deps.Confirm != nil {
			accepted, err := t.confirm(ctx, op, types.ActionUninstallUserInteraction, func(token string) error {
				return t.deps.Confirm.RequestUninstallConfirmation(ctx, token, op)
			})
			if err != nil {
				if ctx.Err() == nil {
					t.Deliver(t.event(types.ActionUninstallInterrupted, op, err.Error()))
				}
				return
			}
			if !accepted {
				t.Deliver(t.event(types.ActionUninstallInterrupted, op, ""))
				return
			}
			confirmed = true
		}
		if !t.update(op, func(rec *record) { rec.installer = inst }) {
			return
		}
		started := t.event(types.ActionUninstallStarted, op, "")
		started.Installer = string(kind)
		t.Deliver(started)

		err := inst.Uninstall(ctx, op.PackageName, operationContext(op))
		if err == nil {
			t.awaitTerminal(ctx, op)
			return
		}
		lastErr = err
		if types.KindOf(err) == types.ErrorKindPlatform {
			logger.Info().Err(err).Str("installer", string(kind)).Msg("installer unavailable, falling back")
			continue
		}
		t.Deliver(t.event(types.ActionUninstallInterrupted, op, err.Error()))
		return
	}
	t.Deliver(t.event(types.ActionUninstallInterrupted, op, exhaustedMessage(lastErr)))
}

// fetch returns a local path for the artifact, downloading it unless a
// verified copy is already cached.
func (t *Tracker) fetch(ctx context.Context, op types.Operation, req types.InstallRequest) (string, error) {
	if path := strings.TrimSpace(req.LocalPath); path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("local artifact unavailable: %w", err)
		}
		t.Deliver(t.event(types.ActionDownloadComplete, op, ""))
		return path, nil
	}
	if t.deps.Cache == nil || t.deps.Downloader == nil {
		return "", errors.New("no downloader configured")
	}
	dest, err := t.deps.Cache.DownloadPath(req.URL)
	if err != nil {
		return "", err
	}
	state, err := t.deps.Cache.CacheState(dest, req.Expected)
	if err != nil {
		return "", err
	}
	t.Deliver(t.event(types.ActionDownloadStarted, op, ""))
	switch state {
	case types.CacheStateCached:
		log.Ctx(ctx).Debug().Str("path", dest).Msg("artifact already cached, skipping download")
		complete := t.event(types.ActionDownloadComplete, op, "")
		complete.TotalBytes = req.Expected.Size
		t.Deliver(complete)
		return dest, nil
	case types.CacheStateCorrupted:
		log.Ctx(ctx).Info().Str("path", dest).Msg("cached artifact is corrupt, downloading again")
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("remove corrupt download: %w", err)
		}
	}
	err = t.deps.Downloader.Download(ctx, req.URL, dest, func(read int64, total int64) {
		progress := t.event(types.ActionDownloadProgress, op, "")
		progress.BytesRead = read
		progress.TotalBytes = total
		t.Deliver(progress)
	})
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	complete := t.event(types.ActionDownloadComplete, op, "")
	if stat, statErr := os.Stat(dest); statErr == nil {
		complete.TotalBytes = stat.Size()
	}
	t.Deliver(complete)
	return dest, nil
}

// confirm publishes a user-interaction signal and waits for Resume.
func (t *Tracker) confirm(ctx context.Context, op types.Operation, action types.Action, request func(token string) error) (bool, error) {
	token := t.deps.TokenSource()
	answer := make(chan bool, 1)
	t.mu.Lock()
	t.pending[token] = answer
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, token)
		t.mu.Unlock()
	}()

	interaction := t.event(action, op, "")
	interaction.Token = token
	t.Deliver(interaction)
	if err := request(token); err != nil {
		return false, fmt.Errorf("confirmation request failed: %w", err)
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case accepted := <-answer:
		return accepted, nil
	}
}

// awaitTerminal holds the package lock until the strategy has signalled a
// terminal event, so a package only ever has one operation in flight.
func (t *Tracker) awaitTerminal(ctx context.Context, op types.Operation) {
	select {
	case <-ctx.Done():
	case <-t.doneChan(op):
	}
}

func (t *Tracker) recoverWorker(ctx context.Context, op types.Operation) {
	if r := recover(); r != nil {
		log.Ctx(ctx).Error().Interface("panic", r).Msg("operation worker panicked")
		t.Deliver(t.event(interruptedAction(op.Kind), op, fmt.Sprintf("internal error: %v", r)))
	}
}

func (t *Tracker) deviceInfo(ctx context.Context) types.DeviceInfo {
	if t.deps.Device == nil {
		return types.DeviceInfo{}
	}
	device, err := t.deps.Device.DeviceInfo(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to read device info")
	}
	return device
}

func unattended(inst ports.InstallerPort, targetSDK int32) bool {
	if aware, ok := inst.(ports.TargetAwarePort); ok {
		return aware.SupportsUnattendedTarget(targetSDK)
	}
	return inst.SupportsUnattended()
}

func exhaustedMessage(lastErr error) string {
	if lastErr == nil {
		return "no installer available"
	}
	return "no installer available: " + lastErr.Error()
}
