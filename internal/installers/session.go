package installers

import (
	"context"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"apk-installer/internal/policies"
	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// SessionInstaller uses the OS staged-session primitive. Sessions left over
// from earlier runs are abandoned once, before the first new session, since
// the OS caps concurrent sessions per installer.
type SessionInstaller struct {
	Sessions ports.SessionPort
	Registry ports.SessionRegistryPort
	SDK      int

	out   signaller
	state *sessionState
}

type sessionState struct {
	cleanup sync.Once
	mu      sync.Mutex
	active  map[string]int
}

func NewSessionInstaller(sessions ports.SessionPort, registry ports.SessionRegistryPort, sink ports.SignalSink, sdk int) SessionInstaller {
	return SessionInstaller{
		Sessions: sessions,
		Registry: registry,
		SDK:      sdk,
		out:      newSignaller(sink),
		state:    &sessionState{active: map[string]int{}},
	}
}

func (i SessionInstaller) Kind() types.InstallerKind { return types.InstallerSession }

// SupportsUnattended is false in general; see SupportsUnattendedTarget.
func (i SessionInstaller) SupportsUnattended() bool { return false }

func (i SessionInstaller) SupportsUnattendedTarget(targetSDK int32) bool {
	return policies.SessionUnattendedSupported(i.SDK, targetSDK)
}

func (i SessionInstaller) SupportsDurableReference() bool { return true }

func (i SessionInstaller) Install(ctx context.Context, staged types.StagedFile, op types.OperationContext) error {
	i.abandonStale(ctx)

	var size int64
	if stat, err := os.Stat(staged.Path); err == nil {
		size = stat.Size()
	}
	sessionID, err := i.Sessions.Create(ctx, op.PackageName, size)
	if err != nil {
		return types.NewPlatformError("creating install session failed", err)
	}
	if i.Registry != nil {
		if err := i.Registry.RecordSession(ctx, sessionID, op.PackageName); err != nil {
			log.Ctx(ctx).Warn().Err(err).Int("session_id", sessionID).Msg("failed to record install session")
		}
	}
	// A session waiting on the user stays tracked so Cancel can abandon it.
	i.track(op.ID, sessionID)

	if err := i.Sessions.Write(ctx, sessionID, staged.Path); err != nil {
		i.untrack(op.ID)
		i.discard(ctx, sessionID)
		i.out.interrupted(types.OperationKindInstall, op, "writing install session failed: "+err.Error())
		return nil
	}
	result, err := i.Sessions.Commit(ctx, sessionID)
	if err != nil {
		i.untrack(op.ID)
		i.discard(ctx, sessionID)
		i.out.interrupted(types.OperationKindInstall, op, "committing install session failed: "+err.Error())
		return nil
	}
	if result.Status != types.SessionStatusPendingUserAction {
		i.untrack(op.ID)
		i.forget(ctx, sessionID)
	}
	i.report(types.OperationKindInstall, op, result)
	return nil
}

func (i SessionInstaller) Uninstall(ctx context.Context, packageName string, op types.OperationContext) error {
	result, err := i.Sessions.Uninstall(ctx, packageName)
	if err != nil {
		return types.NewPlatformError("session uninstall unavailable", err)
	}
	i.report(types.OperationKindUninstall, op, result)
	return nil
}

// Cancel abandons the session of an in-flight install, including one left
// waiting on the user.
func (i SessionInstaller) Cancel(ctx context.Context, op types.OperationContext) error {
	i.state.mu.Lock()
	sessionID, ok := i.state.active[op.ID]
	delete(i.state.active, op.ID)
	i.state.mu.Unlock()
	if !ok {
		return nil
	}
	i.discard(ctx, sessionID)
	return nil
}

func (i SessionInstaller) report(kind types.OperationKind, op types.OperationContext, result types.SessionResult) {
	switch result.Status {
	case types.SessionStatusSuccess:
		i.out.complete(kind, op)
	case types.SessionStatusPendingUserAction:
		i.out.userInteraction(kind, op, strconv.Itoa(result.SessionID))
	case types.SessionStatusFailureAborted:
		i.out.interrupted(kind, op, "")
	default:
		message := result.Message
		if message == "" {
			message = "session failed with status " + strconv.Itoa(int(result.Status))
		}
		i.out.interrupted(kind, op, message)
	}
}

func (i SessionInstaller) abandonStale(ctx context.Context) {
	i.state.cleanup.Do(func() {
		if i.Registry == nil {
			return
		}
		owned, err := i.Registry.OwnedSessions(ctx)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to list stale install sessions")
			return
		}
		for _, sessionID := range owned {
			log.Ctx(ctx).Info().Int("session_id", sessionID).Msg("abandoning stale install session")
			i.discard(ctx, sessionID)
		}
	})
}

func (i SessionInstaller) discard(ctx context.Context, sessionID int) {
	if err := i.Sessions.Abandon(ctx, sessionID); err != nil {
		log.Ctx(ctx).Debug().Err(err).Int("session_id", sessionID).Msg("abandon session failed")
	}
	i.forget(ctx, sessionID)
}

func (i SessionInstaller) forget(ctx context.Context, sessionID int) {
	if i.Registry == nil {
		return
	}
	if err := i.Registry.ForgetSession(ctx, sessionID); err != nil {
		log.Ctx(ctx).Debug().Err(err).Int("session_id", sessionID).Msg("forget session failed")
	}
}

func (i SessionInstaller) track(id string, sessionID int) {
	i.state.mu.Lock()
	defer i.state.mu.Unlock()
	i.state.active[id] = sessionID
}

func (i SessionInstaller) untrack(id string) {
	i.state.mu.Lock()
	defer i.state.mu.Unlock()
	delete(i.state.active, id)
}

var (
	_ ports.InstallerPort   = SessionInstaller{}
	_ ports.CancelablePort  = SessionInstaller{}
	_ ports.TargetAwarePort = SessionInstaller{}
)
