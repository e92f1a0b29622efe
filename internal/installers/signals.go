package installers

import (
	"time"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// signaller fills in operation identity on every event a strategy emits.
type signaller struct {
	sink  ports.SignalSink
	clock func() time.Time
}

func newSignaller(sink ports.SignalSink) signaller {
	return signaller{sink: sink, clock: time.Now}
}

func (s signaller) send(action types.Action, op types.OperationContext, message string, token string) {
	if s.sink == nil {
		return
	}
	s.sink.Deliver(types.Event{
		Action:       action,
		ID:           op.ID,
		Session:      op.Session,
		PackageName:  op.PackageName,
		VersionCode:  op.VersionCode,
		VersionName:  op.VersionName,
		Token:        token,
		ErrorMessage: message,
		Time:         s.clock(),
	})
}

func (s signaller) complete(kind types.OperationKind, op types.OperationContext) {
	if kind == types.OperationKindUninstall {
		s.send(types.ActionUninstallComplete, op, "", "")
		return
	}
	s.send(types.ActionInstallComplete, op, "", "")
}

func (s signaller) interrupted(kind types.OperationKind, op types.OperationContext, message string) {
	if kind == types.OperationKindUninstall {
		s.send(types.ActionUninstallInterrupted, op, message, "")
		return
	}
	s.send(types.ActionInstallInterrupted, op, message, "")
}

func (s signaller) userInteraction(kind types.OperationKind, op types.OperationContext, token string) {
	if kind == types.OperationKindUninstall {
		s.send(types.ActionUninstallUserInteraction, op, "", token)
		return
	}
	s.send(types.ActionInstallUserInteraction, op, "", token)
}
