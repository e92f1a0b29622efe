package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

const (
	DefaultFinishedRetention = 5 * time.Minute
	defaultInboxSize         = 256
)

// CapabilityProber selects installer strategies for one operation.
type CapabilityProber interface {
	Probe(ctx context.Context, req ProbeRequest) types.InstallerCapability
	Installer(kind types.InstallerKind) (ports.InstallerPort, bool)
}

// DownloadCache locates and classifies downloaded artifacts.
type DownloadCache interface {
	DownloadPath(rawURL string) (string, error)
	CacheState(filePath string, expected types.ExpectedApk) (types.CacheState, error)
}

type TrackerDeps struct {
	Prober     CapabilityProber
	Cache      DownloadCache
	Stager     ports.StagerPort
	Downloader ports.DownloaderPort
	Packages   ports.InstalledPackagesPort
	Device     ports.DevicePort
	Diff       PermissionDiffEngine
	Confirm    ports.ConfirmationPort
	Bus        ports.EventBusPort
	History    ports.HistoryPort
	// TokenSource mints continuation tokens for confirmation requests.
	TokenSource       func() string
	Clock             func() time.Time
	FinishedRetention time.Duration
}

type record struct {
	op        types.Operation
	request   types.InstallRequest
	cancel    context.CancelFunc
	installer ports.InstallerPort
	staged    types.StagedFile
	done      chan struct{}
	endedAt   time.Time
}

// Tracker owns every install and uninstall operation. Workers run the
// pipeline per operation; all state changes go through a single consumer
// (Run) that applies inbound events in arrival order.
type Tracker struct {
	deps TrackerDeps

	mu       sync.Mutex
	live     map[string]*record
	finished map[string]*record
	session  uint64
	pending  map[string]chan bool

	inbox chan types.Event
	locks *keyedMutex
	wg    sync.WaitGroup
}

func NewTracker(deps TrackerDeps) *Tracker {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.FinishedRetention <= 0 {
		deps.FinishedRetention = DefaultFinishedRetention
	}
	if deps.TokenSource == nil {
		deps.TokenSource = defaultToken
	}
	return &Tracker{
		deps:     deps,
		live:     map[string]*record{},
		finished: map[string]*record{},
		// Seeded from the clock so tokens keep increasing across restarts.
		session: uint64(deps.Clock().UnixNano()),
		pending: map[string]chan bool{},
		inbox:   make(chan types.Event, defaultInboxSize),
		locks:   &keyedMutex{},
	}
}

// Run consumes inbound events until ctx is done. It must be running for
// queued operations to make progress.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-t.inbox:
			t.apply(ctx, event)
		case <-ticker.C:
			t.pruneFinished()
		}
	}
}

// Shutdown cancels all live operations and waits for their workers.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	for _, rec := range t.live {
		if rec.cancel != nil {
			rec.cancel()
		}
	}
	t.mu.Unlock()
	t.wg.Wait()
}

// Deliver accepts a lifecycle signal from a strategy, a worker or another
// process.
func (t *Tracker) Deliver(event types.Event) {
	if event.Time.IsZero() {
		event.Time = t.deps.Clock()
	}
	t.inbox <- event
}

// Queue registers an install and starts its worker. A request for the
// version that is already installed is rejected.
func (t *Tracker) Queue(ctx context.Context, req types.InstallRequest) (types.Operation, error) {
	id := canonicalID(req)
	if id == "" {
		return types.Operation{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("install request needs a url or a local path")
	}
	if strings.TrimSpace(req.Expected.PackageName) == "" {
		return types.Operation{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("install request needs a package name")
	}
	if t.deps.Packages != nil {
		installed, err := t.deps.Packages.InstalledPackage(ctx, req.Expected.PackageName)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("package", req.Expected.PackageName).Msg("failed to read installed package")
		}
		if installed != nil && installed.VersionCode == req.Expected.VersionCode {
			return types.Operation{}, errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg(fmt.Sprintf("%s %d is already installed", req.Expected.PackageName, req.Expected.VersionCode))
		}
	}
	op := types.Operation{
		ID:          id,
		Kind:        types.OperationKindInstall,
		PackageName: req.Expected.PackageName,
		VersionCode: req.Expected.VersionCode,
		VersionName: req.Expected.VersionName,
	}
	rec, workCtx := t.register(ctx, op, req)
	t.spawn(func() { t.runInstall(workCtx, rec.op, req) })
	return rec.op, nil
}

// QueueUninstall registers an uninstall of an installed package.
func (t *Tracker) QueueUninstall(ctx context.Context, req types.UninstallRequest) (types.Operation, error) {
	name := strings.TrimSpace(req.PackageName)
	if name == "" {
		return types.Operation{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("uninstall request needs a package name")
	}
	op := types.Operation{ID: name, Kind: types.OperationKindUninstall, PackageName: name}
	if t.deps.Packages != nil {
		installed, err := t.deps.Packages.InstalledPackage(ctx, name)
		if err != nil {
			return types.Operation{}, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read installed package").
				WithCause(err)
		}
		if installed == nil {
			return types.Operation{}, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(name + " is not installed")
		}
		op.VersionCode = installed.VersionCode
		op.VersionName = installed.VersionName
	}
	rec, workCtx := t.register(ctx, op, types.InstallRequest{})
	t.spawn(func() { t.runUninstall(workCtx, rec.op) })
	return rec.op, nil
}

// register starts a new session for op. A live record with the same id is
// interrupted first so its waiters and staged file are released.
func (t *Tracker) register(ctx context.Context, op types.Operation, req types.InstallRequest) (*record, context.Context) {
	assert.NotEmpty(ctx, op.ID, "operation id must be set")
	workCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	var superseded types.Operation
	var staged types.StagedFile
	prev, replacing := t.live[op.ID]
	if replacing {
		prev.op.Status = types.StatusInterrupted
		prev.op.LastError = "superseded by a new request"
		prev.op.UpdatedAt = t.deps.Clock()
		staged = t.finish(prev)
		superseded = prev.op
	}
	delete(t.finished, op.ID)
	t.session++
	op.Session = t.session
	op.Status = types.StatusPending
	op.UpdatedAt = t.deps.Clock()
	rec := &record{op: op, request: req, cancel: cancel, done: make(chan struct{})}
	t.live[op.ID] = rec
	t.mu.Unlock()

	if replacing {
		log.Ctx(ctx).Info().
			Str("operation", op.ID).
			Uint64("session", superseded.Session).
			Msg("interrupting operation superseded by a new request")
		action := interruptedAction(superseded.Kind)
		published := t.event(action, superseded, superseded.LastError)
		published.Status = superseded.Status
		published.Installer = string(superseded.Installer)
		t.settle(ctx, superseded, published, staged)
	}
	return rec, workCtx
}

func (t *Tracker) spawn(fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn()
	}()
}

// Cancel interrupts a live operation. A request already handed to the root
// shell or the privileged extension cannot be aborted, so those refuse the
// cancel; every other strategy is abandoned and the operation interrupted.
func (t *Tracker) Cancel(ctx context.Context, id string) error {
	t.mu.Lock()
	rec, ok := t.live[id]
	if !ok {
		t.mu.Unlock()
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no active operation " + id)
	}
	op := rec.op
	inst := rec.installer
	issued := inst != nil && (op.Status == types.StatusInstalling || op.Status == types.StatusUninstalling)
	t.mu.Unlock()

	if issued {
		switch inst.Kind() {
		case types.InstallerRoot, types.InstallerPrivileged:
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("%s installer cannot cancel a request already issued", inst.Kind()))
		}
		if canceler, ok := inst.(ports.CancelablePort); ok {
			if err := canceler.Cancel(ctx, operationContext(op)); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("operation", id).Msg("installer cancel failed")
			}
		}
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	t.Deliver(t.event(interruptedAction(op.Kind), op, ""))
	return nil
}

// Resume answers a pending confirmation request.
func (t *Tracker) Resume(token string, accepted bool) error {
	t.mu.Lock()
	ch, ok := t.pending[token]
	delete(t.pending, token)
	t.mu.Unlock()
	if !ok {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no pending confirmation for token " + token)
	}
	ch <- accepted
	return nil
}

// Wait blocks until the live operation id reaches a terminal state and
// returns its final record.
func (t *Tracker) Wait(ctx context.Context, id string) (types.Operation, error) {
	t.mu.Lock()
	rec, ok := t.live[id]
	if !ok {
		if done, found := t.finished[id]; found {
			t.mu.Unlock()
			return done.op, nil
		}
		t.mu.Unlock()
		return types.Operation{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no operation " + id)
	}
	done := rec.done
	t.mu.Unlock()
	select {
	case <-ctx.Done():
		return types.Operation{}, ctx.Err()
	case <-done:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return rec.op, nil
}

// Status returns the live or recently finished record for id.
func (t *Tracker) Status(id string) (types.Operation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.live[id]; ok {
		return rec.op, true
	}
	if rec, ok := t.finished[id]; ok {
		return rec.op, true
	}
	return types.Operation{}, false
}

// Active lists operations that have not reached a terminal state.
func (t *Tracker) Active() []types.Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.Operation, 0, len(t.live))
	for _, rec := range t.live {
		out = append(out, rec.op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Tracker) apply(ctx context.Context, event types.Event) {
	action := event.Action
	if action == types.ActionDownloadInterrupted {
		action = types.ActionInstallInterrupted
	}

	t.mu.Lock()
	_, live := t.live[event.ID]
	_, ended := t.finished[event.ID]
	t.mu.Unlock()
	if !live && ended {
		log.Ctx(ctx).Debug().Str("operation", event.ID).Str("action", string(event.Action)).Msg("ignoring event for finished operation")
		return
	}
	if !live && action.Terminal() && t.recordedInHistory(ctx, event) {
		log.Ctx(ctx).Debug().Str("operation", event.ID).Str("action", string(event.Action)).Msg("ignoring redelivered terminal event")
		return
	}

	t.mu.Lock()
	rec, ok := t.live[event.ID]
	if !ok {
		rec = t.reconstruct(event)
		if rec == nil {
			t.mu.Unlock()
			log.Ctx(ctx).Warn().Str("operation", event.ID).Str("action", string(event.Action)).Msg("dropping event without package identity")
			return
		}
	}
	if event.Session != 0 && event.Session != rec.op.Session {
		t.mu.Unlock()
		log.Ctx(ctx).Debug().
			Str("operation", event.ID).
			Uint64("session", event.Session).
			Uint64("current", rec.op.Session).
			Msg("ignoring stale event")
		return
	}

	op := &rec.op
	op.UpdatedAt = event.Time
	switch action {
	case types.ActionDownloadStarted:
		op.Status = types.StatusDownloading
	case types.ActionDownloadProgress:
		op.Status = types.StatusDownloading
		op.BytesRead = event.BytesRead
		op.TotalBytes = event.TotalBytes
	case types.ActionDownloadComplete:
		op.Status = types.StatusReadyToInstall
		if event.TotalBytes > 0 {
			op.BytesRead = event.TotalBytes
			op.TotalBytes = event.TotalBytes
		}
	case types.ActionInstallStarted:
		op.Status = types.StatusInstalling
		op.InteractionToken = ""
		if event.Installer != "" {
			op.Installer = types.InstallerKind(event.Installer)
		}
	case types.ActionUninstallStarted:
		op.Status = types.StatusUninstalling
		op.InteractionToken = ""
		if event.Installer != "" {
			op.Installer = types.InstallerKind(event.Installer)
		}
	case types.ActionInstallUserInteraction, types.ActionUninstallUserInteraction:
		op.InteractionToken = event.Token
	case types.ActionInstallComplete:
		op.Status = types.StatusInstalled
	case types.ActionUninstallComplete:
		op.Status = types.StatusComplete
	case types.ActionInstallInterrupted, types.ActionUninstallInterrupted:
		op.Status = types.StatusInterrupted
		op.LastError = event.ErrorMessage
	default:
		t.mu.Unlock()
		log.Ctx(ctx).Warn().Str("action", string(event.Action)).Msg("unknown event action")
		return
	}

	published := event
	published.Action = action
	published.Session = op.Session
	published.PackageName = op.PackageName
	published.VersionCode = op.VersionCode
	published.VersionName = op.VersionName
	published.Status = op.Status
	published.Installer = string(op.Installer)

	var staged types.StagedFile
	terminal := action.Terminal()
	if terminal {
		staged = t.finish(rec)
	}
	snapshot := rec.op
	t.mu.Unlock()

	if terminal {
		t.settle(ctx, snapshot, published, staged)
		return
	}
	if t.deps.Bus != nil {
		t.deps.Bus.Publish(published)
	}
}

// settle releases the staged file of a finished operation, publishes its
// terminal event and records it in history.
func (t *Tracker) settle(ctx context.Context, op types.Operation, published types.Event, staged types.StagedFile) {
	if staged.Path != "" && t.deps.Stager != nil {
		t.deps.Stager.Release(staged)
	}
	if t.deps.Bus != nil {
		t.deps.Bus.Publish(published)
	}
	log.Ctx(ctx).Info().
		Str("operation", op.ID).
		Str("package", op.PackageName).
		Str("status", string(op.Status)).
		Str("error", op.LastError).
		Msg("operation finished")
	t.appendHistory(ctx, op, published.Action)
}

// recordedInHistory reports whether the terminal outcome of the event's
// operation was already written, as happens when the signal spool
// redelivers after a restart. Without a session, only rows written after
// the event was raised count.
func (t *Tracker) recordedInHistory(ctx context.Context, event types.Event) bool {
	if t.deps.History == nil || strings.TrimSpace(event.ID) == "" {
		return false
	}
	filter := types.HistoryFilter{OperationID: event.ID, Session: event.Session, Limit: 1}
	if event.Session == 0 {
		filter.Since = event.Time
	}
	entries, err := t.deps.History.List(ctx, filter)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("operation", event.ID).Msg("failed to check install history")
		return false
	}
	return len(entries) > 0
}

// reconstruct rebuilds a record from a signal whose operation is unknown,
// typically after a restart. Caller holds t.mu.
func (t *Tracker) reconstruct(event types.Event) *record {
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.PackageName) == "" {
		return nil
	}
	session := event.Session
	if session == 0 {
		t.session++
		session = t.session
	} else if session > t.session {
		t.session = session
	}
	rec := &record{
		op: types.Operation{
			ID:          event.ID,
			Session:     session,
			Kind:        event.Action.Kind(),
			PackageName: event.PackageName,
			VersionCode: event.VersionCode,
			VersionName: event.VersionName,
			Status:      types.StatusPending,
		},
		done: make(chan struct{}),
	}
	t.live[event.ID] = rec
	return rec
}

// finish moves rec out of the live set. Caller holds t.mu.
func (t *Tracker) finish(rec *record) types.StagedFile {
	delete(t.live, rec.op.ID)
	rec.endedAt = t.deps.Clock()
	t.finished[rec.op.ID] = rec
	if rec.cancel != nil {
		rec.cancel()
	}
	close(rec.done)
	staged := rec.staged
	rec.staged = types.StagedFile{}
	return staged
}

func (t *Tracker) pruneFinished() {
	cutoff := t.deps.Clock().Add(-t.deps.FinishedRetention)
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, rec := range t.finished {
		if rec.endedAt.Before(cutoff) {
			delete(t.finished, id)
		}
	}
}

func (t *Tracker) appendHistory(ctx context.Context, op types.Operation, action types.Action) {
	if t.deps.History == nil {
		return
	}
	err := t.deps.History.Append(ctx, types.HistoryEntry{
		OperationID: op.ID,
		Session:     op.Session,
		Time:        t.deps.Clock(),
		PackageName: op.PackageName,
		VersionCode: op.VersionCode,
		VersionName: op.VersionName,
		Event:       action,
		Message:     op.LastError,
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("package", op.PackageName).Msg("failed to append install history")
	}
}

// update runs fn against the live record for op if its session is still
// current.
func (t *Tracker) update(op types.Operation, fn func(rec *record)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.live[op.ID]
	if !ok || rec.op.Session != op.Session {
		return false
	}
	fn(rec)
	return true
}

func (t *Tracker) doneChan(op types.Operation) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.live[op.ID]; ok && rec.op.Session == op.Session {
		return rec.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

func (t *Tracker) event(action types.Action, op types.Operation, message string) types.Event {
	return types.Event{
		Action:       action,
		ID:           op.ID,
		Session:      op.Session,
		PackageName:  op.PackageName,
		VersionCode:  op.VersionCode,
		VersionName:  op.VersionName,
		ErrorMessage: message,
		Time:         t.deps.Clock(),
	}
}

func canonicalID(req types.InstallRequest) string {
	if id := strings.TrimSpace(req.URL); id != "" {
		return id
	}
	if path := strings.TrimSpace(req.LocalPath); path != "" {
		return "file://" + path
	}
	return ""
}

func operationContext(op types.Operation) types.OperationContext {
	return types.OperationContext{
		ID:          op.ID,
		Session:     op.Session,
		PackageName: op.PackageName,
		VersionCode: op.VersionCode,
		VersionName: op.VersionName,
	}
}

func interruptedAction(kind types.OperationKind) types.Action {
	if kind == types.OperationKindUninstall {
		return types.ActionUninstallInterrupted
	}
	return types.ActionInstallInterrupted
}
