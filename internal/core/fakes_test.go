package core

import (
	"context"
	"errors"
	"sync"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

type testArchive struct {
	info   types.PackageInfo
	err    error
	signer string
}

func (a testArchive) Parse(context.Context, string) (types.PackageInfo, error) {
	return a.info, a.err
}

func (a testArchive) SignerFingerprint(context.Context, string) (string, error) {
	if a.signer == "" {
		return "", errors.New("no signer")
	}
	return a.signer, nil
}

type testPackages map[string]*types.PackageInfo

func (p testPackages) InstalledPackage(_ context.Context, name string) (*types.PackageInfo, error) {
	return p[name], nil
}

type testDevice types.DeviceInfo

func (d testDevice) DeviceInfo(context.Context) (types.DeviceInfo, error) {
	return types.DeviceInfo(d), nil
}

type testCatalog map[string]types.PermissionInfo

func (c testCatalog) Lookup(name string) (types.PermissionInfo, bool) {
	info, ok := c[name]
	return info, ok
}

type testConn struct {
	granted bool
	err     error
}

func (c testConn) HasPrivilegedPermissions(context.Context) (bool, error) { return c.granted, c.err }
func (c testConn) InstallPackage(context.Context, string, int, string) error {
	return nil
}
func (c testConn) DeletePackage(context.Context, string, int) error { return nil }
func (c testConn) Results() <-chan types.PrivilegedResult           { return nil }
func (c testConn) Done() <-chan struct{}                            { return nil }
func (c testConn) Close() error                                     { return nil }

type testBinder struct {
	installed bool
	bindErr   error
	conn      testConn
}

func (b testBinder) ExtensionInstalled(context.Context) (bool, error) { return b.installed, nil }

func (b testBinder) Bind(context.Context) (ports.PrivilegedConn, error) {
	if b.bindErr != nil {
		return nil, b.bindErr
	}
	return b.conn, nil
}

type testShell struct {
	uid string
}

func (s testShell) Open(context.Context) (ports.ShellSession, error) {
	if s.uid == "" {
		return nil, errors.New("su not found")
	}
	return s, nil
}

func (s testShell) Run(context.Context, string) (int, string, error) { return 0, s.uid + "\n", nil }
func (s testShell) Close() error                                    { return nil }

// testInstaller records calls; onInstall decides what happens next.
type testInstaller struct {
	kind       types.InstallerKind
	unattended bool
	onInstall  func(op types.OperationContext) error
	calls      *[]types.InstallerKind
	mu         *sync.Mutex
}

func newTestInstaller(kind types.InstallerKind, unattended bool, calls *[]types.InstallerKind, mu *sync.Mutex, onInstall func(op types.OperationContext) error) testInstaller {
	return testInstaller{kind: kind, unattended: unattended, onInstall: onInstall, calls: calls, mu: mu}
}

func (i testInstaller) Kind() types.InstallerKind      { return i.kind }
func (i testInstaller) SupportsUnattended() bool       { return i.unattended }
func (i testInstaller) SupportsDurableReference() bool { return true }

func (i testInstaller) Install(_ context.Context, _ types.StagedFile, op types.OperationContext) error {
	return i.record(op)
}

func (i testInstaller) Uninstall(_ context.Context, _ string, op types.OperationContext) error {
	return i.record(op)
}

func (i testInstaller) record(op types.OperationContext) error {
	if i.calls != nil {
		i.mu.Lock()
		*i.calls = append(*i.calls, i.kind)
		i.mu.Unlock()
	}
	if i.onInstall == nil {
		return nil
	}
	return i.onInstall(op)
}

// testProber returns a fixed eligible list.
type testProber struct {
	eligible   []types.InstallerKind
	installers map[types.InstallerKind]ports.InstallerPort
}

func (p testProber) Probe(context.Context, ProbeRequest) types.InstallerCapability {
	capability := types.InstallerCapability{Eligible: p.eligible}
	if len(p.eligible) > 0 {
		capability.Selected = p.eligible[0]
	}
	return capability
}

func (p testProber) Installer(kind types.InstallerKind) (ports.InstallerPort, bool) {
	inst, ok := p.installers[kind]
	return inst, ok
}

type testStager struct {
	info     types.PackageInfo
	err      error
	released chan types.StagedFile
}

func (s testStager) Stage(_ context.Context, source string, _ types.ExpectedApk) (types.StagedFile, error) {
	if s.err != nil {
		return types.StagedFile{}, s.err
	}
	return types.StagedFile{Path: source + ".staged", Source: source, IsApk: true, Info: s.info}, nil
}

func (s testStager) Release(staged types.StagedFile) {
	if s.released != nil {
		s.released <- staged
	}
}

type testConfirm struct {
	accept  bool
	resume  func(token string, accepted bool) error
	diffs   chan types.PermissionDiff
	uninsts chan string
}

func (c *testConfirm) RequestInstallConfirmation(_ context.Context, token string, _ types.Operation, diff types.PermissionDiff) error {
	c.diffs <- diff
	return c.resume(token, c.accept)
}

func (c *testConfirm) RequestUninstallConfirmation(_ context.Context, token string, op types.Operation) error {
	c.uninsts <- op.PackageName
	return c.resume(token, c.accept)
}

type testBus struct {
	events chan types.Event
}

func newTestBus() *testBus {
	return &testBus{events: make(chan types.Event, 128)}
}

func (b *testBus) Publish(event types.Event) { b.events <- event }

func (b *testBus) Subscribe(int) (<-chan types.Event, func()) { return b.events, func() {} }

type testHistory struct {
	mu      sync.Mutex
	entries []types.HistoryEntry
}

func (h *testHistory) Append(_ context.Context, entry types.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

func (h *testHistory) List(_ context.Context, filter types.HistoryFilter) ([]types.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []types.HistoryEntry
	for _, entry := range h.entries {
		if filter.OperationID != "" && entry.OperationID != filter.OperationID {
			continue
		}
		if filter.Session != 0 && entry.Session != filter.Session {
			continue
		}
		if !filter.Since.IsZero() && entry.Time.Before(filter.Since) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (h *testHistory) snapshot() []types.HistoryEntry {
	entries, _ := h.List(context.Background(), types.HistoryFilter{})
	return entries
}
