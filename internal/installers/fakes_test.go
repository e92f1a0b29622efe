package installers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

type recordingSink struct {
	mu     sync.Mutex
	events []types.Event
}

func (s *recordingSink) Deliver(event types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) actions() []types.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Action, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.Action)
	}
	return out
}

func (s *recordingSink) last() types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return types.Event{}
	}
	return s.events[len(s.events)-1]
}

var testOp = types.OperationContext{
	ID:          "https://mirror.example/repo/com.example.app_7.apk",
	Session:     42,
	PackageName: "com.example.app",
	VersionCode: 7,
	VersionName: "1.7",
}

type fakeShell struct {
	openErr  error
	exitCode int
	output   string
	runErr   error
	commands *[]string
}

func (s fakeShell) Open(context.Context) (ports.ShellSession, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s, nil
}

func (s fakeShell) Run(_ context.Context, command string) (int, string, error) {
	if s.commands != nil {
		*s.commands = append(*s.commands, command)
	}
	return s.exitCode, s.output, s.runErr
}

func (s fakeShell) Close() error { return nil }

type fakeFiles struct {
	pushErr error
	removed *[]string
}

func (f fakeFiles) Push(_ context.Context, localPath string) (string, error) {
	if f.pushErr != nil {
		return "", f.pushErr
	}
	return "/data/local/tmp/" + filepath.Base(localPath), nil
}

func (f fakeFiles) Remove(_ context.Context, devicePath string) error {
	if f.removed != nil {
		*f.removed = append(*f.removed, devicePath)
	}
	return nil
}

type fakeConn struct {
	granted    bool
	grantErr   error
	requestErr error
	results    chan types.PrivilegedResult
	done       chan struct{}
	installs   chan string
	closed     chan struct{}
}

func newFakeConn(granted bool) *fakeConn {
	return &fakeConn{
		granted:  granted,
		results:  make(chan types.PrivilegedResult, 4),
		done:     make(chan struct{}),
		installs: make(chan string, 1),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) HasPrivilegedPermissions(context.Context) (bool, error) {
	return c.granted, c.grantErr
}

func (c *fakeConn) InstallPackage(_ context.Context, path string, flags int, installer string) error {
	if c.requestErr != nil {
		return c.requestErr
	}
	c.installs <- path
	return nil
}

func (c *fakeConn) DeletePackage(_ context.Context, packageName string, _ int) error {
	if c.requestErr != nil {
		return c.requestErr
	}
	c.installs <- packageName
	return nil
}

func (c *fakeConn) Results() <-chan types.PrivilegedResult { return c.results }
func (c *fakeConn) Done() <-chan struct{}                  { return c.done }

func (c *fakeConn) Close() error {
	close(c.closed)
	return nil
}

type fakeBinder struct {
	conn *fakeConn
	err  error
}

func (b fakeBinder) ExtensionInstalled(context.Context) (bool, error) { return b.conn != nil, nil }

func (b fakeBinder) Bind(context.Context) (ports.PrivilegedConn, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.conn, nil
}

type fakeSessions struct {
	mu        sync.Mutex
	nextID    int
	createErr error
	writeErr  error
	result    types.SessionResult
	abandoned []int
}

func (s *fakeSessions) Create(context.Context, string, int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.nextID++
	return s.nextID, nil
}

func (s *fakeSessions) Write(context.Context, int, string) error { return s.writeErr }

func (s *fakeSessions) Commit(_ context.Context, sessionID int) (types.SessionResult, error) {
	result := s.result
	result.SessionID = sessionID
	return result, nil
}

func (s *fakeSessions) Abandon(_ context.Context, sessionID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned = append(s.abandoned, sessionID)
	return nil
}

func (s *fakeSessions) Uninstall(context.Context, string) (types.SessionResult, error) {
	return s.result, nil
}

type fakeRegistry struct {
	mu    sync.Mutex
	owned map[int]string
}

func newFakeRegistry(stale ...int) *fakeRegistry {
	r := &fakeRegistry{owned: map[int]string{}}
	for _, id := range stale {
		r.owned[id] = "stale"
	}
	return r
}

func (r *fakeRegistry) RecordSession(_ context.Context, sessionID int, packageName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owned[sessionID] = packageName
	return nil
}

func (r *fakeRegistry) ForgetSession(_ context.Context, sessionID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.owned, sessionID)
	return nil
}

func (r *fakeRegistry) OwnedSessions(context.Context) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.owned))
	for id := range r.owned {
		out = append(out, id)
	}
	return out, nil
}

type fakeIntents struct {
	result types.IntentResult
	err    error
}

func (f fakeIntents) ViewPackage(context.Context, string, types.PackageInfo) (types.IntentResult, error) {
	return f.result, f.err
}

func (f fakeIntents) DeletePackage(context.Context, string) (types.IntentResult, error) {
	return f.result, f.err
}

var errUnavailable = errors.New("unavailable")
