package adapters

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// privilegedMessage is one newline-delimited JSON frame on the helper socket.
// Requests carry an ID that the matching reply echoes; install and delete
// results arrive later as unsolicited "result" frames.
type privilegedMessage struct {
	ID          uint64 `json:"id,omitempty"`
	Method      string `json:"method"`
	Path        string `json:"path,omitempty"`
	PackageName string `json:"package_name,omitempty"`
	Flags       int    `json:"flags,omitempty"`
	Installer   string `json:"installer,omitempty"`
	Granted     bool   `json:"granted,omitempty"`
	ReturnCode  int    `json:"return_code,omitempty"`
	Error       string `json:"error,omitempty"`
}

const (
	privilegedMethodHasPermissions = "has_privileged_permissions"
	privilegedMethodInstall        = "install_package"
	privilegedMethodDelete         = "delete_package"
	privilegedMethodResult         = "result"
)

// PrivilegedBinderAdapter connects to the privileged extension over a unix
// socket exposed by the helper package.
type PrivilegedBinderAdapter struct {
	Packages         ports.InstalledPackagesPort
	ExtensionPackage string
	SocketPath       string
}

func NewPrivilegedBinderAdapter(packages ports.InstalledPackagesPort, extensionPackage string, socketPath string) PrivilegedBinderAdapter {
	return PrivilegedBinderAdapter{
		Packages:         packages,
		ExtensionPackage: strings.TrimSpace(extensionPackage),
		SocketPath:       strings.TrimSpace(socketPath),
	}
}

func (a PrivilegedBinderAdapter) ExtensionInstalled(ctx context.Context) (bool, error) {
	if a.ExtensionPackage == "" || a.SocketPath == "" {
		return false, nil
	}
	if a.Packages == nil {
		return false, nil
	}
	info, err := a.Packages.InstalledPackage(ctx, a.ExtensionPackage)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

func (a PrivilegedBinderAdapter) Bind(ctx context.Context) (ports.PrivilegedConn, error) {
	if a.SocketPath == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("privileged extension socket is not configured")
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", a.SocketPath)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("failed to connect to privileged extension").
			WithCause(err)
	}
	return newPrivilegedConn(conn), nil
}

type privilegedConn struct {
	conn    net.Conn
	enc     *json.Encoder
	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	replies map[uint64]chan privilegedMessage

	results chan types.PrivilegedResult
	done    chan struct{}
	close   sync.Once
}

func newPrivilegedConn(conn net.Conn) *privilegedConn {
	c := &privilegedConn{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		replies: map[uint64]chan privilegedMessage{},
		results: make(chan types.PrivilegedResult, 4),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *privilegedConn) readLoop() {
	defer c.shutdown()
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		var msg privilegedMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			log.Warn().Err(err).Msg("malformed frame from privileged extension")
			continue
		}
		if msg.Method == privilegedMethodResult {
			select {
			case c.results <- types.PrivilegedResult{PackageName: msg.PackageName, ReturnCode: msg.ReturnCode}:
			case <-c.done:
				return
			}
			continue
		}
		c.mu.Lock()
		reply, ok := c.replies[msg.ID]
		delete(c.replies, msg.ID)
		c.mu.Unlock()
		if ok {
			reply <- msg
		}
	}
}

func (c *privilegedConn) shutdown() {
	c.close.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *privilegedConn) call(ctx context.Context, msg privilegedMessage) (privilegedMessage, error) {
	reply := make(chan privilegedMessage, 1)
	c.mu.Lock()
	c.nextID++
	msg.ID = c.nextID
	c.replies[msg.ID] = reply
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.enc.Encode(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(msg.ID)
		return privilegedMessage{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write to privileged extension").
			WithCause(err)
	}
	select {
	case <-ctx.Done():
		c.forget(msg.ID)
		return privilegedMessage{}, ctx.Err()
	case <-c.done:
		return privilegedMessage{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("privileged extension disconnected")
	case resp := <-reply:
		if resp.Error != "" {
			return resp, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("privileged extension: " + resp.Error)
		}
		return resp, nil
	}
}

func (c *privilegedConn) forget(id uint64) {
	c.mu.Lock()
	delete(c.replies, id)
	c.mu.Unlock()
}

func (c *privilegedConn) HasPrivilegedPermissions(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, privilegedMessage{Method: privilegedMethodHasPermissions})
	if err != nil {
		return false, err
	}
	return resp.Granted, nil
}

func (c *privilegedConn) InstallPackage(ctx context.Context, path string, flags int, installer string) error {
	_, err := c.call(ctx, privilegedMessage{Method: privilegedMethodInstall, Path: path, Flags: flags, Installer: installer})
	return err
}

func (c *privilegedConn) DeletePackage(ctx context.Context, packageName string, flags int) error {
	_, err := c.call(ctx, privilegedMessage{Method: privilegedMethodDelete, PackageName: packageName, Flags: flags})
	return err
}

func (c *privilegedConn) Results() <-chan types.PrivilegedResult { return c.results }

func (c *privilegedConn) Done() <-chan struct{} { return c.done }

func (c *privilegedConn) Close() error {
	c.shutdown()
	return nil
}

var (
	_ ports.PrivilegedBinderPort = PrivilegedBinderAdapter{}
	_ ports.PrivilegedConn       = (*privilegedConn)(nil)
)
