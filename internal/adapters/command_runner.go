package adapters

import (
	"bytes"
	"context"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"apk-installer/internal/ports"
	"apk-installer/internal/shared"
)

type Transport string

const (
	TransportLocal Transport = "local"
	TransportADB   Transport = "adb"
)

const (
	defaultCommandTimeout = 2 * time.Minute
	deviceStagingDir      = "/data/local/tmp/apk-installer"
)

// CommandRunnerAdapter runs device commands either directly (when running on
// the device) or through adb shell. Commands for one serial are serialized.
type CommandRunnerAdapter struct {
	Transport Transport
	ADBPath   string
	Serial    string
	Timeout   time.Duration
	locks     *sync.Map
}

func NewCommandRunnerAdapter(transport string, adbPath string, serial string, timeout time.Duration) CommandRunnerAdapter {
	mode := Transport(strings.ToLower(strings.TrimSpace(transport)))
	if mode != TransportADB {
		mode = TransportLocal
	}
	if strings.TrimSpace(adbPath) == "" {
		adbPath = "adb"
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return CommandRunnerAdapter{
		Transport: mode,
		ADBPath:   adbPath,
		Serial:    strings.TrimSpace(serial),
		Timeout:   timeout,
		locks:     &sync.Map{},
	}
}

func (a CommandRunnerAdapter) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	if strings.TrimSpace(name) == "" {
		return "", "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("command is empty")
	}
	unlock := a.lock()
	defer unlock()

	runCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()
	program, argv := a.Command(name, args...)
	cmd := exec.CommandContext(runCtx, program, argv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), stderr.String(), errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("device command failed: " + name).
			WithCause(shared.CommandError(stderr.Bytes(), err))
	}
	return stdout.String(), stderr.String(), nil
}

// Command returns the program and arguments that execute name on the device.
func (a CommandRunnerAdapter) Command(name string, args ...string) (string, []string) {
	if a.Transport != TransportADB {
		return name, args
	}
	argv := make([]string, 0, len(args)+4)
	if a.Serial != "" {
		argv = append(argv, "-s", a.Serial)
	}
	argv = append(argv, "shell", name)
	for _, arg := range args {
		argv = append(argv, shared.ShellQuote(arg))
	}
	return a.ADBPath, argv
}

// Push copies localPath to the device staging directory over adb.
func (a CommandRunnerAdapter) Push(ctx context.Context, localPath string) (string, error) {
	if a.Transport != TransportADB {
		return localPath, nil
	}
	devicePath := path.Join(deviceStagingDir, filepath.Base(localPath))
	if _, _, err := a.Run(ctx, "mkdir", "-p", deviceStagingDir); err != nil {
		return "", err
	}
	unlock := a.lock()
	defer unlock()
	runCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()
	argv := []string{}
	if a.Serial != "" {
		argv = append(argv, "-s", a.Serial)
	}
	argv = append(argv, "push", localPath, devicePath)
	output, err := exec.CommandContext(runCtx, a.ADBPath, argv...).CombinedOutput()
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("adb push failed").
			WithCause(shared.CommandError(output, err))
	}
	return devicePath, nil
}

func (a CommandRunnerAdapter) Remove(ctx context.Context, devicePath string) error {
	if a.Transport != TransportADB {
		return nil
	}
	_, _, err := a.Run(ctx, "rm", "-f", devicePath)
	return err
}

func (a CommandRunnerAdapter) lock() func() {
	if a.locks == nil {
		return func() {}
	}
	value, _ := a.locks.LoadOrStore(a.Serial, &sync.Mutex{})
	mutex := value.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

var (
	_ ports.CommandRunner   = CommandRunnerAdapter{}
	_ ports.DeviceFilesPort = CommandRunnerAdapter{}
)
