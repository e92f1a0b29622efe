package adapters

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"

	"apk-installer/internal/ports"
)

// SuShellAdapter opens an interactive su shell, locally or through adb.
type SuShellAdapter struct {
	Runner CommandRunnerAdapter
	SuPath string
}

func NewSuShellAdapter(runner CommandRunnerAdapter, suPath string) SuShellAdapter {
	if strings.TrimSpace(suPath) == "" {
		suPath = "su"
	}
	return SuShellAdapter{Runner: runner, SuPath: suPath}
}

func (a SuShellAdapter) Open(ctx context.Context) (ports.ShellSession, error) {
	program, argv := a.Runner.Command(a.SuPath)
	cmd := exec.Command(program, argv...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open su stdin").
			WithCause(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open su stdout").
			WithCause(err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("su is not available").
			WithCause(err)
	}
	session := &suSession{cmd: cmd, stdin: stdin, reader: bufio.NewReader(stdout)}
	if _, _, err := session.Run(ctx, "true"); err != nil {
		_ = session.Close()
		return nil, errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg("root access was not granted").
			WithCause(err)
	}
	return session, nil
}

type suSession struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	closed bool
}

type lineResult struct {
	line string
	err  error
}

// Run writes command followed by an echo of a unique marker and its exit
// status, then reads output until the marker appears.
func (s *suSession) Run(ctx context.Context, command string) (int, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1, "", fmt.Errorf("shell session is closed")
	}
	marker := "__APK_INSTALLER_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "__"
	if _, err := fmt.Fprintf(s.stdin, "%s\necho %s$?\n", command, marker); err != nil {
		return -1, "", err
	}

	lines := make(chan lineResult, 1)
	var output strings.Builder
	for {
		go func() {
			line, err := s.reader.ReadString('\n')
			lines <- lineResult{line: line, err: err}
		}()
		select {
		case <-ctx.Done():
			s.kill()
			return -1, output.String(), ctx.Err()
		case res := <-lines:
			if idx := strings.Index(res.line, marker); idx >= 0 {
				output.WriteString(res.line[:idx])
				code, err := strconv.Atoi(strings.TrimSpace(res.line[idx+len(marker):]))
				if err != nil {
					return -1, output.String(), fmt.Errorf("unreadable exit status: %w", err)
				}
				return code, output.String(), nil
			}
			output.WriteString(res.line)
			if res.err != nil {
				return -1, output.String(), fmt.Errorf("shell exited: %w", res.err)
			}
		}
	}
}

func (s *suSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = io.WriteString(s.stdin, "exit\n")
	_ = s.stdin.Close()
	return s.cmd.Wait()
}

func (s *suSession) kill() {
	s.closed = true
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
}

var _ ports.RootShellPort = SuShellAdapter{}
