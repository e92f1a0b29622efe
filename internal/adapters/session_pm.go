package adapters

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

var (
	pmSessionCreated = regexp.MustCompile(`\[(\d+)\]`)
	pmFailure        = regexp.MustCompile(`Failure \[([A-Z0-9_]+)(?::\s*([^\]]*))?\]`)
)

// SessionPMAdapter drives staged install sessions through the `pm
// install-create / install-write / install-commit` shell commands.
type SessionPMAdapter struct {
	Runner ports.CommandRunner
	Files  ports.DeviceFilesPort
}

func NewSessionPMAdapter(runner ports.CommandRunner, files ports.DeviceFilesPort) SessionPMAdapter {
	return SessionPMAdapter{Runner: runner, Files: files}
}

func (a SessionPMAdapter) Create(ctx context.Context, packageName string, size int64) (int, error) {
	args := []string{"install-create", "-r"}
	if packageName != "" {
		args = append(args, "--pkg", packageName)
	}
	if size > 0 {
		args = append(args, "-S", strconv.FormatInt(size, 10))
	}
	out, _, err := a.Runner.Run(ctx, "pm", args...)
	if err != nil {
		return 0, err
	}
	match := pmSessionCreated.FindStringSubmatch(out)
	if !strings.Contains(out, "Success") || match == nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("unexpected install-create output: " + strings.TrimSpace(out))
	}
	id, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("invalid session id").
			WithCause(err)
	}
	return id, nil
}

func (a SessionPMAdapter) Write(ctx context.Context, sessionID int, path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("staged file is missing").
			WithCause(err)
	}
	devicePath := path
	if a.Files != nil {
		devicePath, err = a.Files.Push(ctx, path)
		if err != nil {
			return err
		}
		defer a.Files.Remove(ctx, devicePath)
	}
	out, _, err := a.Runner.Run(ctx, "pm", "install-write", "-S", strconv.FormatInt(stat.Size(), 10),
		strconv.Itoa(sessionID), "base.apk", devicePath)
	if err != nil {
		return err
	}
	if !strings.Contains(out, "Success") {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("unexpected install-write output: " + strings.TrimSpace(out))
	}
	return nil
}

func (a SessionPMAdapter) Commit(ctx context.Context, sessionID int) (types.SessionResult, error) {
	out, stderr, err := a.Runner.Run(ctx, "pm", "install-commit", strconv.Itoa(sessionID))
	return pmSessionResult(sessionID, out+stderr, err)
}

func (a SessionPMAdapter) Abandon(ctx context.Context, sessionID int) error {
	_, _, err := a.Runner.Run(ctx, "pm", "install-abandon", strconv.Itoa(sessionID))
	return err
}

func (a SessionPMAdapter) Uninstall(ctx context.Context, packageName string) (types.SessionResult, error) {
	out, stderr, err := a.Runner.Run(ctx, "pm", "uninstall", packageName)
	return pmSessionResult(0, out+stderr, err)
}

// pmSessionResult maps pm output to a session status. pm exits non-zero on
// failure, so a run error with a "Failure [...]" line is a result, not an
// error.
func pmSessionResult(sessionID int, output string, runErr error) (types.SessionResult, error) {
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "Success" {
			return types.SessionResult{SessionID: sessionID, Status: types.SessionStatusSuccess}, nil
		}
	}
	match := pmFailure.FindStringSubmatch(output)
	if match == nil {
		if runErr != nil {
			return types.SessionResult{}, runErr
		}
		return types.SessionResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("unexpected pm output: " + strings.TrimSpace(output))
	}
	message := match[1]
	if detail := strings.TrimSpace(match[2]); detail != "" {
		message += ": " + detail
	}
	return types.SessionResult{SessionID: sessionID, Status: sessionStatusFor(match[1]), Message: message}, nil
}

func sessionStatusFor(code string) types.SessionStatus {
	switch {
	case code == "INSTALL_FAILED_ABORTED":
		return types.SessionStatusFailureAborted
	case code == "INSTALL_FAILED_INSUFFICIENT_STORAGE":
		return types.SessionStatusFailureStorage
	case code == "INSTALL_FAILED_ALREADY_EXISTS",
		code == "INSTALL_FAILED_UPDATE_INCOMPATIBLE",
		code == "INSTALL_FAILED_DUPLICATE_PACKAGE",
		code == "INSTALL_FAILED_CONFLICTING_PROVIDER",
		code == "INSTALL_FAILED_VERSION_DOWNGRADE":
		return types.SessionStatusFailureConflict
	case code == "INSTALL_FAILED_OLDER_SDK",
		code == "INSTALL_FAILED_NEWER_SDK",
		code == "INSTALL_FAILED_CPU_ABI_INCOMPATIBLE",
		code == "INSTALL_FAILED_MISSING_SHARED_LIBRARY",
		code == "INSTALL_FAILED_MISSING_FEATURE":
		return types.SessionStatusFailureIncompat
	case code == "INSTALL_FAILED_USER_RESTRICTED",
		code == "INSTALL_FAILED_VERIFICATION_FAILURE",
		code == "DELETE_FAILED_DEVICE_POLICY_MANAGER",
		code == "DELETE_FAILED_OWNER_BLOCKED":
		return types.SessionStatusFailureBlocked
	case code == "INSTALL_FAILED_INVALID_APK",
		strings.HasPrefix(code, "INSTALL_PARSE_FAILED_"):
		return types.SessionStatusFailureInvalid
	default:
		return types.SessionStatusFailure
	}
}

var _ ports.SessionPort = SessionPMAdapter{}
