package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindVerification      ErrorKind = "verification"
	ErrorKindPlatform          ErrorKind = "platform_incompatible"
	ErrorKindPrivilegedChannel ErrorKind = "privileged_channel"
	ErrorKindUserCancelled     ErrorKind = "user_cancelled"
	ErrorKindInstaller         ErrorKind = "installer_error"
)

// InstallError classifies a failed install or uninstall step. ReturnCode is
// the raw code reported by the OS or shell when there is one.
type InstallError struct {
	Kind       ErrorKind
	Msg        string
	ReturnCode int
	HasCode    bool
	Err        error
}

func (e *InstallError) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

func NewVerificationError(msg string) *InstallError {
	return &InstallError{Kind: ErrorKindVerification, Msg: msg}
}

func NewPlatformError(msg string, cause error) *InstallError {
	return &InstallError{Kind: ErrorKindPlatform, Msg: msg, Err: cause}
}

func NewPrivilegedChannelError(msg string, cause error) *InstallError {
	return &InstallError{Kind: ErrorKindPrivilegedChannel, Msg: msg, Err: cause}
}

func NewInstallerError(code int, msg string) *InstallError {
	return &InstallError{Kind: ErrorKindInstaller, Msg: msg, ReturnCode: code, HasCode: true}
}

var ErrUserCancelled = &InstallError{Kind: ErrorKindUserCancelled}

// KindOf returns the InstallError kind in err's chain, or the empty kind.
func KindOf(err error) ErrorKind {
	var installErr *InstallError
	if errors.As(err, &installErr) {
		return installErr.Kind
	}
	return ""
}
