package adapters

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gookit/color"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// ResumeFunc hands a confirmation answer back to the tracker.
type ResumeFunc func(token string, accepted bool) error

// PromptConfirmationAdapter asks on a terminal. Anything but y/yes declines.
type PromptConfirmationAdapter struct {
	In     io.Reader
	Out    io.Writer
	Resume ResumeFunc

	mu     sync.Mutex
	reader *bufio.Reader
}

func NewPromptConfirmationAdapter(in io.Reader, out io.Writer) *PromptConfirmationAdapter {
	return &PromptConfirmationAdapter{In: in, Out: out}
}

func (a *PromptConfirmationAdapter) RequestInstallConfirmation(ctx context.Context, token string, op types.Operation, diff types.PermissionDiff) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if diff.FreshInstall {
		fmt.Fprintf(a.Out, "%s %s (%s)\n", color.Bold.Sprint("Install"), op.PackageName, versionLabel(op))
	} else {
		fmt.Fprintf(a.Out, "%s %s to %s\n", color.Bold.Sprint("Update"), op.PackageName, versionLabel(op))
	}
	writePermissionGroups(a.Out, "Personal", diff.Personal)
	writePermissionGroups(a.Out, "Device", diff.Device)
	return a.ask(ctx, token, "Continue? [y/N] ")
}

func (a *PromptConfirmationAdapter) RequestUninstallConfirmation(ctx context.Context, token string, op types.Operation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.Out, "%s %s\n", color.Bold.Sprint("Uninstall"), op.PackageName)
	return a.ask(ctx, token, "Continue? [y/N] ")
}

func (a *PromptConfirmationAdapter) ask(ctx context.Context, token string, prompt string) error {
	if a.Resume == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("confirmation prompt is not connected")
	}
	if a.reader == nil {
		a.reader = bufio.NewReader(a.In)
	}
	fmt.Fprint(a.Out, prompt)

	answer := make(chan string, 1)
	go func() {
		line, _ := a.reader.ReadString('\n')
		answer <- line
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case line := <-answer:
		reply := strings.ToLower(strings.TrimSpace(line))
		return a.Resume(token, reply == "y" || reply == "yes")
	}
}

func writePermissionGroups(out io.Writer, title string, groups []types.PermissionGroup) {
	if len(groups) == 0 {
		return
	}
	fmt.Fprintf(out, "  %s\n", color.Yellow.Sprint(title))
	for _, group := range groups {
		fmt.Fprintf(out, "    %s: %s\n", group.Name, strings.Join(group.Permissions, ", "))
	}
}

func versionLabel(op types.Operation) string {
	if op.VersionName != "" {
		return op.VersionName
	}
	return fmt.Sprintf("%d", op.VersionCode)
}

// AutoConfirmationAdapter accepts every request; used for non-interactive runs.
type AutoConfirmationAdapter struct {
	Resume ResumeFunc
}

func (a *AutoConfirmationAdapter) RequestInstallConfirmation(_ context.Context, token string, _ types.Operation, _ types.PermissionDiff) error {
	return a.Resume(token, true)
}

func (a *AutoConfirmationAdapter) RequestUninstallConfirmation(_ context.Context, token string, _ types.Operation) error {
	return a.Resume(token, true)
}

var (
	_ ports.ConfirmationPort = (*PromptConfirmationAdapter)(nil)
	_ ports.ConfirmationPort = (*AutoConfirmationAdapter)(nil)
)
