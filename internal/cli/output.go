package cli

import (
	"fmt"
	"io"

	"github.com/gookit/color"
	"github.com/schollz/progressbar/v3"

	"apk-installer/internal/types"
)

// eventPrinter renders lifecycle events for one terminal session.
type eventPrinter struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func newEventPrinter(out io.Writer) *eventPrinter {
	return &eventPrinter{out: out}
}

func (p *eventPrinter) Print(event types.Event) {
	switch event.Action {
	case types.ActionDownloadStarted:
		fmt.Fprintf(p.out, "%s %s\n", color.Cyan.Sprint("download"), event.ID)
	case types.ActionDownloadProgress:
		p.progress(event.BytesRead, event.TotalBytes)
	case types.ActionDownloadComplete:
		p.finishBar()
	case types.ActionInstallStarted, types.ActionUninstallStarted:
		p.finishBar()
		fmt.Fprintf(p.out, "%s %s via %s\n", color.Cyan.Sprint(verb(event.Action)), event.PackageName, event.Installer)
	case types.ActionInstallUserInteraction, types.ActionUninstallUserInteraction:
		fmt.Fprintf(p.out, "%s %s\n", color.Yellow.Sprint("waiting for confirmation"), event.PackageName)
	case types.ActionInstallComplete, types.ActionUninstallComplete:
		p.finishBar()
		fmt.Fprintf(p.out, "%s %s %s\n", color.Green.Sprint(string(event.Status)), event.PackageName, versionText(event))
	case types.ActionInstallInterrupted, types.ActionUninstallInterrupted:
		p.finishBar()
		if event.ErrorMessage == "" {
			fmt.Fprintf(p.out, "%s %s\n", color.Yellow.Sprint("cancelled"), event.PackageName)
			return
		}
		fmt.Fprintf(p.out, "%s %s: %s\n", color.Red.Sprint("failed"), event.PackageName, event.ErrorMessage)
	}
}

func (p *eventPrinter) progress(read int64, total int64) {
	if p.bar == nil {
		limit := total
		if limit <= 0 {
			limit = -1
		}
		p.bar = progressbar.NewOptions64(limit,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionClearOnFinish(),
		)
	}
	if total > 0 && p.bar.GetMax64() != total {
		p.bar.ChangeMax64(total)
	}
	_ = p.bar.Set64(read)
}

func (p *eventPrinter) finishBar() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

func verb(action types.Action) string {
	if action.Kind() == types.OperationKindUninstall {
		return "uninstall"
	}
	return "install"
}

func versionText(event types.Event) string {
	if event.VersionName != "" {
		return event.VersionName
	}
	if event.VersionCode != 0 {
		return fmt.Sprintf("(%d)", event.VersionCode)
	}
	return ""
}

// operationError turns a terminal operation into the command's error.
func operationError(op types.Operation) error {
	if op.Status != types.StatusInterrupted {
		return nil
	}
	if op.LastError == "" {
		return types.ErrUserCancelled
	}
	return &types.InstallError{Kind: types.ErrorKindInstaller, Msg: op.LastError}
}
