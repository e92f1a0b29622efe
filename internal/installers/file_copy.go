package installers

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// FileCopyInstaller "installs" non-APK artifacts by copying them into a
// target directory, keyed by package name.
type FileCopyInstaller struct {
	Dir string
	out signaller
}

func NewFileCopyInstaller(dir string, sink ports.SignalSink) FileCopyInstaller {
	return FileCopyInstaller{Dir: dir, out: newSignaller(sink)}
}

func (i FileCopyInstaller) Kind() types.InstallerKind { return types.InstallerFileCopy }

func (i FileCopyInstaller) SupportsUnattended() bool { return true }

func (i FileCopyInstaller) SupportsDurableReference() bool { return true }

func (i FileCopyInstaller) Install(ctx context.Context, staged types.StagedFile, op types.OperationContext) error {
	if strings.TrimSpace(i.Dir) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("file copy directory is not configured")
	}
	if err := os.MkdirAll(i.Dir, 0o755); err != nil {
		i.out.interrupted(types.OperationKindInstall, op, "creating target directory failed: "+err.Error())
		return nil
	}
	dest := filepath.Join(i.Dir, op.PackageName+"-"+filepath.Base(staged.Source))
	if err := copyFile(staged.Path, dest); err != nil {
		i.out.interrupted(types.OperationKindInstall, op, "copying file failed: "+err.Error())
		return nil
	}
	i.out.complete(types.OperationKindInstall, op)
	return nil
}

func (i FileCopyInstaller) Uninstall(ctx context.Context, packageName string, op types.OperationContext) error {
	matches, err := filepath.Glob(filepath.Join(i.Dir, packageName+"-*"))
	if err != nil {
		i.out.interrupted(types.OperationKindUninstall, op, err.Error())
		return nil
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			i.out.interrupted(types.OperationKindUninstall, op, "removing file failed: "+err.Error())
			return nil
		}
	}
	i.out.complete(types.OperationKindUninstall, op)
	return nil
}

func copyFile(src string, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var _ ports.InstallerPort = FileCopyInstaller{}
