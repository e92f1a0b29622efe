package app

import (
	"context"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"apk-installer/internal/core"
	"apk-installer/internal/types"
)

func (s *Service) Install(ctx context.Context, req InstallRequest) (InstallResult, error) {
	url := strings.TrimSpace(req.URL)
	localPath := strings.TrimSpace(req.LocalPath)
	if url == "" && localPath == "" {
		return InstallResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("an artifact url or local path is required")
	}
	expected := req.Expected
	if localPath != "" && strings.TrimSpace(expected.PackageName) == "" {
		described, err := s.describeLocal(ctx, localPath)
		if err != nil {
			return InstallResult{}, err
		}
		expected = described
	}
	op, err := s.Tracker.Queue(ctx, types.InstallRequest{URL: url, LocalPath: localPath, Expected: expected})
	if err != nil {
		return InstallResult{}, err
	}
	if !req.Wait {
		return InstallResult{Operation: op}, nil
	}
	final, err := s.Tracker.Wait(ctx, op.ID)
	if err != nil {
		return InstallResult{Operation: op}, err
	}
	return InstallResult{Operation: final}, nil
}

// describeLocal builds the expected metadata of a sideloaded archive from
// the archive itself.
func (s *Service) describeLocal(ctx context.Context, path string) (types.ExpectedApk, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return types.ExpectedApk{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("artifact not found: " + path).
			WithCause(err)
	}
	info, err := s.Archive.Parse(ctx, path)
	if err != nil {
		return types.ExpectedApk{}, err
	}
	hash, err := core.FileHash(path, types.HashTypeSHA256)
	if err != nil {
		return types.ExpectedApk{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to hash artifact").
			WithCause(err)
	}
	return types.ExpectedApk{
		PackageName: info.PackageName,
		VersionCode: info.VersionCode,
		VersionName: info.VersionName,
		Permissions: info.PermissionNames(),
		TargetSDK:   info.TargetSDK,
		Hash:        hash,
		HashType:    types.HashTypeSHA256,
		Size:        stat.Size(),
	}, nil
}

func (s *Service) Uninstall(ctx context.Context, req UninstallRequest) (UninstallResult, error) {
	op, err := s.Tracker.QueueUninstall(ctx, types.UninstallRequest{PackageName: req.PackageName})
	if err != nil {
		return UninstallResult{}, err
	}
	if !req.Wait {
		return UninstallResult{Operation: op}, nil
	}
	final, err := s.Tracker.Wait(ctx, op.ID)
	if err != nil {
		return UninstallResult{Operation: op}, err
	}
	return UninstallResult{Operation: final}, nil
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.Tracker.Cancel(ctx, id)
}

func (s *Service) Active() []types.Operation {
	return s.Tracker.Active()
}
