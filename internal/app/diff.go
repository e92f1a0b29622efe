package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

// PermissionDiff compares an archive against the installed version of the
// same package on the current device.
func (s *Service) PermissionDiff(ctx context.Context, req DiffRequest) (DiffResult, error) {
	path := strings.TrimSpace(req.ApkPath)
	if path == "" {
		return DiffResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("apk path is required")
	}
	candidate, err := s.Archive.Parse(ctx, path)
	if err != nil {
		return DiffResult{}, err
	}
	installed, err := s.Packages.InstalledPackage(ctx, candidate.PackageName)
	if err != nil {
		return DiffResult{}, err
	}
	device, err := s.Device.DeviceInfo(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to read device info")
	}
	return DiffResult{
		Candidate: candidate,
		Installed: installed,
		Diff:      s.Diff.Diff(candidate, installed, device.SDK),
	}, nil
}
