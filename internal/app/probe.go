package app

import (
	"context"
	"strings"

	"apk-installer/internal/core"
	"apk-installer/internal/types"
)

// Probe reports which strategies would be used for an artifact right now.
func (s *Service) Probe(ctx context.Context, req ProbeRequest) types.InstallerCapability {
	path := strings.TrimSpace(req.ArtifactPath)
	isApk := path == "" || strings.HasSuffix(strings.ToLower(path), ".apk")
	target := req.TargetSDK
	if target == 0 {
		target = types.TargetSDKUnknown
	}
	return s.Factory.Probe(ctx, core.ProbeRequest{IsApk: isApk, TargetSDK: target})
}
