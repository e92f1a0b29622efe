package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// ApkVerifier checks a parsed archive against the repository's declared
// identity. Checks run in a fixed order and stop at the first failure.
type ApkVerifier struct {
	Archive ports.ArchivePort
	// ExtensionPackage and ExtensionSigner pin the signing certificate of
	// the privileged helper so it cannot be replaced by a lookalike.
	ExtensionPackage string
	ExtensionSigner  string
}

func NewApkVerifier(archive ports.ArchivePort, extensionPackage string, extensionSigner string) ApkVerifier {
	return ApkVerifier{
		Archive:          archive,
		ExtensionPackage: strings.TrimSpace(extensionPackage),
		ExtensionSigner:  normalizeFingerprint(extensionSigner),
	}
}

func (v ApkVerifier) Verify(ctx context.Context, path string, expected types.ExpectedApk) (types.PackageInfo, error) {
	info, err := v.Archive.Parse(ctx, path)
	if err != nil {
		return types.PackageInfo{}, &types.InstallError{
			Kind: types.ErrorKindVerification,
			Msg:  "parsing apk file failed",
			Err:  err,
		}
	}
	if info.PackageName != expected.PackageName {
		return info, types.NewVerificationError(fmt.Sprintf("apk has unexpected packageName %q, want %q", info.PackageName, expected.PackageName))
	}
	if info.VersionCode < 0 {
		return info, types.NewVerificationError("apk has no valid versionCode")
	}
	if missing := undeclaredPermissions(info, expected.Permissions); len(missing) > 0 {
		return info, types.NewVerificationError("apk requests permissions not declared by the repository: " + strings.Join(missing, ", "))
	}
	if expected.TargetSDK == types.TargetSDKUnknown {
		log.Ctx(ctx).Warn().Str("package", info.PackageName).Msg("repository did not declare targetSdkVersion, skipping check")
	} else if info.TargetSDK != expected.TargetSDK {
		return info, types.NewVerificationError(fmt.Sprintf("apk has unexpected targetSdkVersion %d, want %d", info.TargetSDK, expected.TargetSDK))
	}
	if err := v.verifySigner(ctx, path, &info, expected); err != nil {
		return info, err
	}
	return info, nil
}

func (v ApkVerifier) verifySigner(ctx context.Context, path string, info *types.PackageInfo, expected types.ExpectedApk) error {
	want := normalizeFingerprint(expected.SignerFingerprint)
	if v.ExtensionPackage != "" && info.PackageName == v.ExtensionPackage && v.ExtensionSigner != "" {
		want = v.ExtensionSigner
	}
	if want == "" {
		return nil
	}
	got, err := v.Archive.SignerFingerprint(ctx, path)
	if err != nil {
		return &types.InstallError{Kind: types.ErrorKindVerification, Msg: "reading apk signature failed", Err: err}
	}
	info.SignerFingerprint = normalizeFingerprint(got)
	if info.SignerFingerprint != want {
		return types.NewVerificationError("apk signer does not match the expected certificate")
	}
	return nil
}

// undeclaredPermissions returns requested permissions missing from the
// declared set. A candidate requesting fewer permissions than declared is
// fine: parsers drop entries gated by maxSdkVersion.
func undeclaredPermissions(info types.PackageInfo, declared []string) []string {
	allowed := make(map[string]struct{}, len(declared))
	for _, name := range declared {
		allowed[strings.TrimSpace(name)] = struct{}{}
	}
	var missing []string
	for _, perm := range info.RequestedPermissions {
		if _, ok := allowed[perm.Name]; !ok {
			missing = append(missing, perm.Name)
		}
	}
	return missing
}

func normalizeFingerprint(value string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), ":", ""))
}
