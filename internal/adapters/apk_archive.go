package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/avast/apkverifier"
	"github.com/shogo82148/androidbinary/apk"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// ApkArchiveAdapter reads the binary manifest and signing block of an APK.
type ApkArchiveAdapter struct{}

func NewApkArchiveAdapter() ApkArchiveAdapter {
	return ApkArchiveAdapter{}
}

func (a ApkArchiveAdapter) Parse(ctx context.Context, path string) (types.PackageInfo, error) {
	pkg, err := apk.OpenFile(path)
	if err != nil {
		return types.PackageInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to open apk").
			WithCause(err)
	}
	defer pkg.Close()

	manifest := pkg.Manifest()
	info := types.PackageInfo{
		PackageName: manifest.Package.MustString(),
		VersionCode: int64(manifest.VersionCode.MustInt32()),
		VersionName: manifest.VersionName.MustString(),
		MinSDK:      manifest.SDK.Min.MustInt32(),
		TargetSDK:   manifest.SDK.Target.MustInt32(),
	}
	if info.PackageName == "" {
		return types.PackageInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("apk manifest has no package name")
	}
	for _, perm := range manifest.UsesPermissions {
		name := perm.Name.MustString()
		if name == "" {
			continue
		}
		info.RequestedPermissions = append(info.RequestedPermissions, types.RequestedPermission{
			Name:   name,
			MaxSDK: perm.Max.MustInt32(),
		})
	}
	return info, nil
}

// SignerFingerprint returns the hex SHA-256 of the best signing certificate
// (v3 over v2 over v1).
func (a ApkArchiveAdapter) SignerFingerprint(ctx context.Context, path string) (string, error) {
	res, err := apkverifier.Verify(path, nil)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("apk signature verification failed").
			WithCause(err)
	}
	_, cert := apkverifier.PickBestApkCert(res.SignerCerts)
	if cert == nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("apk has no usable signing certificate")
	}
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:]), nil
}

var _ ports.ArchivePort = ApkArchiveAdapter{}
