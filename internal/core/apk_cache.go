package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/shared"
	"apk-installer/internal/types"
)

const DefaultStagingRetention = 20 * time.Minute

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// ApkCache owns the download cache layout and the private staging area.
// Staged copies are deleted on Release or after Retention, whichever comes
// first.
type ApkCache struct {
	CacheDir   string
	StagingDir string
	Retention  time.Duration
	Verifier   ports.VerifierPort

	mu     *sync.Mutex
	timers map[string]*time.Timer
}

func NewApkCache(cacheDir string, stagingDir string, retention time.Duration, verifier ports.VerifierPort) ApkCache {
	if retention <= 0 {
		retention = DefaultStagingRetention
	}
	return ApkCache{
		CacheDir:   cacheDir,
		StagingDir: stagingDir,
		Retention:  retention,
		Verifier:   verifier,
		mu:         &sync.Mutex{},
		timers:     map[string]*time.Timer{},
	}
}

// DownloadPath maps a source URL to <cache>/apks/<host>[-<port>]/<file>.
func (c ApkCache) DownloadPath(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid download url: " + rawURL)
	}
	hostDir := parsed.Hostname()
	if port := parsed.Port(); port != "" {
		hostDir = hostDir + "-" + port
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("download url has no file name: " + rawURL)
	}
	return filepath.Join(c.CacheDir, "apks", sanitizeName(hostDir), sanitizeName(name)), nil
}

// CacheState classifies a previously downloaded file. A file shorter than the
// expected size is a resumable partial download.
func (c ApkCache) CacheState(filePath string, expected types.ExpectedApk) (types.CacheState, error) {
	stat, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return types.CacheStateMissOrPartial, nil
	}
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to stat cached file").
			WithCause(err)
	}
	if expected.Size > 0 && stat.Size() < expected.Size {
		return types.CacheStateMissOrPartial, nil
	}
	if expected.Size > 0 && stat.Size() > expected.Size {
		return types.CacheStateCorrupted, nil
	}
	if strings.TrimSpace(expected.Hash) == "" {
		return types.CacheStateMissOrPartial, nil
	}
	var digest string
	err = shared.WithSharedLock(filePath, func() error {
		var hashErr error
		digest, hashErr = FileHash(filePath, expected.HashType)
		return hashErr
	})
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to hash cached file").
			WithCause(err)
	}
	if hashEqual(digest, expected.Hash) {
		return types.CacheStateCached, nil
	}
	return types.CacheStateCorrupted, nil
}

// Stage copies sourcePath into the private staging directory, verifies the
// copy and checks its hash. On any failure the staged copy is removed; on a
// hash mismatch a source inside the download cache is removed too.
func (c ApkCache) Stage(ctx context.Context, sourcePath string, expected types.ExpectedApk) (types.StagedFile, error) {
	if strings.TrimSpace(expected.Hash) == "" {
		return types.StagedFile{}, types.NewVerificationError("expected hash is empty")
	}
	h, err := newHasher(expected.HashType)
	if err != nil {
		return types.StagedFile{}, err
	}
	if err := os.MkdirAll(c.StagingDir, 0o700); err != nil {
		return types.StagedFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create staging directory").
			WithCause(err)
	}
	isApk := strings.HasSuffix(strings.ToLower(sourcePath), ".apk")
	dest := filepath.Join(c.StagingDir, stagedName(sourcePath, expected, isApk))

	err = shared.WithSharedLock(sourcePath, func() error {
		return copyInto(dest, sourcePath, h)
	})
	if err != nil {
		_ = os.Remove(dest)
		return types.StagedFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to copy file into staging").
			WithCause(err)
	}
	staged := types.StagedFile{
		Path:     dest,
		Source:   sourcePath,
		Hash:     hex.EncodeToString(h.Sum(nil)),
		HashType: expected.HashType,
		IsApk:    isApk,
	}

	if isApk && c.Verifier != nil {
		info, err := c.Verifier.Verify(ctx, dest, expected)
		if err != nil {
			_ = os.Remove(dest)
			return types.StagedFile{}, err
		}
		staged.Info = info
	} else {
		staged.Info = types.PackageInfo{
			PackageName: expected.PackageName,
			VersionCode: expected.VersionCode,
			VersionName: expected.VersionName,
		}
	}

	if !hashEqual(staged.Hash, expected.Hash) {
		_ = os.Remove(dest)
		if c.owns(sourcePath) {
			_ = os.Remove(sourcePath)
		}
		log.Ctx(ctx).Warn().
			Str("source", sourcePath).
			Str("want", expected.Hash).
			Str("got", staged.Hash).
			Msg("staged file hash mismatch")
		return types.StagedFile{}, types.NewVerificationError("hash of staged file does not match the expected hash")
	}

	c.scheduleRemoval(dest)
	return staged, nil
}

// Release deletes a staged copy immediately.
func (c ApkCache) Release(staged types.StagedFile) {
	if staged.Path == "" {
		return
	}
	c.mu.Lock()
	if timer, ok := c.timers[staged.Path]; ok {
		timer.Stop()
		delete(c.timers, staged.Path)
	}
	c.mu.Unlock()
	if err := os.Remove(staged.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", staged.Path).Msg("failed to remove staged file")
	}
}

func (c ApkCache) scheduleRemoval(filePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[filePath]; ok {
		timer.Stop()
	}
	c.timers[filePath] = time.AfterFunc(c.Retention, func() {
		c.mu.Lock()
		delete(c.timers, filePath)
		c.mu.Unlock()
		if err := os.Remove(filePath); err == nil {
			log.Debug().Str("path", filePath).Msg("staged file retention expired")
		}
	})
}

// owns reports whether filePath lives in the download cache.
func (c ApkCache) owns(filePath string) bool {
	if c.CacheDir == "" {
		return false
	}
	rel, err := filepath.Rel(c.CacheDir, filePath)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func copyInto(dest string, source string, h io.Writer) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp := dest + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func stagedName(sourcePath string, expected types.ExpectedApk, isApk bool) string {
	if isApk && expected.PackageName != "" {
		version := expected.VersionName
		if version == "" {
			version = fmt.Sprintf("%d", expected.VersionCode)
		}
		return sanitizeName(expected.PackageName + "-" + version + ".apk")
	}
	return sanitizeName(filepath.Base(sourcePath))
}

func sanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}
