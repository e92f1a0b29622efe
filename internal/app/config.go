package app

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"apk-installer/internal/adapters"
)

// Config is everything NewService needs. The CLI fills it from viper; tests
// build it directly.
type Config struct {
	DataDir  string
	CacheDir string

	Transport      string
	ADBPath        string
	Serial         string
	SDKOverride    int
	CommandTimeout time.Duration
	SuPath         string

	PrivilegedEnabled bool
	RootEnabled       bool
	ForceOldInstaller bool
	DryRun            bool
	ExtensionPackage  string
	ExtensionSocket   string
	ExtensionSigner   string
	InstallerPackage  string
	BindTimeout       time.Duration
	FileCopyDir       string
	IntentWait        time.Duration

	StagingRetention  time.Duration
	FinishedRetention time.Duration

	DownloadTimeoutSec   int
	DownloadRetries      int
	DownloadRetryDelayMs int
	S3                   adapters.S3Config

	SpoolDir          string
	PermissionCatalog string

	// Interactive asks for confirmations on In/Out; otherwise they are
	// accepted automatically.
	Interactive bool
	In          io.Reader
	Out         io.Writer
}

func (c Config) normalized() Config {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir()
	}
	if strings.TrimSpace(c.CacheDir) == "" {
		c.CacheDir = filepath.Join(c.DataDir, "cache")
	}
	if strings.TrimSpace(c.InstallerPackage) == "" {
		c.InstallerPackage = "apk-installer"
	}
	if c.In == nil {
		c.In = os.Stdin
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	return c
}

func (c Config) stagingDir() string {
	return filepath.Join(c.DataDir, "staging")
}

func (c Config) historyPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "apk-installer")
	}
	return filepath.Join(os.TempDir(), "apk-installer")
}
