package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/viper"

	"apk-installer/internal/adapters"
	"apk-installer/internal/app"
)

func setConfigDefaults() {
	viper.SetDefault("device.transport", "local")
	viper.SetDefault("device.adb_path", "adb")
	viper.SetDefault("installer.privileged_enabled", true)
	viper.SetDefault("installer.root_enabled", false)
	viper.SetDefault("installer.bind_timeout", 3*time.Second)
	viper.SetDefault("staging.retention", 20*time.Minute)
	viper.SetDefault("tracker.finished_retention", 5*time.Minute)
	viper.SetDefault("download.timeout", 60)
	viper.SetDefault("download.retries", 3)
	viper.SetDefault("download.retry_delay", 200)
	viper.SetDefault("s3.region", "auto")
	viper.SetDefault("install.hash_type", "sha256")
	viper.SetDefault("install.assume_yes", false)
	viper.SetDefault("history.limit", 50)
}

func serviceConfig(interactive bool) app.Config {
	return app.Config{
		DataDir:              viper.GetString("data_dir"),
		CacheDir:             viper.GetString("cache_dir"),
		Transport:            viper.GetString("device.transport"),
		ADBPath:              viper.GetString("device.adb_path"),
		Serial:               viper.GetString("device.serial"),
		SDKOverride:          viper.GetInt("device.sdk_override"),
		CommandTimeout:       viper.GetDuration("device.command_timeout"),
		SuPath:               viper.GetString("device.su_path"),
		PrivilegedEnabled:    viper.GetBool("installer.privileged_enabled"),
		RootEnabled:          viper.GetBool("installer.root_enabled"),
		ForceOldInstaller:    viper.GetBool("installer.force_old_installer"),
		DryRun:               viper.GetBool("installer.dry_run"),
		ExtensionPackage:     viper.GetString("installer.extension_package"),
		ExtensionSocket:      viper.GetString("installer.extension_socket"),
		ExtensionSigner:      viper.GetString("installer.extension_signer"),
		BindTimeout:          viper.GetDuration("installer.bind_timeout"),
		FileCopyDir:          viper.GetString("installer.file_copy_dir"),
		IntentWait:           viper.GetDuration("installer.intent_wait"),
		StagingRetention:     viper.GetDuration("staging.retention"),
		FinishedRetention:    viper.GetDuration("tracker.finished_retention"),
		DownloadTimeoutSec:   viper.GetInt("download.timeout"),
		DownloadRetries:      viper.GetInt("download.retries"),
		DownloadRetryDelayMs: viper.GetInt("download.retry_delay"),
		S3: adapters.S3Config{
			Endpoint:  viper.GetString("s3.endpoint"),
			Region:    viper.GetString("s3.region"),
			AccessKey: viper.GetString("s3.access_key"),
			SecretKey: viper.GetString("s3.secret_key"),
		},
		SpoolDir:          viper.GetString("spool.dir"),
		PermissionCatalog: viper.GetString("permissions.catalog"),
		Interactive:       interactive,
		In:                os.Stdin,
		Out:               os.Stdout,
	}
}

// newAppService builds and starts the service; callers must Close it.
func newAppService(ctx context.Context, interactive bool) (*app.Service, error) {
	service, err := app.NewService(ctx, serviceConfig(interactive))
	if err != nil {
		return nil, err
	}
	if err := service.Start(ctx); err != nil {
		service.Close()
		return nil, err
	}
	return service, nil
}
