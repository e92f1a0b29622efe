package app

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"apk-installer/internal/adapters"
	"apk-installer/internal/core"
	"apk-installer/internal/installers"
	"apk-installer/internal/policies"
	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

type Service struct {
	Tracker  *core.Tracker
	Factory  core.InstallerFactory
	Cache    core.ApkCache
	Diff     core.PermissionDiffEngine
	Archive  ports.ArchivePort
	Packages ports.InstalledPackagesPort
	Device   ports.DevicePort
	Bus      ports.EventBusPort
	History  ports.HistoryPort
	Spool    *adapters.SignalSpoolAdapter
	Clock    func() time.Time

	store   *adapters.HistoryStoreAdapter
	stop    context.CancelFunc
	running sync.WaitGroup
}

// signalRelay lets installers be built before the tracker they report to.
type signalRelay struct {
	target ports.SignalSink
}

func (r *signalRelay) Deliver(event types.Event) {
	r.target.Deliver(event)
}

func NewService(ctx context.Context, cfg Config) (*Service, error) {
	cfg = cfg.normalized()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create data directory").
			WithCause(err)
	}

	runner := adapters.NewCommandRunnerAdapter(cfg.Transport, cfg.ADBPath, cfg.Serial, cfg.CommandTimeout)
	device := adapters.NewDevicePropsAdapter(runner, cfg.SDKOverride)
	packages := adapters.NewInstalledPackagesAdapter(runner)
	archive := adapters.NewApkArchiveAdapter()
	catalog, err := adapters.NewPermissionCatalogAdapter(cfg.PermissionCatalog)
	if err != nil {
		return nil, err
	}
	verifier := core.NewApkVerifier(archive, cfg.ExtensionPackage, cfg.ExtensionSigner)
	cache := core.NewApkCache(cfg.CacheDir, cfg.stagingDir(), cfg.StagingRetention, verifier)

	var objects adapters.ObjectFetcher
	if cfg.S3.Endpoint != "" || cfg.S3.AccessKey != "" {
		fetcher, err := adapters.NewS3FetcherAdapter(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		objects = fetcher
	}
	downloader := adapters.NewDownloaderAdapter(cfg.DownloadTimeoutSec, cfg.DownloadRetries, cfg.DownloadRetryDelayMs, objects)

	store, err := adapters.NewHistoryStoreAdapter(cfg.historyPath())
	if err != nil {
		return nil, err
	}

	relay := &signalRelay{}
	binder := adapters.NewPrivilegedBinderAdapter(packages, cfg.ExtensionPackage, cfg.ExtensionSocket)
	rootShell := adapters.NewSuShellAdapter(runner, cfg.SuPath)
	info, err := device.DeviceInfo(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to read device info")
	}
	strategies := []ports.InstallerPort{
		installers.NewPrivilegedInstaller(binder, relay, cfg.BindTimeout, cfg.InstallerPackage),
		installers.NewRootShellInstaller(rootShell, runner, relay),
		installers.NewSessionInstaller(adapters.NewSessionPMAdapter(runner, runner), store, relay, info.SDK),
		installers.NewDirectIntentInstaller(adapters.NewIntentAMAdapter(runner, runner, packages, cfg.IntentWait), relay),
		installers.NewFileCopyInstaller(cfg.FileCopyDir, relay),
		installers.NewDummyInstaller(relay),
	}
	factory := core.NewInstallerFactory(device, packages, binder, rootShell,
		policies.NewDevicePolicy(policies.DefaultDeviceRules),
		core.InstallerPrefs{
			PrivilegedEnabled: cfg.PrivilegedEnabled,
			RootEnabled:       cfg.RootEnabled,
			ForceOldInstaller: cfg.ForceOldInstaller,
			DryRun:            cfg.DryRun,
			BindTimeout:       cfg.BindTimeout,
		},
		strategies...)

	bus := adapters.NewEventBusAdapter()
	diff := core.NewPermissionDiffEngine(catalog)
	var confirm ports.ConfirmationPort
	var prompt *adapters.PromptConfirmationAdapter
	auto := &adapters.AutoConfirmationAdapter{}
	if cfg.Interactive {
		prompt = adapters.NewPromptConfirmationAdapter(cfg.In, cfg.Out)
		confirm = prompt
	} else {
		confirm = auto
	}

	tracker := core.NewTracker(core.TrackerDeps{
		Prober:            factory,
		Cache:             cache,
		Stager:            cache,
		Downloader:        downloader,
		Packages:          packages,
		Device:            device,
		Diff:              diff,
		Confirm:           confirm,
		Bus:               bus,
		History:           store,
		FinishedRetention: cfg.FinishedRetention,
	})
	relay.target = tracker
	auto.Resume = tracker.Resume
	if prompt != nil {
		prompt.Resume = tracker.Resume
	}

	svc := &Service{
		Tracker:  tracker,
		Factory:  factory,
		Cache:    cache,
		Diff:     diff,
		Archive:  archive,
		Packages: packages,
		Device:   device,
		Bus:      bus,
		History:  store,
		Clock:    time.Now,
		store:    store,
	}
	if cfg.SpoolDir != "" {
		svc.Spool = adapters.NewSignalSpoolAdapter(cfg.SpoolDir, tracker)
	}
	return svc, nil
}

// Start runs the tracker and, when configured, the signal spool until Close.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		_ = s.Tracker.Run(runCtx)
	}()
	if s.Spool != nil {
		if err := s.Spool.Start(runCtx); err != nil {
			cancel()
			s.running.Wait()
			return err
		}
	}
	return nil
}

func (s *Service) Close() error {
	if s.Spool != nil {
		s.Spool.Stop()
	}
	s.Tracker.Shutdown()
	if s.stop != nil {
		s.stop()
	}
	s.running.Wait()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
