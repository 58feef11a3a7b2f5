// Daemon wiring for 'pasteupd run': config loader with hot reload,
// logging, upload journal, interception engine, and the IPC server,
// torn down in reverse order on SIGINT/SIGTERM or an IPC shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pasteup/internal/config"
	"pasteup/internal/confirm"
	"pasteup/internal/engine"
	"pasteup/internal/history"
	"pasteup/internal/ipc"
	"pasteup/internal/logging"
	"pasteup/internal/notify"
	"pasteup/internal/providers"
	"pasteup/pkg/uploader"
)

// daemon owns everything behind 'pasteupd run'.
type daemon struct {
	configPath string
	cfg        *config.Config
	loader     *config.Loader
	logger     *logging.Logger
	log        *slog.Logger
	journal    *history.Store
	engine     *engine.Engine
	handler    *ipc.DaemonHandler
	server     *ipc.Server
}

func newDaemon(configPath, levelOverride string) (*daemon, error) {
	// Writes the default config on first run so the loader and the
	// file watcher always have a file to point at.
	if _, _, err := config.LoadOrCreate(configPath); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}

	logger, err := newLogger(cfg.Logging, levelOverride)
	if err != nil {
		return nil, fmt.Errorf("set up logging: %w", err)
	}
	logging.SetDefault(logger)

	d := &daemon{
		configPath: configPath,
		cfg:        cfg,
		loader:     loader,
		logger:     logger,
		log:        logger.WithComponent("daemon").Logger,
	}

	if hist := cfg.HistorySettings(); hist.Enabled {
		d.journal, err = history.Open(hist.Path)
		if err != nil {
			// The engine and IPC layer treat a nil journal as "history off".
			d.log.Warn("upload journal unavailable", "path", hist.Path, "error", err)
		}
	}

	var notifier notify.Notifier = notify.Muted{}
	if cfg.NotifySettings().Enabled {
		notifier = notify.New(logger.WithComponent("notify").Logger)
	}

	up, err := providers.FromConfig(cfg)
	if err != nil && !errors.Is(err, uploader.ErrNotConfigured) {
		d.log.Warn("uploader unavailable", "error", err)
	}

	persist := func(c *config.Config) error {
		return config.Save(c, configPath)
	}

	// There is no interactive prompt surface in the daemon, so while
	// confirmation is on every gated event is declined and replays
	// through the editor's native handler instead of uploading.
	d.engine = engine.New(engine.Options{
		Config:   cfg,
		Prompter: &confirm.StaticPrompter{Response: confirm.Response{Decision: confirm.Declined}},
		Persist:  persist,
		Uploader: up,
		Journal:  d.journal,
		Notifier: notifier,
		Log:      logger.WithComponent("engine").Logger,
	})

	d.handler = ipc.NewDaemonHandler(ipc.DaemonHandlerConfig{
		Version: Version,
		Config:  cfg,
		Engine:  d.engine,
		Journal: d.journal,
		Persist: persist,
		Reload:  d.reloadConfig,
		Log:     logger.WithComponent("ipc").Logger,
	})

	serverCfg := ipc.DefaultServerConfig(config.PasteupDir())
	serverCfg.Version = Version
	if cfg.IPC.SocketPath != "" {
		serverCfg.SocketPath = cfg.IPC.SocketPath
	}
	if cfg.IPC.TimeoutSec > 0 {
		serverCfg.ReadTimeout = time.Duration(cfg.IPC.TimeoutSec) * time.Second
	}

	d.server = ipc.NewServer(serverCfg, d.handler, logger.WithComponent("ipc").Logger)
	d.handler.SetBroadcaster(d.server.Broadcast)

	return d, nil
}

// run blocks until a termination signal or an IPC shutdown request.
func (d *daemon) run() error {
	defer d.logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.loader.OnChange(func(prev, next *config.Config) {
		d.log.Info("config file changed, applying")
		d.applyConfig(next)
	})
	if err := d.loader.Watch(); err != nil {
		d.log.Warn("config watch unavailable, edits need a reload or restart", "error", err)
	}
	go d.drainLoaderErrors(ctx)

	d.server.OnShutdown(cancel)
	if err := d.server.Start(); err != nil {
		return fmt.Errorf("start ipc server: %w", err)
	}

	d.log.Info("pasteupd running",
		"version", Version,
		"socket", d.server.SocketPath(),
		"provider", providerName(d.engine.Uploader()),
		"confirm", d.cfg.ConfirmBeforeUpload())

	if d.cfg.ConfirmBeforeUpload() {
		d.log.Info("upload confirmation is on; gated events pass through to the editor until it is turned off")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigChan:
			d.log.Info("signal received, shutting down", "signal", sig.String())
			return d.shutdown()

		case <-ctx.Done():
			d.log.Info("shutdown requested over ipc")
			return d.shutdown()

		case <-ticker.C:
			d.log.Debug("heartbeat",
				"connections", d.server.ConnCount(),
				"editors", len(d.engine.RegisteredEditors()))
		}
	}
}

// shutdown broadcasts the stop, closes the socket, and restores every
// registered editor before releasing the journal and watcher.
func (d *daemon) shutdown() error {
	d.handler.Shutdown()
	err := d.server.Stop()

	d.engine.Close()
	d.loader.Close()
	if d.journal != nil {
		d.journal.Close()
	}

	d.log.Info("pasteupd stopped")
	return err
}

// reloadConfig re-reads the config file on an explicit IPC request.
func (d *daemon) reloadConfig() error {
	next, err := d.loader.Load()
	if err != nil {
		return err
	}
	d.applyConfig(next)
	return nil
}

// applyConfig copies the hot-reloadable settings into the live config
// shared with the engine and IPC handler. History, notify, logging,
// and socket changes take effect on the next start.
func (d *daemon) applyConfig(next *config.Config) {
	d.cfg.SetConfirmBeforeUpload(next.ConfirmBeforeUpload())
	d.cfg.SetUploaderSettings(next.UploaderSettings())
	d.refreshUploader()
}

func (d *daemon) refreshUploader() {
	up, err := providers.FromConfig(d.cfg)
	if err != nil {
		if !errors.Is(err, uploader.ErrNotConfigured) {
			d.log.Warn("uploader unavailable", "error", err)
		}
		d.engine.SetUploader(nil)
		return
	}

	d.engine.SetUploader(up)
	d.log.Info("uploader ready", "provider", up.Name())
}

func (d *daemon) drainLoaderErrors(ctx context.Context) {
	for {
		select {
		case err := <-d.loader.Errors():
			d.log.Warn("config reload failed", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

// newLogger maps the file-form logging section onto a live logger.
func newLogger(fileCfg config.LoggingConfig, levelOverride string) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	lc.Component = "pasteupd"

	if fileCfg.Level != "" {
		lvl, err := logging.ParseLevel(fileCfg.Level)
		if err != nil {
			return nil, err
		}
		lc.Level = lvl
	}
	if levelOverride != "" {
		lvl, err := logging.ParseLevel(levelOverride)
		if err != nil {
			return nil, err
		}
		lc.Level = lvl
	}
	if fileCfg.Format != "" {
		format, err := logging.ParseFormat(fileCfg.Format)
		if err != nil {
			return nil, err
		}
		lc.Format = format
	}
	if fileCfg.Output != "" {
		lc.Output = fileCfg.Output
	}
	if fileCfg.FilePath != "" {
		lc.FilePath = fileCfg.FilePath
	}
	if fileCfg.MaxSizeMB > 0 {
		lc.MaxSize = fileCfg.MaxSizeMB
	}
	if fileCfg.MaxAgeDays > 0 {
		lc.MaxAge = fileCfg.MaxAgeDays
	}
	if fileCfg.MaxBackups > 0 {
		lc.MaxBackups = fileCfg.MaxBackups
	}
	lc.Compress = fileCfg.Compress

	return logging.New(lc)
}

func providerName(up uploader.Uploader) string {
	if up == nil {
		return "none"
	}
	return up.Name()
}
