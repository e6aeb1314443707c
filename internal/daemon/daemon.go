package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/api"
	"github.com/eliteGoblin/focusd/focuslock/internal/config"
	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
	"github.com/eliteGoblin/focusd/focuslock/internal/metrics"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

// Daemon owns the lock engine for the lifetime of the process.
type Daemon struct {
	config  config.Config
	pidPath string
	logger  *zap.Logger
}

// New creates a daemon. pidPath may be empty to skip the pid file.
func New(cfg config.Config, pidPath string, logger *zap.Logger) *Daemon {
	return &Daemon{config: cfg, pidPath: pidPath, logger: logger}
}

// Run wires every component, recovers the lock state and serves the
// control API. It blocks until ctx is canceled or the server fails.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.config

	if d.pidPath != "" {
		pidFile := infra.NewPIDFile(d.pidPath, infra.NewProcessManager())
		if err := pidFile.Write(); err != nil {
			return err
		}
		defer func() {
			if err := pidFile.Remove(); err != nil {
				d.logger.Warn("failed to remove pid file", zap.Error(err))
			}
		}()
	}

	store, err := infra.OpenLockStore(cfg.Store.Backend, cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open lock store: %w", err)
	}
	defer store.Close()

	channel, err := infra.NewShellChannel(infra.ShellChannelConfig{
		Prefix:       cfg.Channel.Prefix,
		ProbeCommand: cfg.Channel.ProbeCommand,
		ProbeTTL:     cfg.Channel.ProbeTTL,
		Timeout:      cfg.Channel.Timeout,
	}, d.logger.Named("channel"))
	if err != nil {
		return fmt.Errorf("failed to create command channel: %w", err)
	}
	if !channel.Available() {
		d.logger.Warn("privileged channel not available, locks will be refused",
			zap.String("prefix", cfg.Channel.Prefix))
	}

	var gatherer prometheus.Gatherer
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		gatherer = reg
	}

	self := domain.LauncherIdentity{Package: cfg.App.Package, Component: cfg.App.Activity}
	fallback := domain.LauncherIdentity{Package: cfg.Launcher.FallbackPackage, Component: cfg.Launcher.FallbackComponent}
	notifications := infra.NewShellNotificationPolicy(channel, cfg.App.Package)

	orchestrator := usecase.NewOrchestrator(channel, self, fallback, m, d.logger.Named("orchestrator"))
	suppression := usecase.NewSuppression(
		infra.NewShellAudio(channel),
		notifications,
		store,
		orchestrator,
		usecase.SuppressionConfig{
			Package:      cfg.App.Package,
			PollInterval: cfg.DND.PollInterval,
			PollAttempts: cfg.DND.PollAttempts,
		},
		d.logger.Named("suppression"))
	gate := usecase.NewInputGate(cfg.Input.HostTTL)
	engine := usecase.NewEngine(
		store,
		infra.NewShellLauncherResolver(channel),
		orchestrator,
		suppression,
		gate,
		m,
		usecase.EngineConfig{
			TickInterval:      cfg.Lock.TickInterval,
			IdleInterval:      cfg.Lock.IdleInterval,
			ListenerComponent: cfg.App.NotificationListener,
		},
		d.logger.Named("engine"))
	defer engine.Close()

	if err := engine.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover lock state: %w", err)
	}

	watchdog := usecase.NewWatchdog(engine, orchestrator, cfg.Watchdog.MinInterval, m, d.logger.Named("watchdog"))
	suppressor := usecase.NewNotificationSuppressor(engine, notifications, m, d.logger.Named("notifications"))

	monitorConfig := MonitorConfig{
		ForegroundInterval:   cfg.Monitor.ForegroundInterval,
		NotificationInterval: cfg.Monitor.NotificationInterval,
		SelfPackage:          cfg.App.Package,
		AllowPackages:        cfg.Monitor.AllowPackages,
	}
	foreground := NewForegroundMonitor(monitorConfig, infra.NewShellForegroundProbe(channel), engine, watchdog, d.logger.Named("foreground"))
	posted := NewNotificationMonitor(monitorConfig, notifications, engine, suppressor, d.logger.Named("posted"))

	handlers := api.NewHandlers(engine, orchestrator, gate, watchdog, suppressor, d.logger.Named("api"))
	server := api.NewServer(cfg.Control.Addr, api.NewRouter(handlers, gatherer, d.logger.Named("http")), d.logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go engine.Run(runCtx)
	go func() { _ = foreground.Run(runCtx) }()
	go func() { _ = posted.Run(runCtx) }()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve() }()

	status := engine.Status()
	d.logger.Info("daemon started",
		zap.String("addr", cfg.Control.Addr),
		zap.String("store", store.Path()),
		zap.Bool("locked", status.IsLocked),
		zap.Int64("seconds_remaining", status.SecondsRemaining))

	select {
	case <-ctx.Done():
		d.logger.Info("daemon stopping")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("control api failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("control api shutdown incomplete", zap.Error(err))
	}
	return nil
}
