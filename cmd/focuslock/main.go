// Package main is the CLI entry point for focuslock.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/focuslock/internal/api"
	"github.com/eliteGoblin/focusd/focuslock/internal/config"
	"github.com/eliteGoblin/focusd/focuslock/internal/daemon"
	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focuslock",
	Short: "Focus lock - keeps the device on the lock screen until time is up",
	Long: `focuslock takes over the home screen for a fixed number of minutes.
While locked it mutes audio, enables Do Not Disturb, dismisses notifications
and brings itself back whenever another app reaches the foreground.

There is no early exit besides the unlock command.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a focus lock",
	Long: `Starts the daemon if it is not running, then locks for --minutes.
The current home app is recorded and restored when the lock ends.`,
	RunE: runStart,
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "End the current lock and restore the original launcher",
	RunE:  runUnlock,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lock status",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - used for self-exec when spawning the daemon
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	configPath   string
	dataDir      string
	logLevel     string
	lockMinutes  int
	openSettings bool
	jsonOutput   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <data-dir>/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default depends on exec mode)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	startCmd.Flags().IntVarP(&lockMinutes, "minutes", "m", 0, "Lock duration in minutes")
	_ = startCmd.MarkFlagRequired("minutes")
	unlockCmd.Flags().BoolVar(&openSettings, "open-settings", false, "Open the default apps settings after unlocking")
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

// loadConfig resolves the exec mode and loads configuration with the
// global flags applied on top.
func loadConfig() (config.Config, *infra.ExecModeConfig, error) {
	execMode := infra.DetectExecMode()
	if dataDir != "" {
		execMode.DataDir = dataDir
	}

	overrides := map[string]any{}
	if logLevel != "" {
		overrides["log.level"] = logLevel
	}
	if dataDir != "" {
		overrides["store.data_dir"] = dataDir
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigPath:    configPath,
		DataDir:       execMode.DataDir,
		FlagOverrides: overrides,
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, execMode, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, execMode, err := loadConfig()
	if err != nil {
		return err
	}
	if lockMinutes <= 0 {
		return domain.ErrInvalidDuration
	}

	ctx := cmd.Context()
	client := api.NewClient(cfg.Control.Addr)
	pidFile := infra.NewPIDFile(execMode.PIDFilePath(), infra.NewProcessManager())
	if pidFile.IsAlive() && !client.Ping(ctx) {
		fmt.Println("Daemon process is alive but not answering yet, waiting...")
	}

	if err := os.MkdirAll(execMode.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	start := func() error {
		fmt.Printf("Starting daemon (mode: %s)\n", execMode.Mode)
		return daemon.StartDaemon("", daemonFlags()...)
	}
	if err := daemon.EnsureRunning(ctx, client, start, 5*time.Second); err != nil {
		return err
	}

	status, err := client.Lock(ctx, lockMinutes)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoOriginalLauncher):
			fmt.Println("Could not determine the current launcher. Pick a home app first, then retry.")
		case errors.Is(err, domain.ErrChannelUnavailable):
			fmt.Printf("Privileged channel %q is not available or not granted.\n", cfg.Channel.Prefix)
		}
		return err
	}

	fmt.Println("\n=== focuslock Started ===")
	fmt.Printf("Locked for: %s\n", formatRemaining(status.SecondsRemaining))
	fmt.Printf("Session: %s\n", status.SessionID)
	fmt.Println("=========================")
	return nil
}

func runUnlock(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	resp, err := api.NewClient(cfg.Control.Addr).Unlock(cmd.Context(), openSettings)
	if err != nil {
		return fmt.Errorf("unlock failed: %w", err)
	}

	fmt.Printf("Unlocked (release: %s)\n", resp.Outcome.Tier)
	if resp.Outcome.Target != nil {
		fmt.Printf("Launcher: %s\n", resp.Outcome.Target.Package)
	}
	if resp.ManualSelectionRequired {
		fmt.Println("The launcher could not be restored automatically. Choose a home app in settings.")
	}
	if resp.SettingsOpened {
		fmt.Println("Default apps settings opened.")
	}
	if resp.Warning != "" {
		fmt.Printf("Warning: %s\n", resp.Warning)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	status, err := api.NewClient(cfg.Control.Addr).Status(cmd.Context())
	if err != nil {
		if jsonOutput {
			return err
		}
		fmt.Println("\n=== focuslock Status ===")
		fmt.Println("Daemon: NOT RUNNING")
		fmt.Println("\nRun 'focuslock start --minutes N' to lock.")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Println("\n=== focuslock Status ===")
	fmt.Printf("State: %s\n", status.State)
	if status.IsLocked {
		fmt.Printf("Remaining: %s\n", formatRemaining(status.SecondsRemaining))
		fmt.Printf("Session: %s\n", status.SessionID)
	}
	fmt.Printf("Input host: %s\n", readyLabel(status.WatchdogReady))
	fmt.Println("========================")
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, execMode, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(execMode.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logPath := execMode.LogPath()
	if cfg.Log.File != "" {
		logPath = cfg.Log.File
	}
	logger := createLogger(cfg.Log.Level, logPath, execMode.ErrorLogPath())
	defer func() { _ = logger.Sync() }()

	// Set up graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting daemon",
		zap.String("version", Version),
		zap.String("mode", execMode.Mode.String()),
		zap.String("data_dir", cfg.Store.DataDir))

	return daemon.New(cfg, execMode.PIDFilePath(), logger).Run(ctx)
}

// daemonFlags forwards the global flags to a spawned daemon.
func daemonFlags() []string {
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	if dataDir != "" {
		flags = append(flags, "--data-dir", dataDir)
	}
	if logLevel != "" {
		flags = append(flags, "--log-level", logLevel)
	}
	return flags
}

func createLogger(level, logPath, errorLogPath string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{logPath}
	config.ErrorOutputPaths = []string{errorLogPath}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		config.Level = lvl
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("focuslock %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

func formatRemaining(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}

func readyLabel(ready bool) string {
	if ready {
		return "connected"
	}
	return "not connected"
}
