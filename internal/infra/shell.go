package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	// Run executes a command and waits for it to exit with both streams drained.
	// err is non-nil only when the process could not run to completion;
	// a non-zero exit is reported through exitCode.
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)

	// LookPath resolves a binary on PATH.
	LookPath(file string) (string, error)
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct{}

// Run executes a command and waits for it to complete
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil // Prevent any interactive prompts
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	return stdout.Bytes(), stderr.Bytes(), -1, err
}

// LookPath resolves a binary on PATH
func (r *RealCommandRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// ShellChannelConfig configures the privileged command channel.
type ShellChannelConfig struct {
	Prefix       string        // argv prefix, e.g. "sh -c", "su -c", "adb -s emulator-5554 shell"
	ProbeCommand string        // command whose success proves privilege is held
	ProbeTTL     time.Duration // how long a probe result is trusted
	Timeout      time.Duration // per-command timeout
}

// DefaultShellChannelConfig returns the on-device defaults.
func DefaultShellChannelConfig() ShellChannelConfig {
	return ShellChannelConfig{
		Prefix:       "sh -c",
		ProbeCommand: "id",
		ProbeTTL:     5 * time.Second,
		Timeout:      15 * time.Second,
	}
}

// ShellChannel implements domain.CommandChannel by running each command
// string as the last argument of a configured argv prefix.
type ShellChannel struct {
	config ShellChannelConfig
	prefix []string
	runner CommandRunner
	logger *zap.Logger

	mu          sync.Mutex
	probedAt    time.Time
	probeResult bool
}

// NewShellChannel creates a channel backed by real process execution.
func NewShellChannel(config ShellChannelConfig, logger *zap.Logger) (*ShellChannel, error) {
	return NewShellChannelWithRunner(config, &RealCommandRunner{}, logger)
}

// NewShellChannelWithRunner creates a channel with an injectable runner (for testing).
func NewShellChannelWithRunner(config ShellChannelConfig, runner CommandRunner, logger *zap.Logger) (*ShellChannel, error) {
	prefix, err := shellwords.Parse(config.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel prefix %q: %w", config.Prefix, err)
	}
	if len(prefix) == 0 {
		return nil, fmt.Errorf("channel prefix is empty")
	}
	if config.ProbeCommand == "" {
		config.ProbeCommand = "id"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultShellChannelConfig().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShellChannel{
		config: config,
		prefix: prefix,
		runner: runner,
		logger: logger,
	}, nil
}

// Available reports whether the prefix binary can be found.
func (c *ShellChannel) Available() bool {
	_, err := c.runner.LookPath(c.prefix[0])
	return err == nil
}

// HasPermission reports whether the probe command succeeds.
// Results are cached for ProbeTTL.
func (c *ShellChannel) HasPermission() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.probedAt.IsZero() && time.Since(c.probedAt) < c.config.ProbeTTL {
		return c.probeResult
	}
	return c.probeLocked()
}

// RequestPermission re-runs the probe uncached. On su hosts this raises
// the grant prompt.
func (c *ShellChannel) RequestPermission() {
	c.mu.Lock()
	defer c.mu.Unlock()

	granted := c.probeLocked()
	c.logger.Info("privileged channel permission requested", zap.Bool("granted", granted))
}

func (c *ShellChannel) probeLocked() bool {
	ok := false
	if c.Available() {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
		_, _, code, err := c.runner.Run(ctx, c.prefix[0], c.argv(c.config.ProbeCommand)...)
		cancel()
		ok = err == nil && code == 0
	}
	c.probedAt = time.Now()
	c.probeResult = ok
	return ok
}

// Execute runs one command and returns its result. It never returns an
// error: unavailability and spawn failures map to reserved exit codes.
func (c *ShellChannel) Execute(ctx context.Context, command string) domain.CommandResult {
	if !c.Available() || !c.HasPermission() {
		c.logger.Warn("privileged channel unavailable, command not run",
			zap.String("command", command))
		return domain.CommandResult{
			ExitCode: domain.ExitChannelUnavailable,
			Stderr:   "privileged channel unavailable",
		}
	}

	c.logger.Debug("exec", zap.String("command", command))

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	stdout, stderr, code, err := c.runner.Run(ctx, c.prefix[0], c.argv(command)...)
	if err != nil {
		c.logger.Warn("command did not complete",
			zap.String("command", command),
			zap.Error(err))
		return domain.CommandResult{
			ExitCode: domain.ExitSpawnFailed,
			Stdout:   strings.TrimSpace(string(stdout)),
			Stderr:   err.Error(),
		}
	}

	result := domain.CommandResult{
		ExitCode: code,
		Stdout:   strings.TrimSpace(string(stdout)),
		Stderr:   strings.TrimSpace(string(stderr)),
	}
	if !result.Success() {
		c.logger.Warn("command failed",
			zap.String("command", command),
			zap.Int("exit_code", result.ExitCode),
			zap.String("stderr", result.Stderr))
	}
	return result
}

// argv returns the arguments after the prefix binary.
func (c *ShellChannel) argv(command string) []string {
	args := make([]string, 0, len(c.prefix))
	args = append(args, c.prefix[1:]...)
	return append(args, command)
}

// Ensure ShellChannel implements domain.CommandChannel.
var _ domain.CommandChannel = (*ShellChannel)(nil)
