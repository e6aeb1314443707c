package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Pinger reports whether a daemon answers on its control API.
type Pinger interface {
	Ping(ctx context.Context) bool
}

// StartDaemon spawns "<executable> daemon [flags...]" detached from the
// calling terminal. An empty executable re-executes the current binary.
func StartDaemon(executable string, flags ...string) error {
	if executable == "" {
		var err error
		executable, err = os.Executable()
		if err != nil {
			return err
		}
	}

	cmd := exec.Command(executable, append([]string{"daemon"}, flags...)...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// EnsureRunning starts the daemon unless it already answers, then waits
// up to timeout for it to come up.
func EnsureRunning(ctx context.Context, client Pinger, start func() error, timeout time.Duration) error {
	if client.Ping(ctx) {
		return nil
	}
	if err := start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
		if client.Ping(ctx) {
			return nil
		}
	}
	return fmt.Errorf("daemon did not answer within %s", timeout)
}
