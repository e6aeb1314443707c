// Package infra implements infrastructure concerns.
package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as an unprivileged user
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds paths based on execution mode.
type ExecModeConfig struct {
	Mode    ExecMode
	DataDir string // Lock store, key, config, logs and pid file
	IsRoot  bool   // Whether running as root
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:    ExecModeSystem,
			DataDir: "/var/lib/focuslock",
			IsRoot:  true,
		}
	}

	return &ExecModeConfig{
		Mode:    ExecModeUser,
		DataDir: filepath.Join(GetRealUserHome(), ".focuslock"),
		IsRoot:  false,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// ConfigPath returns the default config file path.
func (c *ExecModeConfig) ConfigPath() string {
	return filepath.Join(c.DataDir, "config.toml")
}

// PIDFilePath returns the daemon pid file path.
func (c *ExecModeConfig) PIDFilePath() string {
	return filepath.Join(c.DataDir, "focuslock.pid")
}

// LogPath returns the daemon log file path.
func (c *ExecModeConfig) LogPath() string {
	return filepath.Join(c.DataDir, "focuslock.log")
}

// ErrorLogPath returns the daemon error log file path.
func (c *ExecModeConfig) ErrorLogPath() string {
	return filepath.Join(c.DataDir, "focuslock.error.log")
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
