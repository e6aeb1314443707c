package domain

import (
	"context"
	"time"
)

// CommandChannel executes shell commands with elevated privilege.
// Implementation: configurable argv prefix (sh -c, su -c, adb shell).
type CommandChannel interface {
	// Available reports whether the channel exists on this host.
	Available() bool

	// HasPermission reports whether the channel may run privileged commands.
	HasPermission() bool

	// RequestPermission asks the channel host to grant privilege.
	RequestPermission()

	// Execute runs one command string and waits for it to exit.
	// Failures are reported through the exit code, never as an error.
	Execute(ctx context.Context, command string) CommandResult
}

// LauncherResolver finds the current default home activity.
type LauncherResolver interface {
	// ResolveCurrentHomeApp returns nil when no home activity can be resolved.
	ResolveCurrentHomeApp(ctx context.Context) (*LauncherIdentity, error)
}

// AudioPort reads and writes stream volumes.
type AudioPort interface {
	GetVolume(ctx context.Context, stream StreamID) (int, error)

	// SetVolume may fail when the OS enforces silence on its own.
	SetVolume(ctx context.Context, stream StreamID, level int) error
}

// NotificationPolicyPort controls the do-not-disturb interruption filter.
type NotificationPolicyPort interface {
	IsPolicyAccessGranted(ctx context.Context) bool
	SetInterruptionFilter(ctx context.Context, filter InterruptionFilter) error
}

// NotificationCanceller clears posted notifications.
type NotificationCanceller interface {
	CancelAll(ctx context.Context) error
}

// ForegroundProbe reports the package currently in the foreground.
type ForegroundProbe interface {
	ForegroundPackage(ctx context.Context) (string, error)
}

// NotificationLister reports the keys of currently posted notifications.
type NotificationLister interface {
	ActiveKeys(ctx context.Context) ([]string, error)
}

// LockStore is the durable LockRecord store.
// Implementations: SQLCipher database or JSON file.
type LockStore interface {
	// Load returns the full record. A missing store yields an empty record.
	Load() (*LockRecord, error)

	// SetDeadline persists the unlock deadline.
	SetDeadline(deadline time.Time) error

	// ClearDeadline removes the unlock deadline.
	ClearDeadline() error

	// SetOriginalLauncher persists the launcher to restore on unlock.
	SetOriginalLauncher(id LauncherIdentity) error

	// SaveStreamVolume persists a volume snapshot for one stream.
	SaveStreamVolume(stream StreamID, level int) error

	// RemoveStreamVolume removes the snapshot for one stream.
	RemoveStreamVolume(stream StreamID) error

	// Path returns the backing file path (for status and tests).
	Path() string

	// Close releases resources (e.g., database connection).
	Close() error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// ProcessManager handles OS process checks.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}
