// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"strings"
	"time"
)

// Lock errors surfaced to callers of the state machine.
var (
	// ErrInvalidDuration is returned when a lock is requested for a non-positive duration.
	ErrInvalidDuration = errors.New("lock duration must be positive")

	// ErrNoOriginalLauncher is returned when the current home app cannot be
	// resolved, or resolves to this app with no earlier identity on record.
	ErrNoOriginalLauncher = errors.New("original launcher could not be determined")

	// ErrChannelUnavailable is returned when the privileged command channel
	// is not available or has not been granted.
	ErrChannelUnavailable = errors.New("privileged command channel unavailable")
)

// Reserved exit codes for commands that never ran to completion.
const (
	ExitChannelUnavailable = -1 // Channel missing or permission not held
	ExitSpawnFailed        = -2 // Process could not be started or timed out
)

// LockState is a state of the lock state machine.
type LockState string

const (
	StateUnlocked  LockState = "UNLOCKED"
	StateLocking   LockState = "LOCKING"
	StateLocked    LockState = "LOCKED"
	StateUnlocking LockState = "UNLOCKING"
)

// StreamID identifies an audio stream. Values match the platform stream constants.
type StreamID int

const (
	StreamSystem       StreamID = 1
	StreamRing         StreamID = 2
	StreamMusic        StreamID = 3
	StreamNotification StreamID = 5
)

// SuppressedStreams is the fixed set of streams muted while locked, in order.
var SuppressedStreams = []StreamID{StreamRing, StreamNotification, StreamSystem, StreamMusic}

// String returns the stream name used in logs.
func (s StreamID) String() string {
	switch s {
	case StreamSystem:
		return "system"
	case StreamRing:
		return "ring"
	case StreamMusic:
		return "music"
	case StreamNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// InterruptionFilter is the do-not-disturb mode.
type InterruptionFilter string

const (
	FilterAll      InterruptionFilter = "all"
	FilterPriority InterruptionFilter = "priority"
)

// LauncherIdentity names a home activity.
type LauncherIdentity struct {
	Package   string `json:"package"`
	Component string `json:"component"`
}

// FlattenedName returns the "pkg/component" form used on the command line.
func (l LauncherIdentity) FlattenedName() string {
	return l.Package + "/" + l.Component
}

// IsZero reports whether no package is set.
func (l LauncherIdentity) IsZero() bool {
	return strings.TrimSpace(l.Package) == ""
}

// LockRecord is the durable lock state that survives process restart.
type LockRecord struct {
	UnlockDeadline     *time.Time
	OriginalLauncher   *LauncherIdentity
	SavedStreamVolumes map[StreamID]int
}

// HasDeadline reports whether a lock deadline is on record.
func (r *LockRecord) HasDeadline() bool {
	return r != nil && r.UnlockDeadline != nil
}

// LockStatus is the read-only status feed published to the presentation layer.
// Never persisted.
type LockStatus struct {
	IsLocked         bool      `json:"is_locked"`
	SecondsRemaining int64     `json:"seconds_remaining"`
	WatchdogReady    bool      `json:"watchdog_ready"`
	State            LockState `json:"state"`
	SessionID        string    `json:"session_id,omitempty"`
}

// CommandResult captures one privileged command execution.
type CommandResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Success reports whether the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// ReleaseTier names the step of the release cascade that produced the outcome.
type ReleaseTier string

const (
	TierNone          ReleaseTier = "none" // Unlock was a no-op
	TierRole          ReleaseTier = "role"
	TierLegacy        ReleaseTier = "legacy"
	TierSystemDefault ReleaseTier = "system_default"
	TierManual        ReleaseTier = "manual"
)

// ReleaseOutcome is the terminal result of releasing the launcher.
type ReleaseOutcome struct {
	Tier    ReleaseTier       `json:"tier"`
	Target  *LauncherIdentity `json:"target,omitempty"`
	Success bool              `json:"success"`
}

// ManualSelectionRequired reports whether the user must pick a launcher by hand.
func (o ReleaseOutcome) ManualSelectionRequired() bool {
	return o.Tier == TierManual
}

// TakeoverResult records which of the two takeover writes succeeded.
type TakeoverResult struct {
	RoleSet     bool `json:"role_set"`
	ActivitySet bool `json:"activity_set"`
}

// Any reports whether at least one takeover write succeeded.
func (t TakeoverResult) Any() bool {
	return t.RoleSet || t.ActivitySet
}

// IntrusionSignal is raised when a foreign app takes the foreground while locked.
type IntrusionSignal struct {
	Package string `json:"package"`
	Source  string `json:"source,omitempty"`
}

// NotificationSignal is raised when a notification is posted.
type NotificationSignal struct {
	Key     string `json:"key"`
	Package string `json:"package,omitempty"`
}

// KeyAction is the phase of a key event.
type KeyAction string

const (
	KeyDown KeyAction = "down"
	KeyUp   KeyAction = "up"
)

// Navigation key codes reported by the input host.
const (
	KeyCodeBack        = 4
	KeyCodeSearch      = 84
	KeyCodeAppSwitch   = 187
	KeyCodeAssist      = 219
	KeyCodeVoiceAssist = 231
)

// KeyEvent is a hardware or navigation key event seen by the input host.
type KeyEvent struct {
	Code   int       `json:"code"`
	Action KeyAction `json:"action"`
}
