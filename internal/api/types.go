// Package api serves the local control API used by the CLI and by the
// externally hosted input, window and notification components.
package api

import (
	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidDuration    = "INVALID_DURATION"
	CodeNoOriginalLauncher = "NO_ORIGINAL_LAUNCHER"
	CodeChannelUnavailable = "CHANNEL_UNAVAILABLE"
	CodeLockFailed         = "LOCK_FAILED"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine-readable error code.
	Code string `json:"code,omitempty"`
}

// LockRequest starts a lock.
type LockRequest struct {
	Minutes int `json:"minutes"`
}

// UnlockRequest lifts the lock.
type UnlockRequest struct {
	// OpenSettings opens the default-apps screen even if release succeeded.
	OpenSettings bool `json:"open_settings"`
}

// UnlockResponse reports how the launcher was released.
type UnlockResponse struct {
	Outcome                 domain.ReleaseOutcome `json:"outcome"`
	ManualSelectionRequired bool                  `json:"manual_selection_required"`
	SettingsOpened          bool                  `json:"settings_opened"`
	// Warning carries store errors; the unlock itself always completes.
	Warning string            `json:"warning,omitempty"`
	Status  domain.LockStatus `json:"status"`
}

// HeartbeatRequest reports input-host liveness.
type HeartbeatRequest struct {
	Connected bool `json:"connected"`
}

// BlockedResponse reports the input-block flag.
type BlockedResponse struct {
	Blocking bool `json:"blocking"`
}

// KeyResponse tells the input host whether to swallow a key event.
type KeyResponse struct {
	Consume bool `json:"consume"`
}

// WindowRequest reports a window-state change seen by the input host.
type WindowRequest struct {
	Package string `json:"package"`
}

// WindowResponse reports whether the window change was an intrusion.
type WindowResponse struct {
	Intrusion  bool `json:"intrusion"`
	Reasserted bool `json:"reasserted"`
}

// IntrusionResponse reports whether the watchdog re-asserted the lock.
type IntrusionResponse struct {
	Reasserted bool `json:"reasserted"`
}

// NotificationResponse reports whether notifications were cleared.
type NotificationResponse struct {
	Suppressed bool `json:"suppressed"`
}
