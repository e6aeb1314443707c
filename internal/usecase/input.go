package usecase

import (
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// SystemUIPackage owns the status bar, notification shade and recents.
const SystemUIPackage = "com.android.systemui"

var blockedKeys = map[int]bool{
	domain.KeyCodeBack:        true,
	domain.KeyCodeSearch:      true,
	domain.KeyCodeAppSwitch:   true,
	domain.KeyCodeAssist:      true,
	domain.KeyCodeVoiceAssist: true,
}

// InputGate is the process-wide input-block flag. Only the lock engine
// sets it; the externally hosted key interceptor and window watcher read
// it and report their liveness through HostHeartbeat.
type InputGate struct {
	mu          sync.RWMutex
	blocking    bool
	connected   bool
	heartbeatAt time.Time
	hostTTL     time.Duration
	now         func() time.Time
}

// NewInputGate creates a gate whose host counts as disconnected once its
// last heartbeat is older than hostTTL.
func NewInputGate(hostTTL time.Duration) *InputGate {
	return &InputGate{hostTTL: hostTTL, now: time.Now}
}

// SetBlocking is called by the lock engine only.
func (g *InputGate) SetBlocking(blocking bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blocking = blocking
}

// Blocking reports whether navigation input must be swallowed.
func (g *InputGate) Blocking() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.blocking
}

// HostHeartbeat records the input host's connection state.
func (g *InputGate) HostHeartbeat(connected bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = connected
	g.heartbeatAt = g.now()
}

// HostConnected reports whether the input host is connected and its last
// heartbeat is fresh.
func (g *InputGate) HostConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.connected {
		return false
	}
	return g.now().Sub(g.heartbeatAt) <= g.hostTTL
}

// ShouldConsumeKey reports whether the host must swallow ev. Both phases of
// a navigation key are consumed so the system never sees half a press.
func (g *InputGate) ShouldConsumeKey(ev domain.KeyEvent) bool {
	if !g.Blocking() {
		return false
	}
	if ev.Action != domain.KeyDown && ev.Action != domain.KeyUp {
		return false
	}
	return blockedKeys[ev.Code]
}

// WindowChanged inspects a window-state change reported by the host and
// returns the intrusion it represents, if any. Only the system UI counts;
// foreign apps are caught by the foreground monitor.
func (g *InputGate) WindowChanged(pkg string) (domain.IntrusionSignal, bool) {
	if !g.Blocking() || pkg != SystemUIPackage {
		return domain.IntrusionSignal{}, false
	}
	return domain.IntrusionSignal{Package: pkg, Source: "window"}, true
}
