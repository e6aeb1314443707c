// Package daemon runs the focuslock daemon: the lock engine, the polling
// signal monitors and the control API.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
)

// LockState reports whether the engine is locked.
type LockState interface {
	IsLocked() bool
}

// IntrusionHandler receives intrusion signals (usecase.Watchdog).
type IntrusionHandler interface {
	OnIntrusion(ctx context.Context, sig domain.IntrusionSignal) bool
}

// NotificationHandler receives notification-posted signals
// (usecase.NotificationSuppressor).
type NotificationHandler interface {
	OnNotificationPosted(ctx context.Context, sig domain.NotificationSignal) bool
}

// MonitorConfig holds monitor polling configuration.
type MonitorConfig struct {
	ForegroundInterval   time.Duration // How often to probe the foreground app
	NotificationInterval time.Duration // How often to list posted notifications
	SelfPackage          string        // Never an intrusion
	AllowPackages        []string      // Foreground packages tolerated while locked
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		ForegroundInterval:   time.Second,
		NotificationInterval: 2 * time.Second,
	}
}

// ForegroundMonitor polls the foreground app while locked and raises an
// intrusion whenever a foreign package is on top.
type ForegroundMonitor struct {
	config  MonitorConfig
	probe   domain.ForegroundProbe
	lock    LockState
	handler IntrusionHandler
	allowed map[string]bool
	logger  *zap.Logger
}

// NewForegroundMonitor creates a foreground monitor.
func NewForegroundMonitor(
	config MonitorConfig,
	probe domain.ForegroundProbe,
	lock LockState,
	handler IntrusionHandler,
	logger *zap.Logger,
) *ForegroundMonitor {
	allowed := map[string]bool{config.SelfPackage: true}
	for _, pkg := range config.AllowPackages {
		allowed[pkg] = true
	}
	return &ForegroundMonitor{
		config:  config,
		probe:   probe,
		lock:    lock,
		handler: handler,
		allowed: allowed,
		logger:  logger,
	}
}

// Run polls until ctx is canceled. A zero interval disables the monitor.
func (m *ForegroundMonitor) Run(ctx context.Context) error {
	if m.config.ForegroundInterval <= 0 {
		m.logger.Info("foreground monitor disabled")
		return nil
	}

	ticker := time.NewTicker(m.config.ForegroundInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("foreground monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one probe and reports whether an intrusion was raised.
func (m *ForegroundMonitor) check(ctx context.Context) bool {
	if !m.lock.IsLocked() {
		return false
	}

	pkg, err := m.probe.ForegroundPackage(ctx)
	if err != nil {
		m.logger.Debug("foreground probe failed", zap.Error(err))
		return false
	}
	if pkg == "" || m.allowed[pkg] {
		return false
	}

	m.logger.Debug("foreign foreground app", zap.String("package", pkg))
	m.handler.OnIntrusion(ctx, domain.IntrusionSignal{Package: pkg, Source: "foreground"})
	return true
}

// NotificationMonitor polls posted notifications while locked and signals
// every key it has not seen before.
type NotificationMonitor struct {
	config  MonitorConfig
	lister  domain.NotificationLister
	lock    LockState
	handler NotificationHandler
	seen    map[string]bool
	logger  *zap.Logger
}

// NewNotificationMonitor creates a notification monitor.
func NewNotificationMonitor(
	config MonitorConfig,
	lister domain.NotificationLister,
	lock LockState,
	handler NotificationHandler,
	logger *zap.Logger,
) *NotificationMonitor {
	return &NotificationMonitor{
		config:  config,
		lister:  lister,
		lock:    lock,
		handler: handler,
		seen:    make(map[string]bool),
		logger:  logger,
	}
}

// Run polls until ctx is canceled. A zero interval disables the monitor.
func (m *NotificationMonitor) Run(ctx context.Context) error {
	if m.config.NotificationInterval <= 0 {
		m.logger.Info("notification monitor disabled")
		return nil
	}

	ticker := time.NewTicker(m.config.NotificationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("notification monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check lists notifications once and returns how many new keys were signalled.
func (m *NotificationMonitor) check(ctx context.Context) int {
	if !m.lock.IsLocked() {
		if len(m.seen) > 0 {
			m.seen = make(map[string]bool)
		}
		return 0
	}

	keys, err := m.lister.ActiveKeys(ctx)
	if err != nil {
		m.logger.Debug("notification listing failed", zap.Error(err))
		return 0
	}

	current := make(map[string]bool, len(keys))
	posted := 0
	for _, key := range keys {
		current[key] = true
		if m.seen[key] {
			continue
		}
		pkg := infra.NotificationKeyPackage(key)
		if pkg == m.config.SelfPackage {
			continue
		}
		posted++
		m.handler.OnNotificationPosted(ctx, domain.NotificationSignal{Key: key, Package: pkg})
	}
	m.seen = current
	return posted
}
