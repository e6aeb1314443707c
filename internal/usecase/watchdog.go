package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/metrics"
)

// LockStatusReader is the read side of the lock engine.
type LockStatusReader interface {
	IsLocked() bool
}

// Watchdog re-asserts the locked app when a foreign app takes the
// foreground. Bursts of intrusions collapse into one re-assert per
// min interval.
type Watchdog struct {
	status       LockStatusReader
	orchestrator *Orchestrator
	limiter      *rate.Limiter
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewWatchdog creates a watchdog. A non-positive minInterval disables
// throttling.
func NewWatchdog(
	status LockStatusReader,
	orchestrator *Orchestrator,
	minInterval time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Watchdog {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Watchdog{
		status:       status,
		orchestrator: orchestrator,
		limiter:      rate.NewLimiter(limit, 1),
		metrics:      m,
		logger:       logger,
	}
}

// OnIntrusion handles one intrusion signal and reports whether the lock
// was re-asserted.
func (w *Watchdog) OnIntrusion(ctx context.Context, sig domain.IntrusionSignal) bool {
	if !w.status.IsLocked() {
		return false
	}
	self := w.orchestrator.Self()
	if sig.Package == self.Package {
		return false
	}
	if !w.limiter.Allow() {
		w.metrics.Reassert("throttled")
		return false
	}

	w.logger.Info("intrusion detected, re-asserting lock",
		zap.String("package", sig.Package),
		zap.String("source", sig.Source))
	w.orchestrator.Takeover(ctx, self)
	w.orchestrator.ForceForeground(ctx)
	w.metrics.Reassert("reasserted")
	return true
}

// NotificationSuppressor clears posted notifications while locked.
type NotificationSuppressor struct {
	status    LockStatusReader
	canceller domain.NotificationCanceller
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewNotificationSuppressor creates a notification suppressor.
func NewNotificationSuppressor(
	status LockStatusReader,
	canceller domain.NotificationCanceller,
	m *metrics.Metrics,
	logger *zap.Logger,
) *NotificationSuppressor {
	return &NotificationSuppressor{
		status:    status,
		canceller: canceller,
		metrics:   m,
		logger:    logger,
	}
}

// OnNotificationPosted cancels every notification if locked. It reports
// whether a cancel was issued.
func (n *NotificationSuppressor) OnNotificationPosted(ctx context.Context, sig domain.NotificationSignal) bool {
	if !n.status.IsLocked() {
		return false
	}
	if err := n.canceller.CancelAll(ctx); err != nil {
		n.logger.Warn("failed to cancel notifications",
			zap.String("key", sig.Key),
			zap.Error(err))
		return false
	}
	n.logger.Debug("notifications cleared", zap.String("key", sig.Key))
	n.metrics.NotificationSuppressed()
	return true
}
