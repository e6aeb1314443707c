package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// LockService is the lock engine as seen by the API.
type LockService interface {
	Status() domain.LockStatus
	Subscribe() (<-chan domain.LockStatus, func())
	StartLock(ctx context.Context, minutes int) error
	Unlock(ctx context.Context) (domain.ReleaseOutcome, error)
}

// SettingsOpener opens the launcher settings screen for manual selection.
type SettingsOpener interface {
	OpenDefaultAppsSettings(ctx context.Context) bool
}

// InputService is the input gate as seen by the input host.
type InputService interface {
	HostHeartbeat(connected bool)
	Blocking() bool
	ShouldConsumeKey(ev domain.KeyEvent) bool
	WindowChanged(pkg string) (domain.IntrusionSignal, bool)
}

// IntrusionHandler reacts to intrusion signals.
type IntrusionHandler interface {
	OnIntrusion(ctx context.Context, sig domain.IntrusionSignal) bool
}

// NotificationHandler reacts to notification-posted signals.
type NotificationHandler interface {
	OnNotificationPosted(ctx context.Context, sig domain.NotificationSignal) bool
}

// Handlers contains the HTTP handlers for the control API.
type Handlers struct {
	lock          LockService
	settings      SettingsOpener
	input         InputService
	intrusions    IntrusionHandler
	notifications NotificationHandler
	logger        *zap.Logger
}

// NewHandlers creates the handlers.
func NewHandlers(
	lock LockService,
	settings SettingsOpener,
	input InputService,
	intrusions IntrusionHandler,
	notifications NotificationHandler,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		lock:          lock,
		settings:      settings,
		input:         input,
		intrusions:    intrusions,
		notifications: notifications,
		logger:        logger,
	}
}

// HandleStatus handles GET /v1/status.
func (h *Handlers) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.lock.Status())
}

// HandleStatusStream handles GET /v1/status/stream as server-sent events.
func (h *Handlers) HandleStatusStream(c *gin.Context) {
	updates, cancel := h.lock.Subscribe()
	defer cancel()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("status", status)
			c.Writer.Flush()
		}
	}
}

// HandleLock handles POST /v1/lock.
func (h *Handlers) HandleLock(c *gin.Context) {
	var req LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  CodeInvalidRequest,
		})
		return
	}

	if err := h.lock.StartLock(c.Request.Context(), req.Minutes); err != nil {
		statusCode := http.StatusInternalServerError
		errCode := CodeLockFailed

		switch {
		case errors.Is(err, domain.ErrInvalidDuration):
			statusCode = http.StatusBadRequest
			errCode = CodeInvalidDuration
		case errors.Is(err, domain.ErrNoOriginalLauncher):
			statusCode = http.StatusPreconditionFailed
			errCode = CodeNoOriginalLauncher
		case errors.Is(err, domain.ErrChannelUnavailable):
			statusCode = http.StatusServiceUnavailable
			errCode = CodeChannelUnavailable
		}

		h.logger.Warn("lock request declined",
			zap.Int("minutes", req.Minutes),
			zap.String("code", errCode),
			zap.Error(err))
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	c.JSON(http.StatusOK, h.lock.Status())
}

// HandleUnlock handles POST /v1/unlock. An empty body is allowed.
func (h *Handlers) HandleUnlock(c *gin.Context) {
	var req UnlockRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "invalid request body",
				Code:  CodeInvalidRequest,
			})
			return
		}
	}

	ctx := c.Request.Context()
	outcome, err := h.lock.Unlock(ctx)
	resp := UnlockResponse{
		Outcome:                 outcome,
		ManualSelectionRequired: outcome.ManualSelectionRequired(),
	}
	if err != nil {
		h.logger.Warn("unlock finished with errors", zap.Error(err))
		resp.Warning = err.Error()
	}
	if resp.ManualSelectionRequired || req.OpenSettings {
		resp.SettingsOpened = h.settings.OpenDefaultAppsSettings(ctx)
	}
	resp.Status = h.lock.Status()

	c.JSON(http.StatusOK, resp)
}

// HandleIntrusion handles POST /v1/signals/intrusion.
func (h *Handlers) HandleIntrusion(c *gin.Context) {
	var sig domain.IntrusionSignal
	if err := c.ShouldBindJSON(&sig); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: CodeInvalidRequest})
		return
	}
	if sig.Source == "" {
		sig.Source = "api"
	}
	c.JSON(http.StatusOK, IntrusionResponse{
		Reasserted: h.intrusions.OnIntrusion(c.Request.Context(), sig),
	})
}

// HandleNotification handles POST /v1/signals/notification.
func (h *Handlers) HandleNotification(c *gin.Context) {
	var sig domain.NotificationSignal
	if err := c.ShouldBindJSON(&sig); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: CodeInvalidRequest})
		return
	}
	c.JSON(http.StatusOK, NotificationResponse{
		Suppressed: h.notifications.OnNotificationPosted(c.Request.Context(), sig),
	})
}

// HandleHeartbeat handles POST /v1/input/heartbeat.
func (h *Handlers) HandleHeartbeat(c *gin.Context) {
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: CodeInvalidRequest})
		return
	}
	h.input.HostHeartbeat(req.Connected)
	c.Status(http.StatusNoContent)
}

// HandleBlocked handles GET /v1/input/blocked.
func (h *Handlers) HandleBlocked(c *gin.Context) {
	c.JSON(http.StatusOK, BlockedResponse{Blocking: h.input.Blocking()})
}

// HandleKey handles POST /v1/input/key.
func (h *Handlers) HandleKey(c *gin.Context) {
	var ev domain.KeyEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: CodeInvalidRequest})
		return
	}
	c.JSON(http.StatusOK, KeyResponse{Consume: h.input.ShouldConsumeKey(ev)})
}

// HandleWindow handles POST /v1/input/window.
func (h *Handlers) HandleWindow(c *gin.Context) {
	var req WindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: CodeInvalidRequest})
		return
	}

	var resp WindowResponse
	if sig, ok := h.input.WindowChanged(req.Package); ok {
		resp.Intrusion = true
		resp.Reasserted = h.intrusions.OnIntrusion(c.Request.Context(), sig)
	}
	c.JSON(http.StatusOK, resp)
}
