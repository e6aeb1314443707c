package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

func TestWatchdog_NoopWhileUnlocked(t *testing.T) {
	ch := newFakeChannel()
	w := NewWatchdog(staticStatus(false), newTestOrchestrator(ch), 0, nil, zap.NewNop())

	reasserted := w.OnIntrusion(context.Background(), domain.IntrusionSignal{Package: "com.android.chrome"})

	assert.False(t, reasserted)
	assert.Empty(t, ch.executed())
}

func TestWatchdog_ReassertsWhileLocked(t *testing.T) {
	ch := newFakeChannel()
	w := NewWatchdog(staticStatus(true), newTestOrchestrator(ch), 0, nil, zap.NewNop())

	reasserted := w.OnIntrusion(context.Background(), domain.IntrusionSignal{Package: "com.android.chrome"})

	assert.True(t, reasserted)
	assert.Equal(t, []string{
		SetHomeRoleCommand(testSelf.Package),
		SetLegacyHomeActivityCommand(testSelf),
		ForceStartHomeCommand(testSelf),
	}, ch.executed())
}

func TestWatchdog_IgnoresOwnPackage(t *testing.T) {
	ch := newFakeChannel()
	w := NewWatchdog(staticStatus(true), newTestOrchestrator(ch), 0, nil, zap.NewNop())

	assert.False(t, w.OnIntrusion(context.Background(), domain.IntrusionSignal{Package: testSelf.Package}))
	assert.Empty(t, ch.executed())
}

func TestWatchdog_ThrottlesBursts(t *testing.T) {
	ch := newFakeChannel()
	w := NewWatchdog(staticStatus(true), newTestOrchestrator(ch), time.Hour, nil, zap.NewNop())
	sig := domain.IntrusionSignal{Package: "com.android.settings"}

	assert.True(t, w.OnIntrusion(context.Background(), sig))
	assert.False(t, w.OnIntrusion(context.Background(), sig))
	assert.False(t, w.OnIntrusion(context.Background(), sig))
	assert.Equal(t, 1, ch.count(ForceStartHomeCommand(testSelf)))
}

func TestWatchdog_UnthrottledWithZeroInterval(t *testing.T) {
	ch := newFakeChannel()
	w := NewWatchdog(staticStatus(true), newTestOrchestrator(ch), 0, nil, zap.NewNop())
	sig := domain.IntrusionSignal{Package: "com.android.settings"}

	assert.True(t, w.OnIntrusion(context.Background(), sig))
	assert.True(t, w.OnIntrusion(context.Background(), sig))
	assert.Equal(t, 2, ch.count(ForceStartHomeCommand(testSelf)))
}

func TestNotificationSuppressor(t *testing.T) {
	t.Run("unlocked is a no-op", func(t *testing.T) {
		c := &mockCanceller{}
		n := NewNotificationSuppressor(staticStatus(false), c, nil, zap.NewNop())

		assert.False(t, n.OnNotificationPosted(context.Background(), domain.NotificationSignal{Key: "k"}))
		assert.Zero(t, c.calls)
	})

	t.Run("locked cancels all", func(t *testing.T) {
		c := &mockCanceller{}
		n := NewNotificationSuppressor(staticStatus(true), c, nil, zap.NewNop())

		assert.True(t, n.OnNotificationPosted(context.Background(), domain.NotificationSignal{Key: "k"}))
		assert.Equal(t, 1, c.calls)
	})

	t.Run("cancel failure is reported", func(t *testing.T) {
		c := &mockCanceller{err: errSynthetic}
		n := NewNotificationSuppressor(staticStatus(true), c, nil, zap.NewNop())

		assert.False(t, n.OnNotificationPosted(context.Background(), domain.NotificationSignal{Key: "k"}))
	})
}
