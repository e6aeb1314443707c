package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/metrics"
)

// EngineConfig controls engine timing.
type EngineConfig struct {
	TickInterval      time.Duration // Countdown period while locked
	IdleInterval      time.Duration // Input-host readiness poll period
	ListenerComponent string        // Notification listener to register on lock
}

// Engine is the lock state machine. It is the only writer of the lock
// record and the input gate; every entry point is serialized by mu.
type Engine struct {
	mu sync.Mutex

	store        domain.LockStore
	resolver     domain.LauncherResolver
	orchestrator *Orchestrator
	suppression  *Suppression
	gate         *InputGate
	feed         *StatusFeed
	metrics      *metrics.Metrics
	config       EngineConfig
	logger       *zap.Logger

	now       func() time.Time
	sessionID func() string

	state    domain.LockState
	deadline time.Time
	session  string

	lifetime        context.Context
	stop            context.CancelFunc
	cancelCountdown context.CancelFunc
	generation      uint64
}

// NewEngine creates an engine in the UNLOCKED state. Call Recover before
// serving requests.
func NewEngine(
	store domain.LockStore,
	resolver domain.LauncherResolver,
	orchestrator *Orchestrator,
	suppression *Suppression,
	gate *InputGate,
	m *metrics.Metrics,
	config EngineConfig,
	logger *zap.Logger,
) *Engine {
	lifetime, stop := context.WithCancel(context.Background())
	return &Engine{
		store:        store,
		resolver:     resolver,
		orchestrator: orchestrator,
		suppression:  suppression,
		gate:         gate,
		feed:         NewStatusFeed(),
		metrics:      m,
		config:       config,
		logger:       logger,
		now:          time.Now,
		sessionID:    func() string { return uuid.NewString() },
		state:        domain.StateUnlocked,
		lifetime:     lifetime,
		stop:         stop,
	}
}

// Status returns the latest published status.
func (e *Engine) Status() domain.LockStatus {
	return e.feed.Status()
}

// Subscribe streams status changes. See StatusFeed.Subscribe.
func (e *Engine) Subscribe() (<-chan domain.LockStatus, func()) {
	return e.feed.Subscribe()
}

// IsLocked reports whether a lock is active.
func (e *Engine) IsLocked() bool {
	return e.feed.Status().IsLocked
}

// State returns the current state machine state.
func (e *Engine) State() domain.LockState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Recover recomputes the state from the lock record after a (re)start.
func (e *Engine) Recover(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx = context.WithoutCancel(ctx)

	record, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load lock record: %w", err)
	}

	if record.HasDeadline() {
		deadline := *record.UnlockDeadline
		e.deadline = deadline
		if deadline.After(e.now()) {
			e.session = e.sessionID()
			e.logger.Info("rehydrating active lock",
				zap.Time("deadline", deadline),
				zap.String("session", e.session))
			e.setState(domain.StateLocked)
			e.gate.SetBlocking(true)
			e.suppression.Enable(ctx)
			e.armCountdown()
			e.publish()
			return nil
		}

		e.logger.Info("lock expired while stopped, unlocking", zap.Time("deadline", deadline))
		e.setState(domain.StateUnlocking)
		_, err := e.unlockLocked(ctx)
		return err
	}

	e.recoverInterruptedUnlock(ctx, record)
	e.setState(domain.StateUnlocked)
	e.publish()
	return nil
}

// recoverInterruptedUnlock finishes an unlock that stopped after the
// deadline was cleared but before audio or the launcher were restored.
func (e *Engine) recoverInterruptedUnlock(ctx context.Context, record *domain.LockRecord) {
	if len(record.SavedStreamVolumes) > 0 {
		e.logger.Warn("restoring leftover volume snapshots",
			zap.Int("streams", len(record.SavedStreamVolumes)))
		if err := e.suppression.Disable(ctx); err != nil {
			e.logger.Warn("failed to clear leftover snapshots", zap.Error(err))
		}
	}

	if record.OriginalLauncher == nil || !e.orchestrator.Ready() {
		return
	}
	current, err := e.resolver.ResolveCurrentHomeApp(ctx)
	if err != nil || current == nil {
		return
	}
	if current.Package == e.orchestrator.Self().Package {
		e.logger.Warn("home still held by this app, retrying release",
			zap.String("target", record.OriginalLauncher.FlattenedName()))
		e.orchestrator.Release(ctx, record.OriginalLauncher)
	}
}

// StartLock locks the device for the given number of minutes.
func (e *Engine) StartLock(ctx context.Context, minutes int) error {
	if minutes <= 0 {
		return domain.ErrInvalidDuration
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	ctx = context.WithoutCancel(ctx)

	if !e.orchestrator.Ready() {
		return domain.ErrChannelUnavailable
	}

	record, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load lock record: %w", err)
	}

	self := e.orchestrator.Self()
	current, err := e.resolver.ResolveCurrentHomeApp(ctx)
	if err != nil {
		e.logger.Warn("failed to resolve current launcher", zap.Error(err))
		current = nil
	}
	switch {
	case current == nil:
		return domain.ErrNoOriginalLauncher
	case current.Package == self.Package:
		if record.OriginalLauncher == nil {
			return domain.ErrNoOriginalLauncher
		}
		e.logger.Info("home already held by this app, keeping recorded launcher",
			zap.String("original", record.OriginalLauncher.FlattenedName()))
	default:
		if err := e.store.SetOriginalLauncher(*current); err != nil {
			return fmt.Errorf("failed to persist original launcher: %w", err)
		}
	}

	e.session = e.sessionID()
	e.setState(domain.StateLocking)
	e.orchestrator.Takeover(ctx, self)

	deadline := e.now().Add(time.Duration(minutes) * time.Minute)
	if err := e.store.SetDeadline(deadline); err != nil {
		e.logger.Error("failed to persist deadline, rolling back", zap.Error(err))
		if _, rollbackErr := e.unlockLocked(ctx); rollbackErr != nil {
			err = errors.Join(err, rollbackErr)
		}
		return fmt.Errorf("failed to persist deadline: %w", err)
	}
	e.deadline = deadline

	e.setState(domain.StateLocked)
	e.suppression.Enable(ctx)
	e.orchestrator.RegisterNotificationListener(ctx, e.config.ListenerComponent)
	e.gate.SetBlocking(true)
	e.armCountdown()
	e.publish()

	e.logger.Info("lock started",
		zap.Int("minutes", minutes),
		zap.Time("deadline", deadline),
		zap.String("session", e.session))
	return nil
}

// Unlock lifts the lock. It is a no-op when already unlocked. The whole
// sequence always runs; store failures are returned once it has finished.
func (e *Engine) Unlock(ctx context.Context) (domain.ReleaseOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unlockLocked(context.WithoutCancel(ctx))
}

func (e *Engine) unlockLocked(ctx context.Context) (domain.ReleaseOutcome, error) {
	if e.state == domain.StateUnlocked {
		return domain.ReleaseOutcome{Tier: domain.TierNone, Success: true}, nil
	}

	session := e.session
	e.setState(domain.StateUnlocking)
	e.gate.SetBlocking(false)

	var errs []error
	if err := e.suppression.Disable(ctx); err != nil {
		errs = append(errs, err)
	}
	e.stopCountdown()
	if err := e.store.ClearDeadline(); err != nil {
		errs = append(errs, fmt.Errorf("clear deadline: %w", err))
	}

	var target *domain.LauncherIdentity
	if record, err := e.store.Load(); err != nil {
		errs = append(errs, fmt.Errorf("load original launcher: %w", err))
	} else {
		target = record.OriginalLauncher
	}
	outcome := e.orchestrator.Release(ctx, target)

	e.deadline = time.Time{}
	e.session = ""
	e.setState(domain.StateUnlocked)

	e.logger.Info("lock released",
		zap.String("session", session),
		zap.String("tier", string(outcome.Tier)),
		zap.Bool("manual", outcome.ManualSelectionRequired()))
	return outcome, errors.Join(errs...)
}

// Run polls input-host readiness until ctx is done, then stops the
// countdown. The lock itself stays persisted.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.config.IdleInterval)
	defer ticker.Stop()

	e.refreshReadiness()
	for {
		select {
		case <-ctx.Done():
			e.Close()
			return
		case <-ticker.C:
			e.refreshReadiness()
		}
	}
}

// Close stops background work without unlocking.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopCountdown()
	e.stop()
}

func (e *Engine) refreshReadiness() {
	if e.feed.setWatchdogReady(e.gate.HostConnected()) {
		e.logger.Debug("input host readiness changed",
			zap.Bool("ready", e.feed.Status().WatchdogReady))
	}
}

// armCountdown replaces any running countdown with one for e.deadline.
func (e *Engine) armCountdown() {
	e.stopCountdown()
	e.generation++
	ctx, cancel := context.WithCancel(e.lifetime)
	e.cancelCountdown = cancel
	go e.countdown(ctx, e.generation)
}

func (e *Engine) stopCountdown() {
	if e.cancelCountdown != nil {
		e.cancelCountdown()
		e.cancelCountdown = nil
	}
}

func (e *Engine) countdown(ctx context.Context, generation uint64) {
	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.tick(ctx, generation) {
				return
			}
		}
	}
}

// tick refreshes the countdown and unlocks once the deadline has passed.
// It returns true when this countdown is finished.
func (e *Engine) tick(ctx context.Context, generation uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if generation != e.generation || e.state != domain.StateLocked {
		return true
	}
	if e.deadline.After(e.now()) {
		e.publish()
		return false
	}

	e.logger.Info("lock deadline reached", zap.String("session", e.session))
	if _, err := e.unlockLocked(context.WithoutCancel(ctx)); err != nil {
		e.logger.Error("unlock finished with errors", zap.Error(err))
	}
	return true
}

// secondsRemaining is max(0, deadline-now) in whole seconds.
func (e *Engine) secondsRemaining() int64 {
	if e.state != domain.StateLocked {
		return 0
	}
	ms := e.deadline.Sub(e.now()).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return ms / 1000
}

// setState records a transition and publishes it, so readers see
// IsLocked drop as soon as UNLOCKING begins.
func (e *Engine) setState(state domain.LockState) {
	if e.state == state {
		return
	}
	e.logger.Debug("lock state transition",
		zap.String("from", string(e.state)),
		zap.String("to", string(state)))
	e.state = state
	e.metrics.Transition(string(state))
	e.publish()
}

func (e *Engine) publish() {
	status := domain.LockStatus{
		IsLocked:         e.state == domain.StateLocked,
		SecondsRemaining: e.secondsRemaining(),
		WatchdogReady:    e.gate.HostConnected(),
		State:            e.state,
		SessionID:        e.session,
	}
	e.feed.publish(status)
	e.metrics.Status(status.IsLocked, status.SecondsRemaining)
}
