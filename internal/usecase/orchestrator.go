// Package usecase contains application business logic.
package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/metrics"
)

// Orchestrator turns launcher intents into ordered privileged commands.
// It never returns errors: every failure is logged, counted and reflected
// in the returned result.
type Orchestrator struct {
	channel  domain.CommandChannel
	self     domain.LauncherIdentity
	fallback domain.LauncherIdentity
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator acting for self. fallback is the
// system-default launcher used when no original launcher was ever recorded.
func NewOrchestrator(
	channel domain.CommandChannel,
	self domain.LauncherIdentity,
	fallback domain.LauncherIdentity,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		channel:  channel,
		self:     self,
		fallback: fallback,
		metrics:  m,
		logger:   logger,
	}
}

// Self returns the identity of the locking app.
func (o *Orchestrator) Self() domain.LauncherIdentity {
	return o.self
}

// Ready reports whether the channel exists and holds permission.
func (o *Orchestrator) Ready() bool {
	return o.channel.Available() && o.channel.HasPermission()
}

// run issues one command, or records a sentinel result without issuing it
// when the channel cannot be used.
func (o *Orchestrator) run(ctx context.Context, intent, command string) domain.CommandResult {
	if !o.Ready() {
		o.logger.Warn("privileged channel unavailable, command skipped",
			zap.String("intent", intent))
		o.metrics.Command(intent, "unavailable")
		return domain.CommandResult{
			ExitCode: domain.ExitChannelUnavailable,
			Stderr:   domain.ErrChannelUnavailable.Error(),
		}
	}

	result := o.channel.Execute(ctx, command)
	if result.Success() {
		o.logger.Debug("command succeeded", zap.String("intent", intent))
		o.metrics.Command(intent, "success")
	} else {
		o.logger.Warn("command failed",
			zap.String("intent", intent),
			zap.Int("exit_code", result.ExitCode),
			zap.String("stderr", result.Stderr))
		o.metrics.Command(intent, "fail")
	}
	return result
}

// Takeover makes target the default home app. Both the role write and the
// legacy activity write are always attempted.
func (o *Orchestrator) Takeover(ctx context.Context, target domain.LauncherIdentity) domain.TakeoverResult {
	result := domain.TakeoverResult{
		RoleSet:     o.run(ctx, IntentSetHomeRole, SetHomeRoleCommand(target.Package)).Success(),
		ActivitySet: o.run(ctx, IntentSetLegacyHome, SetLegacyHomeActivityCommand(target)).Success(),
	}
	if !result.Any() {
		o.logger.Warn("launcher takeover failed on both paths",
			zap.String("target", target.FlattenedName()))
	} else {
		o.logger.Info("launcher takeover issued",
			zap.String("target", target.FlattenedName()),
			zap.Bool("role", result.RoleSet),
			zap.Bool("activity", result.ActivitySet))
	}
	return result
}

// Release hands the home role back to target through the role, legacy and
// manual tiers. A nil target goes straight to the system-default launcher.
func (o *Orchestrator) Release(ctx context.Context, target *domain.LauncherIdentity) domain.ReleaseOutcome {
	var outcome domain.ReleaseOutcome
	if target == nil || target.IsZero() {
		outcome = o.releaseToFallback(ctx)
	} else {
		outcome = o.releaseCascade(ctx, *target)
	}

	o.metrics.Release(string(outcome.Tier))
	if outcome.ManualSelectionRequired() {
		o.logger.Warn("launcher release exhausted, manual selection required")
	} else {
		o.logger.Info("launcher released",
			zap.String("tier", string(outcome.Tier)),
			zap.String("target", outcome.Target.FlattenedName()))
	}
	return outcome
}

func (o *Orchestrator) releaseCascade(ctx context.Context, target domain.LauncherIdentity) domain.ReleaseOutcome {
	if o.run(ctx, IntentSetHomeRole, SetHomeRoleCommand(target.Package)).Success() {
		o.run(ctx, IntentForceStartHome, ForceStartHomeCommand(target))
		return domain.ReleaseOutcome{Tier: domain.TierRole, Target: &target, Success: true}
	}

	// A role holder outranks the legacy preference, so drop self first.
	// Releases without a role service reject this; only the legacy write
	// decides the tier.
	o.run(ctx, IntentClearHomeRole, ClearHomeRoleCommand(o.self.Package))
	o.run(ctx, IntentClearPreferred, ClearPreferredActivitiesCommand(o.self.Package))
	if o.run(ctx, IntentSetLegacyHome, SetLegacyHomeActivityCommand(target)).Success() {
		o.run(ctx, IntentForceStartHome, ForceStartHomeCommand(target))
		return domain.ReleaseOutcome{Tier: domain.TierLegacy, Target: &target, Success: true}
	}

	return domain.ReleaseOutcome{Tier: domain.TierManual, Target: &target}
}

func (o *Orchestrator) releaseToFallback(ctx context.Context) domain.ReleaseOutcome {
	target := o.fallback
	o.logger.Warn("no original launcher on record, releasing to system default",
		zap.String("target", target.FlattenedName()))

	o.run(ctx, IntentClearPreferred, ClearPreferredActivitiesCommand(o.self.Package))
	if o.run(ctx, IntentSetLegacyHome, SetLegacyHomeActivityCommand(target)).Success() {
		o.run(ctx, IntentForceStartHome, ForceStartHomeCommand(target))
		return domain.ReleaseOutcome{Tier: domain.TierSystemDefault, Target: &target, Success: true}
	}
	return domain.ReleaseOutcome{Tier: domain.TierManual, Target: &target}
}

// ForceForeground starts the locking app with the home intent.
func (o *Orchestrator) ForceForeground(ctx context.Context) domain.CommandResult {
	return o.run(ctx, IntentForceStartHome, ForceStartHomeCommand(o.self))
}

// GrantNotificationPolicyAccess grants pkg do-not-disturb access.
func (o *Orchestrator) GrantNotificationPolicyAccess(ctx context.Context, pkg string) domain.CommandResult {
	return o.run(ctx, IntentGrantPolicyAccess, GrantPolicyAccessCommand(pkg))
}

// RegisterNotificationListener enables the notification listener component.
func (o *Orchestrator) RegisterNotificationListener(ctx context.Context, component string) domain.CommandResult {
	if component == "" {
		return domain.CommandResult{ExitCode: 0}
	}
	return o.run(ctx, IntentRegisterListener, RegisterListenerCommand(component))
}

// OpenDefaultAppsSettings opens the default-apps screen, falling back to
// the main settings screen.
func (o *Orchestrator) OpenDefaultAppsSettings(ctx context.Context) bool {
	if o.run(ctx, IntentOpenDefaultSettings, OpenDefaultAppsSettingsCommand).Success() {
		return true
	}
	return o.run(ctx, IntentOpenDefaultSettings, OpenSettingsCommand).Success()
}
