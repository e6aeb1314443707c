package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// SuppressionConfig bounds the notification-policy permission wait.
type SuppressionConfig struct {
	Package      string
	PollInterval time.Duration
	PollAttempts int
}

// Suppression mutes audio streams and engages do-not-disturb while locked,
// keeping per-stream snapshots in the lock store so they survive restarts.
type Suppression struct {
	audio        domain.AudioPort
	policy       domain.NotificationPolicyPort
	store        domain.LockStore
	orchestrator *Orchestrator
	config       SuppressionConfig
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *zap.Logger
}

// NewSuppression creates the suppression subsystem.
func NewSuppression(
	audio domain.AudioPort,
	policy domain.NotificationPolicyPort,
	store domain.LockStore,
	orchestrator *Orchestrator,
	config SuppressionConfig,
	logger *zap.Logger,
) *Suppression {
	return &Suppression{
		audio:        audio,
		policy:       policy,
		store:        store,
		orchestrator: orchestrator,
		config:       config,
		sleep:        sleepContext,
		logger:       logger,
	}
}

// Enable snapshots and mutes every suppressed stream, then engages
// do-not-disturb if policy access can be obtained. Never fails.
func (s *Suppression) Enable(ctx context.Context) {
	s.muteStreams(ctx)
	s.enableDND(ctx)
}

func (s *Suppression) muteStreams(ctx context.Context) {
	record, err := s.store.Load()
	if err != nil {
		s.logger.Warn("cannot read volume snapshots, audio left untouched", zap.Error(err))
		return
	}

	for _, stream := range domain.SuppressedStreams {
		if _, saved := record.SavedStreamVolumes[stream]; !saved {
			level, err := s.audio.GetVolume(ctx, stream)
			if err != nil {
				s.logger.Warn("failed to read stream volume",
					zap.Stringer("stream", stream),
					zap.Error(err))
				continue
			}
			if err := s.store.SaveStreamVolume(stream, level); err != nil {
				// Muting without a snapshot would lose the user's level.
				s.logger.Warn("failed to save volume snapshot",
					zap.Stringer("stream", stream),
					zap.Error(err))
				continue
			}
			s.logger.Debug("volume snapshot saved",
				zap.Stringer("stream", stream),
				zap.Int("level", level))
		}

		if err := s.audio.SetVolume(ctx, stream, 0); err != nil {
			// The OS refuses volume changes while it enforces silence itself.
			s.logger.Debug("mute rejected, treating stream as silent",
				zap.Stringer("stream", stream),
				zap.Error(err))
		}
	}
}

func (s *Suppression) enableDND(ctx context.Context) {
	granted := s.policy.IsPolicyAccessGranted(ctx)
	if !granted {
		s.orchestrator.GrantNotificationPolicyAccess(ctx, s.config.Package)
		for i := 0; i < s.config.PollAttempts; i++ {
			if err := s.sleep(ctx, s.config.PollInterval); err != nil {
				return
			}
			if granted = s.policy.IsPolicyAccessGranted(ctx); granted {
				break
			}
		}
	}
	if !granted {
		s.logger.Warn("notification policy access not granted, do-not-disturb not engaged",
			zap.Int("attempts", s.config.PollAttempts))
		return
	}
	if err := s.policy.SetInterruptionFilter(ctx, domain.FilterPriority); err != nil {
		s.logger.Warn("failed to engage do-not-disturb", zap.Error(err))
		return
	}
	s.logger.Info("do-not-disturb engaged")
}

// Disable restores every stream with a snapshot and removes the snapshot
// whether or not the restore succeeded, then reverts do-not-disturb.
// Only store failures are returned.
func (s *Suppression) Disable(ctx context.Context) error {
	var errs []error

	record, err := s.store.Load()
	if err != nil {
		errs = append(errs, fmt.Errorf("load volume snapshots: %w", err))
	} else {
		streams := make([]domain.StreamID, 0, len(record.SavedStreamVolumes))
		for stream := range record.SavedStreamVolumes {
			streams = append(streams, stream)
		}
		sort.Slice(streams, func(i, j int) bool { return streams[i] < streams[j] })

		for _, stream := range streams {
			level := record.SavedStreamVolumes[stream]
			if err := s.audio.SetVolume(ctx, stream, level); err != nil {
				s.logger.Warn("failed to restore stream volume",
					zap.Stringer("stream", stream),
					zap.Int("level", level),
					zap.Error(err))
			}
			if err := s.store.RemoveStreamVolume(stream); err != nil {
				errs = append(errs, fmt.Errorf("remove %s snapshot: %w", stream, err))
			}
		}
	}

	if s.policy.IsPolicyAccessGranted(ctx) {
		if err := s.policy.SetInterruptionFilter(ctx, domain.FilterAll); err != nil {
			s.logger.Warn("failed to revert do-not-disturb", zap.Error(err))
		}
	}

	return errors.Join(errs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
