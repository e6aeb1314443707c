package infra

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// Persisted field names. Both store backends use the same flat keys.
const (
	keyUnlockDeadline = "unlock_deadline_ms"
	keyOriginalPkg    = "original_pkg"
	keyOriginalCls    = "original_cls"
	keyVolumePrefix   = "vol_stream_"
)

// volumeKey returns the snapshot key for a stream.
func volumeKey(stream domain.StreamID) string {
	return keyVolumePrefix + strconv.Itoa(int(stream))
}

// decodeRecord builds a LockRecord from flat key-value pairs.
// Unparseable values are reported rather than silently dropped.
func decodeRecord(values map[string]string) (*domain.LockRecord, error) {
	record := &domain.LockRecord{SavedStreamVolumes: make(map[domain.StreamID]int)}

	if raw, ok := values[keyUnlockDeadline]; ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", keyUnlockDeadline, raw, err)
		}
		deadline := time.UnixMilli(ms)
		record.UnlockDeadline = &deadline
	}

	if pkg, ok := values[keyOriginalPkg]; ok && pkg != "" {
		record.OriginalLauncher = &domain.LauncherIdentity{
			Package:   pkg,
			Component: values[keyOriginalCls],
		}
	}

	for k, v := range values {
		if !strings.HasPrefix(k, keyVolumePrefix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(k, keyVolumePrefix))
		if err != nil {
			return nil, fmt.Errorf("invalid volume key %q: %w", k, err)
		}
		level, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid volume for %q: %w", k, err)
		}
		record.SavedStreamVolumes[domain.StreamID(id)] = level
	}

	return record, nil
}

func encodeDeadline(deadline time.Time) string {
	return strconv.FormatInt(deadline.UnixMilli(), 10)
}
