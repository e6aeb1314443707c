package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const lockFileName = "lock.json"

// FileLockStore implements domain.LockStore using a JSON file of flat
// key-value pairs. Writes hold an flock and replace the file atomically.
type FileLockStore struct {
	path string
}

// NewFileLockStore creates a file store in the data directory.
func NewFileLockStore(dataDir string) (*FileLockStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileLockStore{path: filepath.Join(dataDir, lockFileName)}, nil
}

// NewFileLockStoreWithPath creates a store at a specific path (for testing).
func NewFileLockStoreWithPath(path string) *FileLockStore {
	return &FileLockStore{path: path}
}

// Load returns the full lock record. A missing file is an empty record.
func (s *FileLockStore) Load() (*domain.LockRecord, error) {
	values, err := s.read()
	if err != nil {
		return nil, err
	}
	return decodeRecord(values)
}

// SetDeadline persists the unlock deadline.
func (s *FileLockStore) SetDeadline(deadline time.Time) error {
	return s.update(func(values map[string]string) {
		values[keyUnlockDeadline] = encodeDeadline(deadline)
	})
}

// ClearDeadline removes the unlock deadline.
func (s *FileLockStore) ClearDeadline() error {
	return s.update(func(values map[string]string) {
		delete(values, keyUnlockDeadline)
	})
}

// SetOriginalLauncher persists the launcher identity.
func (s *FileLockStore) SetOriginalLauncher(id domain.LauncherIdentity) error {
	return s.update(func(values map[string]string) {
		values[keyOriginalPkg] = id.Package
		values[keyOriginalCls] = id.Component
	})
}

// SaveStreamVolume persists a volume snapshot.
func (s *FileLockStore) SaveStreamVolume(stream domain.StreamID, level int) error {
	return s.update(func(values map[string]string) {
		values[volumeKey(stream)] = strconv.Itoa(level)
	})
}

// RemoveStreamVolume removes one stream's snapshot.
func (s *FileLockStore) RemoveStreamVolume(stream domain.StreamID) error {
	return s.update(func(values map[string]string) {
		delete(values, volumeKey(stream))
	})
}

// Path returns the JSON file path.
func (s *FileLockStore) Path() string {
	return s.path
}

// Close is a no-op; every write is already on disk.
func (s *FileLockStore) Close() error {
	return nil
}

func (s *FileLockStore) read() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("corrupt lock file %s: %w", s.path, err)
	}
	return values, nil
}

// update applies mutate under an exclusive flock and writes the result.
func (s *FileLockStore) update(mutate func(map[string]string)) error {
	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	values, err := s.read()
	if err != nil {
		return err
	}
	mutate(values)
	return s.atomicWrite(values)
}

// atomicWrite writes the file atomically (write + sync + rename).
func (s *FileLockStore) atomicWrite(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	f.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileLockStore implements domain.LockStore.
var _ domain.LockStore = (*FileLockStore)(nil)
