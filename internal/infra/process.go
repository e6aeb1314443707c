package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// IsRunning checks if a PID exists and is not a zombie.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	if err != nil || !exists {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	statuses, err := p.Status()
	if err != nil {
		return true // Exists but status unreadable (e.g. other user)
	}
	for _, s := range statuses {
		if s == process.Zombie {
			return false
		}
	}
	return true
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// PIDFile records the daemon PID for liveness checks from the CLI.
type PIDFile struct {
	path string
	pm   domain.ProcessManager
}

// NewPIDFile creates a pid file handle.
func NewPIDFile(path string, pm domain.ProcessManager) *PIDFile {
	return &PIDFile{path: path, pm: pm}
}

// Write records the current PID. Fails if another live daemon owns the file.
func (f *PIDFile) Write() error {
	if pid, err := f.Read(); err == nil && pid != f.pm.GetCurrentPID() && f.pm.IsRunning(pid) {
		return fmt.Errorf("daemon already running with pid %d", pid)
	}
	return os.WriteFile(f.path, []byte(strconv.Itoa(f.pm.GetCurrentPID())), 0600)
}

// Read returns the recorded PID.
func (f *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", f.path, err)
	}
	return pid, nil
}

// IsAlive reports whether the recorded daemon is running.
func (f *PIDFile) IsAlive() bool {
	pid, err := f.Read()
	if err != nil {
		return false
	}
	return f.pm.IsRunning(pid)
}

// Remove deletes the pid file if it still names this process.
func (f *PIDFile) Remove() error {
	pid, err := f.Read()
	if err != nil {
		return nil
	}
	if pid != f.pm.GetCurrentPID() {
		return nil
	}
	return os.Remove(f.path)
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
