package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

var (
	testSelf = domain.LauncherIdentity{
		Package:   "com.focusd.locker",
		Component: "com.focusd.locker.MainActivity",
	}
	testOriginal = domain.LauncherIdentity{
		Package:   "com.google.android.apps.nexuslauncher",
		Component: "com.google.android.apps.nexuslauncher.NexusLauncherActivity",
	}
	testFallback = domain.LauncherIdentity{
		Package:   "com.android.launcher3",
		Component: "com.android.launcher3.Launcher",
	}
	errSynthetic = errors.New("synthetic failure")
)

// fakeChannel records every command and answers with scripted exit codes.
// Unscripted commands succeed.
type fakeChannel struct {
	mu        sync.Mutex
	available bool
	permitted bool
	exitCodes map[string]int
	commands  []string
	onExecute func(command string)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		available: true,
		permitted: true,
		exitCodes: make(map[string]int),
	}
}

func (c *fakeChannel) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

func (c *fakeChannel) HasPermission() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permitted
}

func (c *fakeChannel) RequestPermission() {}

func (c *fakeChannel) Execute(_ context.Context, command string) domain.CommandResult {
	c.mu.Lock()
	c.commands = append(c.commands, command)
	result := domain.CommandResult{ExitCode: c.exitCodes[command]}
	hook := c.onExecute
	c.mu.Unlock()

	if hook != nil {
		hook(command)
	}
	return result
}

func (c *fakeChannel) setOnExecute(hook func(command string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExecute = hook
}

func (c *fakeChannel) fail(commands ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cmd := range commands {
		c.exitCodes[cmd] = 1
	}
}

func (c *fakeChannel) executed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.commands))
	copy(out, c.commands)
	return out
}

func (c *fakeChannel) count(command string) int {
	n := 0
	for _, cmd := range c.executed() {
		if cmd == command {
			n++
		}
	}
	return n
}

func (c *fakeChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = nil
}

// memoryStore is an in-memory domain.LockStore with injectable failures.
type memoryStore struct {
	mu               sync.Mutex
	deadline         *time.Time
	launcher         *domain.LauncherIdentity
	volumes          map[domain.StreamID]int
	loadErr          error
	setDeadlineErr   error
	clearDeadlineErr error
	removeVolumeErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{volumes: make(map[domain.StreamID]int)}
}

func (s *memoryStore) Load() (*domain.LockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	record := &domain.LockRecord{SavedStreamVolumes: make(map[domain.StreamID]int)}
	if s.deadline != nil {
		d := *s.deadline
		record.UnlockDeadline = &d
	}
	if s.launcher != nil {
		l := *s.launcher
		record.OriginalLauncher = &l
	}
	for k, v := range s.volumes {
		record.SavedStreamVolumes[k] = v
	}
	return record, nil
}

func (s *memoryStore) SetDeadline(deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setDeadlineErr != nil {
		return s.setDeadlineErr
	}
	s.deadline = &deadline
	return nil
}

func (s *memoryStore) ClearDeadline() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearDeadlineErr != nil {
		return s.clearDeadlineErr
	}
	s.deadline = nil
	return nil
}

func (s *memoryStore) SetOriginalLauncher(id domain.LauncherIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launcher = &id
	return nil
}

func (s *memoryStore) SaveStreamVolume(stream domain.StreamID, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes[stream] = level
	return nil
}

func (s *memoryStore) RemoveStreamVolume(stream domain.StreamID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeVolumeErr != nil {
		return s.removeVolumeErr
	}
	delete(s.volumes, stream)
	return nil
}

func (s *memoryStore) Path() string { return "memory" }

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) hasDeadline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline != nil
}

func (s *memoryStore) snapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.volumes)
}

// mockAudio keeps stream levels in memory. setErr fails every SetVolume.
type mockAudio struct {
	mu      sync.Mutex
	levels  map[domain.StreamID]int
	getErr  error
	setErr  error
	onSet   func()
	setCall int
}

func newMockAudio() *mockAudio {
	return &mockAudio{levels: map[domain.StreamID]int{
		domain.StreamRing:         5,
		domain.StreamNotification: 4,
		domain.StreamSystem:       3,
		domain.StreamMusic:        9,
	}}
}

func (a *mockAudio) GetVolume(_ context.Context, stream domain.StreamID) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.getErr != nil {
		return 0, a.getErr
	}
	return a.levels[stream], nil
}

func (a *mockAudio) SetVolume(_ context.Context, stream domain.StreamID, level int) error {
	a.mu.Lock()
	hook := a.onSet
	a.setCall++
	a.mu.Unlock()
	if hook != nil {
		hook()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.setErr != nil {
		return a.setErr
	}
	a.levels[stream] = level
	return nil
}

func (a *mockAudio) level(stream domain.StreamID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.levels[stream]
}

func (a *mockAudio) failSet(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setErr = err
}

// mockPolicy becomes granted after grantAfter access checks (0 = already
// granted, negative = never).
type mockPolicy struct {
	mu         sync.Mutex
	grantAfter int
	checks     int
	filters    []domain.InterruptionFilter
	filterErr  error
}

func (p *mockPolicy) IsPolicyAccessGranted(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks++
	if p.grantAfter < 0 {
		return false
	}
	return p.checks > p.grantAfter
}

func (p *mockPolicy) SetInterruptionFilter(_ context.Context, filter domain.InterruptionFilter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.filterErr != nil {
		return p.filterErr
	}
	p.filters = append(p.filters, filter)
	return nil
}

func (p *mockPolicy) applied() []domain.InterruptionFilter {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.InterruptionFilter, len(p.filters))
	copy(out, p.filters)
	return out
}

// mockResolver returns a fixed launcher.
type mockResolver struct {
	mu      sync.Mutex
	current *domain.LauncherIdentity
	err     error
}

func (r *mockResolver) ResolveCurrentHomeApp(context.Context) (*domain.LauncherIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.current == nil {
		return nil, nil
	}
	id := *r.current
	return &id, nil
}

func (r *mockResolver) set(id *domain.LauncherIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = id
}

// mockCanceller counts CancelAll calls.
type mockCanceller struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *mockCanceller) CancelAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

// staticStatus is a fixed LockStatusReader.
type staticStatus bool

func (s staticStatus) IsLocked() bool { return bool(s) }

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func noSleep(context.Context, time.Duration) error { return nil }
