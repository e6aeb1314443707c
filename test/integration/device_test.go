//go:build integration

package integration

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

var (
	addRoleHolder   = regexp.MustCompile(`^cmd role add-role-holder --user 0 android\.app\.role\.HOME (\S+)$`)
	setHomeActivity = regexp.MustCompile(`^cmd package set-home-activity --user 0 (\S+)/(\S+)$`)
	amStartHome     = regexp.MustCompile(`^am start -a android\.intent\.action\.MAIN -c android\.intent\.category\.HOME -n (\S+)/\S+$`)
	getVolume       = regexp.MustCompile(`^cmd media_session volume --stream (\d+) --get$`)
	setVolume       = regexp.MustCompile(`^cmd media_session volume --stream (\d+) --set (\d+)$`)
	setDnd          = regexp.MustCompile(`^cmd notification set_dnd (\w+)$`)
)

// fakeDevice is a domain.CommandChannel that interprets the shell commands
// the lock engine issues and keeps a small model of device state.
type fakeDevice struct {
	mu sync.Mutex

	available   bool
	roleService bool
	launchers   map[string]domain.LauncherIdentity

	home          domain.LauncherIdentity
	foreground    string
	volumes       map[int]int
	policyGranted bool
	dnd           string
	notifications []string
	listeners     []string
	executed      []string
}

func newFakeDevice(launchers ...domain.LauncherIdentity) *fakeDevice {
	d := &fakeDevice{
		available:   true,
		roleService: true,
		launchers:   make(map[string]domain.LauncherIdentity),
		volumes:     map[int]int{1: 3, 2: 5, 3: 9, 5: 4},
		dnd:         "off",
	}
	for _, l := range launchers {
		d.launchers[l.Package] = l
	}
	if len(launchers) > 0 {
		d.home = launchers[0]
		d.foreground = launchers[0].Package
	}
	return d
}

func (d *fakeDevice) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.available
}

func (d *fakeDevice) HasPermission() bool { return d.Available() }
func (d *fakeDevice) RequestPermission()  {}

func (d *fakeDevice) Execute(_ context.Context, command string) domain.CommandResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.available {
		return domain.CommandResult{ExitCode: domain.ExitChannelUnavailable}
	}
	d.executed = append(d.executed, command)

	ok := domain.CommandResult{}
	fail := func(msg string) domain.CommandResult { return domain.CommandResult{ExitCode: 1, Stderr: msg} }

	switch {
	case strings.HasPrefix(command, "cmd package resolve-activity"):
		if d.home.IsZero() {
			return domain.CommandResult{Stdout: "No activity found"}
		}
		return domain.CommandResult{Stdout: d.home.FlattenedName()}

	case addRoleHolder.MatchString(command):
		if !d.roleService {
			return fail("Can't find service: role")
		}
		pkg := addRoleHolder.FindStringSubmatch(command)[1]
		l, known := d.launchers[pkg]
		if !known {
			return fail("unknown package " + pkg)
		}
		d.home = l
		return ok

	case strings.HasPrefix(command, "cmd role remove-role-holder"):
		if !d.roleService {
			return fail("Can't find service: role")
		}
		return ok

	case strings.HasPrefix(command, "pm clear-package-preferred-activities"):
		return ok

	case setHomeActivity.MatchString(command):
		m := setHomeActivity.FindStringSubmatch(command)
		l, known := d.launchers[m[1]]
		if !known || l.Component != m[2] {
			return fail("Component not found")
		}
		d.home = l
		return ok

	case amStartHome.MatchString(command):
		d.foreground = amStartHome.FindStringSubmatch(command)[1]
		return ok

	case strings.HasPrefix(command, "am start -a android.settings."):
		d.foreground = "com.android.settings"
		return ok

	case getVolume.MatchString(command):
		stream, _ := strconv.Atoi(getVolume.FindStringSubmatch(command)[1])
		return domain.CommandResult{Stdout: fmt.Sprintf("volume is %d in range [0..15]", d.volumes[stream])}

	case setVolume.MatchString(command):
		m := setVolume.FindStringSubmatch(command)
		stream, _ := strconv.Atoi(m[1])
		level, _ := strconv.Atoi(m[2])
		d.volumes[stream] = level
		return ok

	case strings.HasPrefix(command, "cmd appops get"):
		if d.policyGranted {
			return domain.CommandResult{Stdout: "ACCESS_NOTIFICATION_POLICY: allow"}
		}
		return domain.CommandResult{Stdout: "ACCESS_NOTIFICATION_POLICY: default"}

	case strings.HasPrefix(command, "cmd appops set") && strings.HasSuffix(command, "ACCESS_NOTIFICATION_POLICY allow"):
		d.policyGranted = true
		return ok

	case setDnd.MatchString(command):
		d.dnd = setDnd.FindStringSubmatch(command)[1]
		return ok

	case strings.HasPrefix(command, "cmd notification allow_listener "):
		d.listeners = append(d.listeners, strings.TrimPrefix(command, "cmd notification allow_listener "))
		return ok

	case command == "service call notification 1":
		d.notifications = nil
		return ok

	case command == "cmd notification list":
		return domain.CommandResult{Stdout: strings.Join(d.notifications, "\n")}

	case command == "dumpsys activity activities":
		return domain.CommandResult{
			Stdout: fmt.Sprintf("  topResumedActivity=ActivityRecord{1a2b u0 %s/.Main t1}", d.foreground),
		}
	}
	return fail("unknown command")
}

func (d *fakeDevice) Home() domain.LauncherIdentity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.home
}

func (d *fakeDevice) Foreground() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.foreground
}

func (d *fakeDevice) SetForeground(pkg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foreground = pkg
}

func (d *fakeDevice) Volume(stream domain.StreamID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volumes[int(stream)]
}

func (d *fakeDevice) DND() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dnd
}

func (d *fakeDevice) Post(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifications = append(d.notifications, key)
}

func (d *fakeDevice) Notifications() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.notifications...)
}

func (d *fakeDevice) SetRoleService(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roleService = enabled
}

func (d *fakeDevice) SetAvailable(available bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.available = available
}
