package infra

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// Shell commands used by the device ports.
const (
	resolveHomeCmd       = "cmd package resolve-activity --brief -a android.intent.action.MAIN -c android.intent.category.HOME"
	getVolumeCmdFmt      = "cmd media_session volume --stream %d --get"
	setVolumeCmdFmt      = "cmd media_session volume --stream %d --set %d"
	getPolicyAccessFmt   = "cmd appops get %s ACCESS_NOTIFICATION_POLICY"
	setDndCmdFmt         = "cmd notification set_dnd %s"
	cancelAllCmd         = "service call notification 1"
	foregroundCmd        = "dumpsys activity activities"
	listNotificationsCmd = "cmd notification list"
)

// Resolver placeholders that are not real launchers.
var resolverPackages = map[string]bool{
	"android":                  true,
	"com.android.internal.app": true,
}

var (
	volumePattern     = regexp.MustCompile(`volume is (\d+)`)
	foregroundPattern = regexp.MustCompile(`(?:topResumedActivity|ResumedActivity)[:=].*?\s([\w.]+)/([\w.$]+)`)
)

// ShellLauncherResolver implements domain.LauncherResolver over the command channel.
type ShellLauncherResolver struct {
	channel domain.CommandChannel
}

// NewShellLauncherResolver creates a launcher resolver.
func NewShellLauncherResolver(channel domain.CommandChannel) *ShellLauncherResolver {
	return &ShellLauncherResolver{channel: channel}
}

// ResolveCurrentHomeApp parses the brief resolve-activity output.
// Returns nil when nothing usable resolves.
func (r *ShellLauncherResolver) ResolveCurrentHomeApp(ctx context.Context) (*domain.LauncherIdentity, error) {
	result := r.channel.Execute(ctx, resolveHomeCmd)
	if !result.Success() {
		return nil, fmt.Errorf("resolve home activity: exit %d: %s", result.ExitCode, result.Stderr)
	}
	return ParseHomeActivity(result.Stdout), nil
}

// ParseHomeActivity extracts "pkg/cls" from resolve-activity output.
// Shorthand classes (".Launcher") are expanded against the package.
func ParseHomeActivity(output string) *domain.LauncherIdentity {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.Contains(trimmed, "/") {
			continue
		}
		parts := strings.Split(trimmed, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		pkg, cls := parts[0], parts[1]
		if strings.HasPrefix(cls, ".") {
			cls = pkg + cls
		}
		if resolverPackages[pkg] {
			continue
		}
		return &domain.LauncherIdentity{Package: pkg, Component: cls}
	}
	return nil
}

// ShellAudio implements domain.AudioPort over the command channel.
type ShellAudio struct {
	channel domain.CommandChannel
}

// NewShellAudio creates an audio port.
func NewShellAudio(channel domain.CommandChannel) *ShellAudio {
	return &ShellAudio{channel: channel}
}

// GetVolume reads the current stream volume.
func (a *ShellAudio) GetVolume(ctx context.Context, stream domain.StreamID) (int, error) {
	result := a.channel.Execute(ctx, fmt.Sprintf(getVolumeCmdFmt, int(stream)))
	if !result.Success() {
		return 0, fmt.Errorf("get %s volume: exit %d: %s", stream, result.ExitCode, result.Stderr)
	}
	m := volumePattern.FindStringSubmatch(result.Stdout)
	if m == nil {
		return 0, fmt.Errorf("get %s volume: unexpected output %q", stream, result.Stdout)
	}
	return strconv.Atoi(m[1])
}

// SetVolume writes the stream volume.
func (a *ShellAudio) SetVolume(ctx context.Context, stream domain.StreamID, level int) error {
	result := a.channel.Execute(ctx, fmt.Sprintf(setVolumeCmdFmt, int(stream), level))
	if !result.Success() {
		return fmt.Errorf("set %s volume: exit %d: %s", stream, result.ExitCode, result.Stderr)
	}
	return nil
}

// ShellNotificationPolicy implements domain.NotificationPolicyPort and
// domain.NotificationCanceller over the command channel.
type ShellNotificationPolicy struct {
	channel     domain.CommandChannel
	packageName string
}

// NewShellNotificationPolicy creates a policy port for the given app package.
func NewShellNotificationPolicy(channel domain.CommandChannel, packageName string) *ShellNotificationPolicy {
	return &ShellNotificationPolicy{channel: channel, packageName: packageName}
}

// IsPolicyAccessGranted checks the app-op for notification policy access.
func (p *ShellNotificationPolicy) IsPolicyAccessGranted(ctx context.Context) bool {
	result := p.channel.Execute(ctx, fmt.Sprintf(getPolicyAccessFmt, p.packageName))
	return result.Success() && strings.Contains(result.Stdout, "allow")
}

// SetInterruptionFilter switches do-not-disturb mode.
func (p *ShellNotificationPolicy) SetInterruptionFilter(ctx context.Context, filter domain.InterruptionFilter) error {
	mode := "off"
	if filter == domain.FilterPriority {
		mode = "priority"
	}
	result := p.channel.Execute(ctx, fmt.Sprintf(setDndCmdFmt, mode))
	if !result.Success() {
		return fmt.Errorf("set interruption filter %s: exit %d: %s", filter, result.ExitCode, result.Stderr)
	}
	return nil
}

// CancelAll clears every posted notification.
func (p *ShellNotificationPolicy) CancelAll(ctx context.Context) error {
	result := p.channel.Execute(ctx, cancelAllCmd)
	if !result.Success() {
		return fmt.Errorf("cancel notifications: exit %d: %s", result.ExitCode, result.Stderr)
	}
	return nil
}

// ActiveKeys lists the keys of posted notifications.
func (p *ShellNotificationPolicy) ActiveKeys(ctx context.Context) ([]string, error) {
	result := p.channel.Execute(ctx, listNotificationsCmd)
	if !result.Success() {
		return nil, fmt.Errorf("list notifications: exit %d: %s", result.ExitCode, result.Stderr)
	}
	var keys []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		if key := strings.TrimSpace(line); key != "" {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// NotificationKeyPackage returns the posting package from a key of the
// form "user|pkg|id|tag|uid".
func NotificationKeyPackage(key string) string {
	parts := strings.Split(key, "|")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// ShellForegroundProbe implements domain.ForegroundProbe over the command channel.
type ShellForegroundProbe struct {
	channel domain.CommandChannel
}

// NewShellForegroundProbe creates a foreground probe.
func NewShellForegroundProbe(channel domain.CommandChannel) *ShellForegroundProbe {
	return &ShellForegroundProbe{channel: channel}
}

// ForegroundPackage returns the package of the resumed activity.
func (f *ShellForegroundProbe) ForegroundPackage(ctx context.Context) (string, error) {
	result := f.channel.Execute(ctx, foregroundCmd)
	if !result.Success() {
		return "", fmt.Errorf("dump activities: exit %d: %s", result.ExitCode, result.Stderr)
	}
	pkg := ParseForegroundPackage(result.Stdout)
	if pkg == "" {
		return "", fmt.Errorf("no resumed activity in dumpsys output")
	}
	return pkg, nil
}

// ParseForegroundPackage finds the resumed activity's package in dumpsys output.
func ParseForegroundPackage(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if m := foregroundPattern.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

// Ensure implementations satisfy interfaces
var _ domain.LauncherResolver = (*ShellLauncherResolver)(nil)
var _ domain.AudioPort = (*ShellAudio)(nil)
var _ domain.NotificationPolicyPort = (*ShellNotificationPolicy)(nil)
var _ domain.NotificationCanceller = (*ShellNotificationPolicy)(nil)
var _ domain.NotificationLister = (*ShellNotificationPolicy)(nil)
var _ domain.ForegroundProbe = (*ShellForegroundProbe)(nil)
