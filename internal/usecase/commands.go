package usecase

import (
	"fmt"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// Command intents, used as log fields and metric labels.
const (
	IntentSetHomeRole         = "set-home-role"
	IntentClearHomeRole       = "clear-home-role"
	IntentSetLegacyHome       = "set-legacy-home-activity"
	IntentClearPreferred      = "clear-preferred-activities"
	IntentForceStartHome      = "force-start-as-home"
	IntentGrantPolicyAccess   = "grant-notification-policy-access"
	IntentRegisterListener    = "register-notification-listener"
	IntentOpenDefaultSettings = "open-default-apps-settings"
)

const homeRole = "android.app.role.HOME"

// SetHomeRoleCommand makes pkg the holder of the home role.
func SetHomeRoleCommand(pkg string) string {
	return fmt.Sprintf("cmd role add-role-holder --user 0 %s %s", homeRole, pkg)
}

// ClearHomeRoleCommand removes pkg from the home role.
func ClearHomeRoleCommand(pkg string) string {
	return fmt.Sprintf("cmd role remove-role-holder --user 0 %s %s", homeRole, pkg)
}

// SetLegacyHomeActivityCommand sets the pre-role default home activity.
func SetLegacyHomeActivityCommand(id domain.LauncherIdentity) string {
	return "cmd package set-home-activity --user 0 " + id.FlattenedName()
}

// ClearPreferredActivitiesCommand drops every preferred-activity registration of pkg.
func ClearPreferredActivitiesCommand(pkg string) string {
	return "pm clear-package-preferred-activities --user 0 " + pkg
}

// ForceStartHomeCommand starts id with the home intent.
func ForceStartHomeCommand(id domain.LauncherIdentity) string {
	return "am start -a android.intent.action.MAIN -c android.intent.category.HOME -n " + id.FlattenedName()
}

// GrantPolicyAccessCommand grants pkg access to the notification policy.
func GrantPolicyAccessCommand(pkg string) string {
	return fmt.Sprintf("cmd appops set %s ACCESS_NOTIFICATION_POLICY allow", pkg)
}

// RegisterListenerCommand enables a notification listener component.
func RegisterListenerCommand(component string) string {
	return "cmd notification allow_listener " + component
}

// Settings screens offered when the user must pick a launcher by hand.
const (
	OpenDefaultAppsSettingsCommand = "am start -a android.settings.MANAGE_DEFAULT_APPS_SETTINGS"
	OpenSettingsCommand            = "am start -a android.settings.SETTINGS"
)
