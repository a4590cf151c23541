package messages

// Fault kinds, codes, and default remediation text.
const (
	FaultErrorFmt        = "%s (%s): %s"
	FaultErrorCauseFmt   = "%s (%s): %s: %v"
	FaultDefaultRemedy   = "Re-run with --log-level debug and inspect the output for the failing step."
	FaultReportKindFmt   = "kind: %s"
	FaultReportCodeFmt   = "code: %s"
	FaultReportCauseFmt  = "cause: %s"
	FaultReportRemedyFmt = "fix: %s"

	RemedyBundleMissing          = "Build the extension (development) or install the package (brew install softusb), or point search.manual_path / DEXTCTL_BUNDLE_PATH at the .app bundle."
	RemedyManifestMalformed      = "Rebuild the bundle; Contents/Info.plist must be a valid property list with a reverse-DNS CFBundleIdentifier."
	RemedyProvenanceUnreadable   = "Reinstall the package so its install receipt is regenerated (brew reinstall softusb)."
	RemedyInvalidBundle          = "The bundle has no identifier; rebuild it or locate a valid bundle with `dextctl locate`."
	RemedyUnauthorized           = "Open System Settings > Privacy & Security and allow the system extension, then re-run `dextctl install`."
	RemedyPendingApproval        = "Approve the extension in System Settings > Privacy & Security, then re-run `dextctl install`."
	RemedyDenied                 = "The extension approval was denied or revoked; re-enable it in System Settings > General > Login Items & Extensions."
	RemedyForbiddenByPolicy      = "A configuration profile forbids this extension; ask your administrator to allow the team identifier."
	RemedyInvalidSignature       = "The bundle signature is invalid; re-sign and notarize the build, or install a released package."
	RemedyMissingEntitlement     = "The host app lacks the system-extension entitlement; rebuild with com.apple.developer.system-extension.install."
	RemedyDeveloperModeRequired  = "Move the app to /Applications, or enable developer mode via `systemextensionsctl developer on`."
	RemedyValidationFailed       = "The registrar rejected the bundle layout; rebuild it and check the embedded .dext Info.plist."
	RemedyDuplicateIdentifier    = "Another extension with the same identifier is registered; remove it with `systemextensionsctl uninstall <team> <id>` and retry."
	RemedyOrphanedProcess        = "Stop the stray daemon process (it has attached clients) and re-run `dextctl reconcile --fix`."
	RemedyRegistrationMismatch   = "Re-register the daemon with `sudo launchctl bootstrap system <plist>` or run `dextctl reconcile --fix`."
	RemedySupervisorDisconnected = "Re-attach the supervisor with `brew services start softusb` or run `dextctl reconcile --fix`."
	RemedyPrivilegeEscalation    = "Re-run the command with sudo; launchd and supervisor changes need administrator rights."
	RemedyAlreadyInProgress      = "Wait for the pending activation request to finish, or cancel it before submitting again."
	RemedyRunInProgress          = "Another dextctl run holds the lock for this extension; wait for it to finish."
	RemedySuperseded             = "A newer activation request replaced this one; re-run `dextctl install` if it was unexpected."
	RemedyCanceled               = "The activation request was canceled; re-run `dextctl install` to submit it again."
	RemedyCommandTimeout         = "A system query did not answer in time; the state is unknown, so re-run the command."
	RemedyCommandFailed          = "A system query failed; the state is unknown, so re-run the command (with sudo if needed)."
	RemedyFilesystem             = "Check permissions on the paths named above and re-run the command."
	RemedyInstallationTimeout    = "Approval did not arrive in time; approve the extension in System Settings and re-run, or raise timeouts.activation."
	RemedyNonFunctional          = "The extension is not active; run `dextctl install` and approve the extension when prompted."
	RemedyUnknown                = "The registrar reported an unknown error; check `log show --predicate 'subsystem == \"com.apple.sx\"'` for details."
)
