package messages

// Installation verifier messages.
const (
	VerifyCheckRegistryEntry    = "registry-entry"
	VerifyCheckEntryEnabled     = "entry-enabled"
	VerifyCheckEntryActive      = "entry-active"
	VerifyCheckNoDuplicates     = "no-duplicates"
	VerifyCheckServiceReconcile = "service-reconciled"
	VerifyCheckRegistryQuery    = "registry-query"

	VerifyRegistryEntryFoundFmt   = "%s %s is registered (%s)"
	VerifyRegistryEntryMissingFmt = "%s is not in the system extension registry"
	VerifyEntryEnabledFmt         = "%s is enabled"
	VerifyEntryDisabledFmt        = "%s is registered but not enabled"
	VerifyEntryActiveFmt          = "%s is active"
	VerifyEntryInactiveFmt        = "%s is registered but not active (%s)"
	VerifyNoDuplicatesFmt         = "one live registration for %s"
	VerifyDuplicatesFmt           = "%d live registrations for %s: %s"
	VerifyServiceHealthy          = "daemon registration is consistent"
	VerifyServiceNotChecked       = "daemon registration not checked"
	VerifyServiceIssuesFmt        = "daemon registration has %d issue(s)"
	VerifyServiceUnknownFmt       = "daemon status unknown: %s"
	VerifyEntryNotFound           = "no registry entry"

	VerifyRegistryQueryFailedFmt = "systemextensionsctl list failed: %s"
	VerifyRegistryParseFmt       = "unparsable systemextensionsctl output at line %d: %q"
	VerifyRegistryEmpty          = "systemextensionsctl list produced no output"

	VerifyRemedyRegistryMissing = "Run `dextctl activate --wait` to submit the extension, then approve it in System Settings."
	VerifyRemedyDisabled        = "Open System Settings > Privacy & Security and allow the driver extension."
	VerifyRemedyInactive        = "Reboot if the registry reports activation waiting for reboot; otherwise rerun `dextctl activate --wait`."
	VerifyRemedyDuplicates      = "Uninstall stale copies of the app and reboot so the registrar drops superseded extensions."
	VerifyRemedyServiceUnknown  = "Rerun `dextctl reconcile` with sudo to query launchd and the supervisor."
	VerifyRemedyIndeterminate   = "Rerun `dextctl verify`; if it keeps failing run `systemextensionsctl list` manually."

	VerifyOverallFullyFunctional     = "fully functional"
	VerifyOverallPartiallyFunctional = "partially functional"
	VerifyOverallNonFunctional       = "non-functional"
	VerifyOverallIndeterminate       = "indeterminate"
)
