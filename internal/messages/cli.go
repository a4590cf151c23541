package messages

// CLI messages for user-facing commands and prompts.
const (
	// RootUse is the CLI command name.
	RootUse = "dextctl"
	// RootShort is the short description for the root command.
	RootShort = "Install and verify a macOS driver extension and its companion daemon"
	RootLong  = "dextctl locates the host app bundle that carries a DriverKit extension, submits it for\n" +
		"activation, reconciles the companion daemon with launchd and Homebrew services, and\n" +
		"verifies the result against the live system extension registry."

	RootFlagConfig    = "Path to the config file (default ~/.config/dextctl/config.toml)"
	RootFlagLogLevel  = "Log level (trace, debug, info, warn, error, off)"
	RootFlagLogFormat = "Log format (text or json)"
	RootFlagNoColor   = "Disable colored output"
	RootVersionFlag   = "Print version and exit"

	// VersionCommitFmt formats the commit hash for version display.
	VersionCommitFmt = "commit %s"
	VersionBuildFmt  = "built %s"
	VersionFullFmt   = "%s (%s)"
	VersionTemplate  = "{{.Version}}\n"

	LocateUse   = "locate"
	LocateShort = "Find the host app bundle and report where it was found"

	ActivateUse      = "activate"
	ActivateShort    = "Submit the driver extension for activation"
	ActivateFlagWait = "Wait for approval instead of returning once the request is pending"

	DeactivateUse   = "deactivate"
	DeactivateShort = "Submit a deactivation request for the driver extension"

	ReconcileUse      = "reconcile"
	ReconcileShort    = "Cross-check the companion daemon with launchd, Homebrew services, and the process table"
	ReconcileFlagFix  = "Attempt to resolve detected conflicts"
	ReconcileFlagYes  = "Resolve conflicts without prompting"
	ReconcileConfirm  = "Resolve the conflicts listed above?"
	ReconcileDeclined = "No changes made."

	ReconcileFixRequiresTerminal = "resolving conflicts requires confirmation; re-run with --yes in a non-interactive shell"

	VerifyUse   = "verify"
	VerifyShort = "Check the extension registry and daemon registration and rate the installation"

	InstallUse   = "install"
	InstallShort = "Locate, activate, reconcile, and verify in one run"

	ServiceDiffUse       = "service-diff"
	ServiceDiffShort     = "Show the difference between the installed daemon plist and the bundle's copy"
	ServiceDiffFlagLines = "Maximum diff lines to print"
	ServiceDiffUpToDate  = "Installed daemon plist %s matches the bundle.\n"
	ServiceDiffHeaderFmt = "Installed daemon plist %s differs from %s:\n"

	// Report labels.
	StatusOKLabel   = "[OK]  "
	StatusWarnLabel = "[WARN]"
	StatusFailLabel = "[FAIL]"
	ResultLineFmt   = "%s %-20s %s\n"
	DetailIndent    = "       "
	KeyValueFmt     = "  %-13s %s\n"

	LocateFoundFmt      = "Found %s\n"
	LocateBuildFmt      = "%s (build %s)"
	LocateIssueFmt      = "  issue: %s\n"
	LocateNotFoundFmt   = "No bundle found after searching %d location(s):\n"
	LocateAttemptFmt    = "  - %s [%s]: %s\n"
	LocateCandidateFmt  = "      %s\n"
	LocateKeyPath       = "path:"
	LocateKeyIdentifier = "identifier:"
	LocateKeyVersion    = "version:"
	LocateKeyEnv        = "environment:"
	LocateKeyReceipt    = "installed:"
	LocateReceiptFmt    = "%s under %s"
	LocateMissingFmt    = "no valid bundle found; searched %d location(s)"

	ActivationStateFmt        = "Activation %s: %s\n"
	ActivationRequestFmt      = "request %s"
	ActivationInstructionsFmt = "  next step: %s\n"
	ActivationRebootNote      = "  a reboot is required to finish activation"
	ActivationReplacedFmt     = "  replaced version %s\n"
	ActivationLeftPending     = "The request stays with the system; re-run with --wait or run 'dextctl verify' after approving."

	ServiceKeyLaunchd    = "launchd:"
	ServiceKeySupervisor = "supervisor:"
	ServiceKeyProcess    = "process:"
	ServiceLoaded        = "job loaded"
	ServiceNotLoaded     = "job not loaded"
	ServiceRunningFmt    = "running (pid %d)"
	ServiceNotRunning    = "not running"
	ServiceUnknownValue  = "unknown"
	ServiceNoneValue     = "not registered"
	ServiceHealthy       = "Daemon registration is consistent."
	ServiceUnknownFmt    = "Could not determine: %s\n"
	ServiceIssuesFmt     = "%d conflict(s) found:\n"
	ServiceIssueLineFmt  = "  - %s\n"
	ServiceResolvedFmt   = "  resolved: %s\n"
	ServiceUnresolvedFmt = "  not resolved: %s\n"

	VerifyHeaderFmt    = "Verifying %s\n"
	VerifyOverallFmt   = "Installation is %s.\n"
	VerifyLimitation   = "  limitation: %s\n"
	VerifyReasonFmt    = "  reason: %s\n"
	VerifyDiagnostic   = "  diagnostic failure: %s\n"
	VerifyEntryFmt     = "  registry: %s %s [%s]\n"
	VerifyNoIdentifier = "no bundle identifier to verify: locate the bundle or set extension.bundle_identifier"

	InstallRunFmt       = "Run %s\n"
	InstallPhaseFmt     = "==> %s: %s"
	InstallSucceededFmt = "Installed %s %s in %s.\n"
	InstallSkipped      = "  activation skipped: this version is already active"
	InstallFailedFmt    = "Installation failed during %s.\n"
	InstallIndetFmt     = "Installation state is indeterminate after %s; nothing was rolled back.\n"
	InstallWarningFmt   = "  warning: %s\n"
	InstallRollbackFmt  = "  rolled back: %s\n"
	InstallSpinnerFmt   = "%s %s"
	InstallSpinnerIdle  = "starting"

	ErrorHeader = "Error:"
	ErrorLine   = "  %s\n"
)
