package messages

// Orchestrator messages.
const (
	OrchestrateBundleNotFoundFmt    = "no valid bundle found; searched %d location(s): %s"
	OrchestrateSearchedFmt          = "%s [%s]: %s"
	OrchestrateRunInProgressFmt     = "another installation run holds the lock for %s"
	OrchestrateOpenLockFmt          = "open run lock %s"
	OrchestrateLockFmt              = "lock %s"
	OrchestrateActivationTimeoutFmt = "activation did not complete within %s"
	OrchestrateActivationAbortedFmt = "activation wait aborted: %v"
	OrchestrateReconcileIssuesFmt   = "%d service conflict(s) remain after resolution"
	OrchestrateRollbackFailedFmt    = "rollback %q failed"
	OrchestrateNonFunctionalFmt     = "installation is non-functional: %s"
	OrchestrateIndeterminateFmt     = "installation state is unknown: %s"
	OrchestrateServiceUnknownFmt    = "daemon registration could not be determined: %s"
	OrchestrateRemedyServiceUnknown = "Check that launchctl and brew respond, then rerun the installation; nothing was rolled back."

	OrchestrateObserveLocatedFmt          = "located %s %s (%s)"
	OrchestrateObserveSkipActivation      = "extension already active; skipping activation"
	OrchestrateObserveSubmittedFmt        = "submitted activation request %s"
	OrchestrateObserveAwaitingApprovalFmt = "awaiting approval: %s"
	OrchestrateObserveApproved            = "extension approved"
	OrchestrateObserveRebootRequired      = "extension approved; reboot required to finish"
	OrchestrateObserveResolvedFmt         = "resolved: %s"
	OrchestrateObserveRollbackFmt         = "rolling back: %s"
	OrchestrateObserveVerifiedFmt         = "verification: %s"
)
