package messages

// Service lifecycle messages.
const (
	ServiceQueryLaunchd    = "launchctl list"
	ServiceQuerySupervisor = "brew services list"
	ServiceQueryProcess    = "pgrep"

	ServiceRegistrationMismatchFmt   = "supervisor reports %s started but launchd has no job %s"
	ServiceSupervisorDisconnectedFmt = "launchd job %s is loaded but the supervisor has no record of formula %s"
	ServiceOrphanedProcessFmt        = "%s (pid %d) is running without a matching launchd job %s"
	ServicePrivilegeFailureFmt       = "%s requires elevated privileges: %s"

	ServiceResolvedTerminatedFmt = "terminated orphaned process %d"
	ServiceResolvedBootstrapFmt  = "re-registered %s with launchd"
	ServiceResolvedSupervisorFmt = "re-registered %s with the supervisor"
	ServiceSkipClientsFmt        = "left pid %d running: %d client connection(s)"
	ServiceSkipProbeUnknownFmt   = "left pid %d running: client connections unknown (%s)"
	ServiceSkipPrivilege         = "not resolved automatically; rerun with sudo"
	ServiceTerminateFailedFmt    = "terminate pid %d: %v"

	ServiceReadPlistFmt       = "read %s: %w"
	ServiceInstalledPlistFmt  = "install daemon plist %s"
	ServiceRestorePlistFmt    = "restore previous daemon plist %s"
	ServiceRemovePlistFmt     = "remove installed daemon plist %s"
	ServiceBootstrapFmt       = "bootstrap %s into %s"
	ServiceBootoutFmt         = "boot out %s from %s"
	ServiceSupervisorStopFmt  = "stop %s with the supervisor"
	ServiceBundlePlistMissing = "bundle does not ship a daemon plist"

	ServiceDiffInstalledFmt = "%s (installed)"
	ServiceDiffBundledFmt   = "%s (bundle)"
	ServiceDiffTruncatedFmt = "... (truncated to %d lines; rerun with --lines <n> to see more)"
)
