package messages

// Messages for external command invocations.
const (
	CommandTimedOutFmt         = "%s did not finish before its deadline"
	CommandPermissionDeniedFmt = "%s was refused: %s"
	CommandStartFailedFmt      = "could not start %s"
	CommandExitFmt             = "%s exited with status %d: %s"
)
