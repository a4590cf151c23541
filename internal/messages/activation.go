package messages

// Activation coordinator messages.
const (
	ActivationEmptyIdentifier      = "bundle descriptor has no identifier"
	ActivationAlreadyInProgressFmt = "a %s request for %s is still in progress (submission %s)"
	ActivationSubmitFailedFmt      = "registrar rejected the %s request for %s"
	ActivationStreamClosed         = "registrar event stream closed without a result"
	ActivationCanceledFmt          = "%s request for %s was canceled"
	ActivationRegistrarCodeFmt     = "registrar error %d: %s"
	ActivationCancelFailedFmt      = "cancel request %s: %w"

	ActivationApproveInstructions  = "Open System Settings > Privacy & Security, allow the driver extension, then rerun the command."
	ActivationLocationInstructions = "Move the app into /Applications, or enable developer mode with `systemextensionsctl developer on`, then rerun the command."

	ActivationDowngradeFmt   = "replacing extension %s with older version %s"
	ActivationReplaceFmt     = "replacing extension %s with %s"
	ActivationReplyDropped   = "replace answer dropped: registrar is not listening"
	ActivationHelperStartFmt = "start activation helper %s: %w"
	ActivationHelperPipeFmt  = "open activation helper pipe: %w"
	ActivationHelperExitFmt  = "activation helper exited: %v"
	ActivationHelperBadLine  = "ignoring unparsable activation helper output"
	ActivationHelperReplyFmt = "write replace answer: %v"
)
