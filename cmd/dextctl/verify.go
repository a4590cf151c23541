package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/messages"
	"github.com/conn-castle/dextctl/internal/verify"
)

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.VerifyUse,
		Short: messages.VerifyShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			desc := a.locator().Locate()
			identifier := desc.Identifier
			if !desc.Found {
				identifier = a.cfg.Extension.BundleIdentifier
			}
			if identifier == "" {
				printSearched(out, desc.Searched)
				return failWith(out, fault.New(fault.CodeBundleMissing, "%s", messages.VerifyNoIdentifier), exitFailure)
			}

			_, _ = fmt.Fprintf(out, messages.VerifyHeaderFmt, identifier)
			outcome := a.verifier(a.services()).Verify(cmd.Context(), identifier)
			printVerification(out, outcome)
			switch outcome.Overall {
			case verify.OverallNonFunctional:
				return &SilentExitError{Code: exitFailure}
			case verify.OverallIndeterminate:
				return &SilentExitError{Code: exitIndeterminate}
			}
			return nil
		},
	}
}

func printVerification(out io.Writer, outcome verify.Outcome) {
	remedies := make(map[string]string, len(outcome.Issues))
	for _, issue := range outcome.Issues {
		remedies[issue.CheckID] = issue.Remediation
	}
	for _, check := range outcome.Checks {
		switch {
		case check.Passed:
			printCheck(out, checkOK, check.ID, check.Message, "")
		case check.Severity == verify.SeverityWarning:
			printCheck(out, checkWarn, check.ID, check.Message, remedies[check.ID])
		default:
			printCheck(out, checkFail, check.ID, check.Message, remedies[check.ID])
		}
	}
	for _, entry := range outcome.Entries {
		_, _ = fmt.Fprintf(out, messages.VerifyEntryFmt, entry.BundleID, entry.Version, entry.State)
	}

	var overall string
	switch outcome.Overall {
	case verify.OverallFullyFunctional:
		overall = okColor(messages.VerifyOverallFullyFunctional)
	case verify.OverallPartiallyFunctional:
		overall = warnColor(messages.VerifyOverallPartiallyFunctional)
	case verify.OverallIndeterminate:
		overall = warnColor(messages.VerifyOverallIndeterminate)
	default:
		overall = failColor(messages.VerifyOverallNonFunctional)
	}
	_, _ = fmt.Fprintf(out, messages.VerifyOverallFmt, overall)
	for _, limitation := range outcome.Limitations {
		_, _ = fmt.Fprintf(out, messages.VerifyLimitation, limitation)
	}
	if outcome.Reason != "" {
		_, _ = fmt.Fprintf(out, messages.VerifyReasonFmt, outcome.Reason)
	}
	if outcome.DiagnosticFailure != "" {
		_, _ = fmt.Fprintf(out, messages.VerifyDiagnostic, outcome.DiagnosticFailure)
		printIndented(out, messages.VerifyRemedyIndeterminate)
	}
}
