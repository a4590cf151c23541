package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conn-castle/dextctl/internal/activation"
	"github.com/conn-castle/dextctl/internal/bundle"
	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/messages"
)

func newActivateCmd(opts *rootOptions) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   messages.ActivateUse,
		Short: messages.ActivateShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivation(cmd, opts, activation.RequestActivate, wait)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, messages.ActivateFlagWait)
	return cmd
}

func newDeactivateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.DeactivateUse,
		Short: messages.DeactivateShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivation(cmd, opts, activation.RequestDeactivate, true)
		},
	}
}

// runActivation submits one request. Without wait it returns once the request settles
// (approved, pending approval, or failed); with wait it blocks until a terminal state
// or the configured activation timeout, canceling the request on expiry.
func runActivation(cmd *cobra.Command, opts *rootOptions, kind activation.RequestKind, wait bool) error {
	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	desc, err := locateBundle(a, out)
	if err != nil {
		return err
	}

	coordinator := a.activator()
	submit := coordinator.Submit
	if kind == activation.RequestDeactivate {
		submit = coordinator.Deactivate
	}
	sub, err := submit(cmd.Context(), desc)
	if err != nil {
		return failWith(out, err, exitFailure)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeouts.Activation.Duration)
	defer cancel()
	var outcome activation.Outcome
	if wait {
		outcome, err = sub.Wait(ctx)
	} else {
		outcome, err = sub.WaitSettled(ctx)
	}
	if err != nil {
		if cancelErr := coordinator.Cancel(sub); cancelErr != nil {
			a.logger.WithError(cancelErr).Warn("cancel activation")
		}
		ferr := fault.Wrap(fault.CodeCanceled, err, messages.OrchestrateActivationAbortedFmt, err)
		if errors.Is(err, context.DeadlineExceeded) && cmd.Context().Err() == nil {
			ferr = fault.Wrap(fault.CodeInstallationTimeout, err, messages.OrchestrateActivationTimeoutFmt, a.cfg.Timeouts.Activation.Duration)
		}
		printOutcome(out, desc, sub.Outcome())
		return failWith(out, ferr, exitFailure)
	}

	printOutcome(out, desc, outcome)
	if f := outcome.Fault(); f != nil {
		return failWith(out, f, exitFailure)
	}
	if outcome.State == activation.StatePendingApproval {
		_, _ = fmt.Fprintln(out, messages.ActivationLeftPending)
	}
	return nil
}

func printOutcome(out io.Writer, desc bundle.Descriptor, outcome activation.Outcome) {
	state := string(outcome.State)
	switch outcome.State {
	case activation.StateApproved:
		state = okColor(state)
	case activation.StatePendingApproval, activation.StateRequiresUserAction:
		state = warnColor(state)
	case activation.StateFailed:
		state = failColor(state)
	}
	_, _ = fmt.Fprintf(out, messages.ActivationStateFmt, state, fmt.Sprintf(messages.ActivationRequestFmt, outcome.RequestToken))
	printKeyValue(out, messages.LocateKeyIdentifier, desc.Identifier)
	if outcome.ReplacedVersion != "" {
		_, _ = fmt.Fprintf(out, messages.ActivationReplacedFmt, outcome.ReplacedVersion)
	}
	if outcome.RebootRequired {
		_, _ = fmt.Fprintln(out, warnColor(messages.ActivationRebootNote))
	}
	if outcome.Instructions != "" && outcome.State == activation.StatePendingApproval {
		_, _ = fmt.Fprintf(out, messages.ActivationInstructionsFmt, outcome.Instructions)
	}
}
