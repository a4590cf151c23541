package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conn-castle/dextctl/internal/messages"
	"github.com/conn-castle/dextctl/internal/orchestrate"
)

// installRun executes one orchestrated installation reporting progress to observer.
type installRun func(ctx context.Context, observer orchestrate.Observer) orchestrate.Result

var runInstallUI = runSpinner

func newInstallCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.InstallUse,
		Short: messages.InstallShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			run := func(ctx context.Context, observer orchestrate.Observer) orchestrate.Result {
				return a.orchestrator(observer).Run(ctx)
			}

			var res orchestrate.Result
			if isInteractive() {
				res, err = runInstallUI(cmd.Context(), out, run)
				if err != nil {
					return err
				}
			} else {
				res = run(cmd.Context(), func(phase orchestrate.Phase, note string) {
					_, _ = fmt.Fprintf(out, messages.InstallPhaseFmt+"\n", phase, note)
				})
			}
			return printInstallResult(out, res)
		},
	}
}

// printInstallResult reports res and returns the exit matching its final state.
func printInstallResult(out io.Writer, res orchestrate.Result) error {
	_, _ = fmt.Fprintf(out, messages.InstallRunFmt, res.RunID)
	switch {
	case res.Success:
		_, _ = fmt.Fprint(out, okColor(fmt.Sprintf(messages.InstallSucceededFmt,
			res.Descriptor.Identifier, res.Descriptor.Version, res.Elapsed.Round(time.Millisecond))))
		if res.ActivationSkipped {
			_, _ = fmt.Fprintln(out, messages.InstallSkipped)
		}
		printWarnings(out, res.Warnings)
		return nil
	case res.State == orchestrate.StateIndeterminate:
		_, _ = fmt.Fprint(out, warnColor(fmt.Sprintf(messages.InstallIndetFmt, res.Phase)))
		printWarnings(out, res.Warnings)
		for _, err := range res.Errors {
			printFault(out, err)
		}
		return &SilentExitError{Code: exitIndeterminate}
	default:
		_, _ = fmt.Fprint(out, failColor(fmt.Sprintf(messages.InstallFailedFmt, res.Phase)))
		for _, action := range res.RollbackActions {
			_, _ = fmt.Fprintf(out, messages.InstallRollbackFmt, action)
		}
		for _, err := range res.Errors {
			printFault(out, err)
		}
		return &SilentExitError{Code: exitFailure}
	}
}

func printWarnings(out io.Writer, warnings []string) {
	for _, w := range warnings {
		_, _ = fmt.Fprintf(out, messages.InstallWarningFmt, warnColor(w))
	}
}
