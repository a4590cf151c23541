package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/conn-castle/dextctl/internal/messages"
	"github.com/conn-castle/dextctl/internal/service"
	"github.com/conn-castle/dextctl/internal/terminal"
)

var (
	isInteractive = terminal.IsInteractive
	confirmFunc   = huhConfirm
)

// huhConfirm asks a yes/no question on the terminal. Esc and Ctrl+C count as "no".
func huhConfirm(title string) (bool, error) {
	value := false
	form := huh.NewForm(huh.NewGroup(huh.NewConfirm().Title(title).Value(&value)))
	form.WithProgramOptions(tea.WithOutput(os.Stderr))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return value, nil
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var fix, yes bool
	cmd := &cobra.Command{
		Use:   messages.ReconcileUse,
		Short: messages.ReconcileShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			svc := a.services()
			status := svc.Reconcile(cmd.Context())
			printStatus(out, a, status)
			if len(status.Issues) == 0 || !fix {
				return statusExit(status)
			}

			if !yes {
				if !isInteractive() {
					return errors.New(messages.ReconcileFixRequiresTerminal)
				}
				ok, err := confirmFunc(messages.ReconcileConfirm)
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(out, messages.ReconcileDeclined)
					return statusExit(status)
				}
			}

			for _, rc := range svc.ResolveConflicts(cmd.Context(), status) {
				if rc.Resolved {
					_, _ = fmt.Fprintf(out, messages.ServiceResolvedFmt, okColor(rc.Action))
					continue
				}
				_, _ = fmt.Fprintf(out, messages.ServiceUnresolvedFmt, warnColor(rc.Action))
				if rc.Err != nil {
					printIndented(out, rc.Err.Remediation)
				}
			}
			status = svc.Reconcile(cmd.Context())
			_, _ = fmt.Fprintln(out)
			printStatus(out, a, status)
			return statusExit(status)
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, messages.ReconcileFlagFix)
	cmd.Flags().BoolVar(&yes, "yes", false, messages.ReconcileFlagYes)
	return cmd
}

func printStatus(out io.Writer, a *app, status service.Status) {
	unknown := func(query string) bool { return slices.Contains(status.Unknown, query) }

	launchd := messages.ServiceNotLoaded
	if status.IndependentlyManaged {
		launchd = messages.ServiceLoaded
	}
	if unknown(messages.ServiceQueryLaunchd) {
		launchd = messages.ServiceUnknownValue
	}
	printKeyValue(out, messages.ServiceKeyLaunchd, a.cfg.Service.Label+": "+launchd)

	supervisor := messages.ServiceNoneValue
	if status.SupervisorState != "" {
		supervisor = status.SupervisorState
	}
	if unknown(messages.ServiceQuerySupervisor) {
		supervisor = messages.ServiceUnknownValue
	}
	printKeyValue(out, messages.ServiceKeySupervisor, a.cfg.Service.SupervisorFormula+": "+supervisor)

	process := messages.ServiceNotRunning
	if status.ProcessRunning && status.PID != nil {
		process = fmt.Sprintf(messages.ServiceRunningFmt, *status.PID)
	}
	if unknown(messages.ServiceQueryProcess) && !status.ProcessRunning {
		process = messages.ServiceUnknownValue
	}
	printKeyValue(out, messages.ServiceKeyProcess, a.cfg.Service.DaemonName+": "+process)

	if len(status.Unknown) > 0 {
		_, _ = fmt.Fprintf(out, messages.ServiceUnknownFmt, warnColor(strings.Join(status.Unknown, ", ")))
	}
	if len(status.Issues) == 0 {
		if len(status.Unknown) == 0 {
			_, _ = fmt.Fprintln(out, okColor(messages.ServiceHealthy))
		}
		return
	}
	_, _ = fmt.Fprintf(out, messages.ServiceIssuesFmt, len(status.Issues))
	for _, issue := range status.Issues {
		_, _ = fmt.Fprintf(out, messages.ServiceIssueLineFmt, failColor(issue.String()))
		printIndented(out, issue.Fault().Remediation)
	}
}

// statusExit maps a reconciled status to the command exit: conflicts fail, unknown
// queries are indeterminate.
func statusExit(status service.Status) error {
	switch {
	case len(status.Issues) > 0:
		return &SilentExitError{Code: exitFailure}
	case len(status.Unknown) > 0:
		return &SilentExitError{Code: exitIndeterminate}
	}
	return nil
}
