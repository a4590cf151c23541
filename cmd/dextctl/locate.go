package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conn-castle/dextctl/internal/bundle"
	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/messages"
)

func newLocateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.LocateUse,
		Short: messages.LocateShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			desc, err := locateBundle(a, out)
			if err != nil {
				return err
			}
			printDescriptor(out, desc)
			return nil
		},
	}
}

// locateBundle runs the locator and, when nothing is found, prints every searched root
// and returns the silent failure exit.
func locateBundle(a *app, out io.Writer) (bundle.Descriptor, error) {
	desc := a.locator().Locate()
	if desc.Found {
		return desc, nil
	}
	printSearched(out, desc.Searched)
	return desc, failWith(out, fault.New(fault.CodeBundleMissing, messages.LocateMissingFmt, len(desc.Searched)), exitFailure)
}

func printDescriptor(out io.Writer, desc bundle.Descriptor) {
	_, _ = fmt.Fprintf(out, messages.LocateFoundFmt, boldColor(desc.Identifier))
	printKeyValue(out, messages.LocateKeyPath, desc.Path)
	printKeyValue(out, messages.LocateKeyIdentifier, desc.Identifier)
	version := desc.Version
	if desc.Build != "" {
		version = fmt.Sprintf(messages.LocateBuildFmt, desc.Version, desc.Build)
	}
	printKeyValue(out, messages.LocateKeyVersion, version)
	printKeyValue(out, messages.LocateKeyEnv, desc.Environment.String())
	if p := desc.Provenance; p != nil {
		installed := time.Unix(p.InstalledAt, 0).UTC().Format(time.RFC3339)
		printKeyValue(out, messages.LocateKeyReceipt, fmt.Sprintf(messages.LocateReceiptFmt, installed, p.InstallPrefix))
	}
	for _, issue := range desc.Issues {
		_, _ = fmt.Fprintf(out, messages.LocateIssueFmt, warnColor(issue))
	}
}

func printSearched(out io.Writer, attempts []bundle.SearchAttempt) {
	_, _ = fmt.Fprintf(out, messages.LocateNotFoundFmt, len(attempts))
	for _, attempt := range attempts {
		_, _ = fmt.Fprintf(out, messages.LocateAttemptFmt, attempt.Root, attempt.Environment, attempt.Reason)
		for _, c := range attempt.Candidates {
			_, _ = fmt.Fprintf(out, messages.LocateCandidateFmt, c)
		}
	}
}
