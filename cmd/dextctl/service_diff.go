package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/messages"
	"github.com/conn-castle/dextctl/internal/service"
)

func newServiceDiffCmd(opts *rootOptions) *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   messages.ServiceDiffUse,
		Short: messages.ServiceDiffShort,
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
			preview, err := a.services().PlistDiff(desc, lines)
			if err != nil {
				return failWith(out, fault.Wrap(fault.CodeFilesystem, err, "%s", messages.ServiceDiffShort), exitFailure)
			}
			if !preview.Changed {
				_, _ = fmt.Fprintf(out, messages.ServiceDiffUpToDate, preview.InstalledPath)
				return nil
			}
			_, _ = fmt.Fprintf(out, messages.ServiceDiffHeaderFmt, preview.InstalledPath, preview.BundledPath)
			for _, line := range strings.Split(strings.TrimRight(preview.UnifiedDiff, "\n"), "\n") {
				switch {
				case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
					line = boldColor(line)
				case strings.HasPrefix(line, "+"):
					line = okColor(line)
				case strings.HasPrefix(line, "-"):
					line = failColor(line)
				case strings.HasPrefix(line, "@@"):
					line = hunkColor(line)
				}
				_, _ = fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&lines, "lines", service.DefaultDiffMaxLines, messages.ServiceDiffFlagLines)
	return cmd
}
