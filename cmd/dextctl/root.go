package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/dextctl/internal/messages"
	"github.com/conn-castle/dextctl/internal/terminal"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           messages.RootUse,
		Short:         messages.RootShort,
		Long:          messages.RootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.NoColor = opts.noColor || !terminal.ColorEnabled(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolP("version", "v", false, messages.RootVersionFlag)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", messages.RootFlagConfig)
	flags.StringVar(&opts.logLevel, "log-level", "", messages.RootFlagLogLevel)
	flags.StringVar(&opts.logFormat, "log-format", "", messages.RootFlagLogFormat)
	flags.BoolVar(&opts.noColor, "no-color", false, messages.RootFlagNoColor)

	cmd.AddCommand(
		newLocateCmd(opts),
		newActivateCmd(opts),
		newDeactivateCmd(opts),
		newReconcileCmd(opts),
		newVerifyCmd(opts),
		newInstallCmd(opts),
		newServiceDiffCmd(opts),
	)
	return cmd
}
