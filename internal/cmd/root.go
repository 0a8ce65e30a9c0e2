package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stateful/triptych/internal/log"
)

var (
	fConfig     string
	fLogEnabled bool
	fLogVerbose bool
)

func Root() *cobra.Command {
	cmd := cobra.Command{
		Use:           "triptych",
		Short:         "Edit documents as blocks, as markup and as a rendered preview",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPostRun: func(*cobra.Command, []string) {
			log.Flush()
		},
	}

	pflags := cmd.PersistentFlags()

	pflags.StringVar(&fConfig, "config", "", "Path to a config file. By default triptych.yaml files in the current directory and the document's directories are used.")
	pflags.BoolVar(&fLogEnabled, "log", false, "Enable logging to stderr.")
	pflags.BoolVar(&fLogVerbose, "log-verbose", false, "Enable debug logs. Implies --log.")

	cmd.AddCommand(blocksCmd())
	cmd.AddCommand(fmtCmd())
	cmd.AddCommand(markersCmd())
	cmd.AddCommand(previewCmd())
	cmd.AddCommand(serveCmd())

	return &cmd
}
