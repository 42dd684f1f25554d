// Package cli implements the driveanswer command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/quillworks/driveanswer/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "driveanswer",
	Short: "Answer questions from documents in Google Drive",
	Long: `driveanswer fetches the documents you point it at, splits them into
overlapping chunks, embeds them into a per-request vector index and asks
a language model to answer your question from the retrieved passages.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default ./driveanswer.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
