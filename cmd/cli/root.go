// Package cli implements the trainloop command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trainloop/trainloop/pkg/logger"
)

const (
	// Version is the current release version.
	Version = "0.1.0"
	// Banner is printed by the version command.
	Banner = `
  _             _        _
 | |_ _ _ __ _ (_)_ _   | |___  ___ _ __
 |  _| '_/ _' || | ' \  | / _ \/ _ \ '_ \
  \__|_| \__,_||_|_||_| |_\___/\___/ .__/  %s
                                   |_|
`
)

var (
	cfgFile string
	debug   bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "trainloop",
	Short: "Monitored step-loop runtime",
	Long: `trainloop drives a compute engine through a monitored step loop.
Run hooks observe every iteration, collect metrics, save checkpoints
and decide when the loop stops. An optional HTTP control surface
exposes status, metrics and a live step event stream.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case debug:
			logger.SetLevel(logger.LevelDebug)
		case quiet:
			logger.SetLevel(logger.LevelError)
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")
}

// GetRootCmd returns the root command for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}
