package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dagucloud/crashguard/internal/cmd"
	"github.com/dagucloud/crashguard/internal/cmn/config"
)

var rootCmd = &cobra.Command{
	Use:   config.AppSlug,
	Short: "Crashguard records fatal signals as crash reports",
	Long: `Crashguard installs handlers for fatal signals, captures the state of the
crashed thread and writes it as a JSON crash report before handing the
signal back to the handler that was installed before it.
`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cmd.Watch())
	rootCmd.AddCommand(cmd.Reports())
	rootCmd.AddCommand(cmd.Handlers())
	rootCmd.AddCommand(cmd.Crash())
	rootCmd.AddCommand(cmd.Version())

	config.Version = version
}

var version = "0.0.0"
