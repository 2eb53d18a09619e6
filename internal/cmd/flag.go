package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
	isBool                               bool
}

var (
	configFlag = commandLineFlag{
		name:      "config",
		shorthand: "c",
		usage:     "config file (default is $XDG_CONFIG_HOME/crashguard/config.yaml)",
	}
	quietFlag = commandLineFlag{
		name:      "quiet",
		shorthand: "q",
		usage:     "suppress log output on the console",
		isBool:    true,
	}
	metricsAddrFlag = commandLineFlag{
		name:  "metrics-addr",
		usage: "address to serve Prometheus metrics on, e.g. 127.0.0.1:9464",
	}
	logFileFlag = commandLineFlag{
		name:  "log-file",
		usage: "write logs to this file as well, rotated when it grows large",
	}
	maxDepthFlag = commandLineFlag{
		name:  "max-depth",
		usage: "maximum number of frames recorded per report",
	}
	formatFlag = commandLineFlag{
		name:         "format",
		shorthand:    "f",
		defaultValue: "json",
		usage:        "output format (json or yaml)",
	}
	queryFlag = commandLineFlag{
		name:      "query",
		shorthand: "j",
		usage:     "jq expression evaluated against the report",
	}
	pruneScheduleFlag = commandLineFlag{
		name:  "prune-schedule",
		usage: "cron schedule for deleting reports beyond the configured maximum, e.g. @every 1h",
	}
	allFlag = commandLineFlag{
		name:   "all",
		usage:  "delete every report",
		isBool: true,
	}
	installFlag = commandLineFlag{
		name:   "install",
		usage:  "install the crash handlers before listing them",
		isBool: true,
	}
	reasonFlag = commandLineFlag{
		name:  "reason",
		usage: "reason recorded with the exception",
	}
	signalFlag = commandLineFlag{
		name:         "signal",
		shorthand:    "s",
		defaultValue: "SIGABRT",
		usage:        "fatal signal to raise",
	}
)

func initFlags(cmd *cobra.Command, flags ...commandLineFlag) {
	flags = append([]commandLineFlag{configFlag, quietFlag}, flags...)
	for _, flag := range flags {
		if cmd.Flags().Lookup(flag.name) != nil {
			continue
		}
		if flag.isBool {
			cmd.Flags().BoolP(flag.name, flag.shorthand, flag.defaultValue == "true", flag.usage)
			continue
		}
		cmd.Flags().StringP(flag.name, flag.shorthand, flag.defaultValue, flag.usage)
	}
}

// stringFlag returns the value of a string flag defined by initFlags.
func stringFlag(cmd *cobra.Command, name string) (string, error) {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to get flag %s: %w", name, err)
	}
	return val, nil
}

// boolFlag returns the value of a boolean flag defined by initFlags.
func boolFlag(cmd *cobra.Command, name string) (bool, error) {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false, fmt.Errorf("failed to get flag %s: %w", name, err)
	}
	return val, nil
}
