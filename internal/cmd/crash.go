package cmd

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
	"github.com/dagucloud/crashguard/internal/sighandler"
	"github.com/dagucloud/crashguard/internal/signal"
)

// crashDeliveryTimeout bounds how long the crash command waits for its own
// signal to terminate the process.
const crashDeliveryTimeout = 5 * time.Second

func Crash() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "crash [flags]",
			Short: "Crash this process with a fatal signal to test reporting",
			Long: `Install the crash handlers and send a fatal signal to this process. A
crash report is written before the signal reaches its original handler,
which terminates the process.

Example:
  crashguard crash --signal SIGBUS
`,
			Args: cobra.NoArgs,
		}, []commandLineFlag{signalFlag}, runCrash,
	)
}

func runCrash(ctx *Context, _ []string) error {
	name, err := stringFlag(ctx.Command, signalFlag.name)
	if err != nil {
		return err
	}
	sig, err := parseFatalSignal(name)
	if err != nil {
		return err
	}

	e, err := ctx.newEngine(sighandler.SystemPlatform(), 0)
	if err != nil {
		return err
	}
	if err := e.signals.SetEnabled(true); err != nil {
		return fmt.Errorf("failed to install crash handlers: %w", err)
	}

	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		return err
	}
	ctx.Logger.Info("Raising fatal signal", tag.Signal(signal.GetSignalName(sig)))
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("failed to send %s: %w", name, err)
	}

	time.Sleep(crashDeliveryTimeout)
	return fmt.Errorf("process survived %s", signal.GetSignalName(sig))
}

// parseFatalSignal accepts names with or without the SIG prefix.
func parseFatalSignal(name string) (syscall.Signal, error) {
	name = strings.ToUpper(name)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	sig := syscall.Signal(signal.GetSignalNum(name))
	if sig == 0 || !signal.IsFatal(sig) {
		return 0, fmt.Errorf("%s is not a fatal signal", name)
	}
	return sig, nil
}
