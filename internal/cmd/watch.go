package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
	"github.com/dagucloud/crashguard/internal/persis/filereport"
	"github.com/dagucloud/crashguard/internal/service/server"
	"github.com/dagucloud/crashguard/internal/sighandler"
	"github.com/dagucloud/crashguard/internal/signal"
)

const serverShutdownTimeout = 5 * time.Second

func Watch() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "watch [flags]",
			Short: "Install the crash handlers and record crash reports",
			Long: `Install handlers for every fatal signal and write a crash report whenever
one is delivered to this process. The watcher runs until it receives a
terminating signal such as SIGINT, SIGTERM or SIGHUP, then restores the
handlers that were installed before it.

Flags:
  --metrics-addr string     Serve metrics and the report API on this address.
  --log-file string         Also write logs to this file, rotated by size.
  --max-depth int           Maximum number of frames recorded per report.
  --prune-schedule string   Cron schedule for pruning old reports.

Example:
  crashguard watch --metrics-addr 127.0.0.1:9464 --prune-schedule "@every 1h"
`,
			Args: cobra.NoArgs,
		}, watchFlags, runWatch,
	)
}

var watchFlags = []commandLineFlag{
	metricsAddrFlag,
	logFileFlag,
	maxDepthFlag,
	pruneScheduleFlag,
}

func runWatch(ctx *Context, _ []string) error {
	depthValue, err := stringFlag(ctx.Command, maxDepthFlag.name)
	if err != nil {
		return err
	}
	depth, err := parseDepth(depthValue)
	if err != nil {
		return err
	}

	e, err := ctx.newEngine(sighandler.SystemPlatform(), depth)
	if err != nil {
		return err
	}

	if ctx.Config.Monitor.Enabled {
		if err := e.signals.SetEnabled(true); err != nil {
			return fmt.Errorf("failed to enable crash handlers: %w", err)
		}
		defer func() {
			if err := e.signals.SetEnabled(false); err != nil {
				ctx.Logger.Error("Failed to restore signal handlers", tag.Error(err))
			}
		}()
		logHandlerChain(ctx, e)
	} else {
		ctx.Logger.Warn("Signal monitor is disabled by configuration")
	}

	schedule, err := stringFlag(ctx.Command, pruneScheduleFlag.name)
	if err != nil {
		return err
	}
	if schedule != "" {
		c, err := schedulePrune(ctx, e.store, schedule)
		if err != nil {
			return err
		}
		defer func() { <-c.Stop().Done() }()
	}

	addr, err := stringFlag(ctx.Command, metricsAddrFlag.name)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = ctx.Config.Metrics.Addr
	}
	if addr != "" {
		level := slog.LevelWarn
		if ctx.Config.Core.Debug {
			level = slog.LevelDebug
		}
		srv := server.New(e.store, e.registry,
			server.WithLogger(ctx.Logger),
			server.WithRequestLog(ctx.Config.Core.LogFormat == "json", level),
		)
		if _, err := srv.Start(addr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				ctx.Logger.Warn("Failed to stop server", tag.Error(err))
			}
		}()
	}

	stopCh := make(chan os.Signal, 1)
	ossignal.Notify(stopCh, signal.StopSignals()...)
	defer ossignal.Stop(stopCh)

	ctx.Logger.Info("Watching for crashes",
		tag.EventID(e.signals.EventID()), tag.Dir(e.store.Dir()))
	select {
	case <-ctx.Done():
		ctx.Logger.Info("Stopping crash watcher")
	case sig := <-stopCh:
		ctx.Logger.Info("Stopping crash watcher", tag.Signal(stopSignalName(sig)))
	}
	return nil
}

func stopSignalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := signal.GetSignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}

func logHandlerChain(ctx *Context, e *engine) {
	chain, err := e.signals.HandlerChain()
	if err != nil {
		ctx.Logger.Warn("Failed to read handler chain", tag.Error(err))
		return
	}
	own := 0
	for _, h := range chain {
		if h.IsOwnHandler {
			own++
		}
		ctx.Logger.Debug("Signal handler", tag.Signal(h.Name),
			slog.String("disposition", h.Disposition.String()), slog.Bool("own", h.IsOwnHandler))
	}
	ctx.Logger.Info("Crash handlers installed", tag.Count(own))
}

// schedulePrune starts a cron scheduler that prunes the store on the given
// schedule. The caller stops it.
func schedulePrune(ctx *Context, store *filereport.Store, schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n, err := store.Prune()
		if err != nil {
			ctx.Logger.Warn("Scheduled prune failed", tag.Error(err))
			return
		}
		if n > 0 {
			ctx.Logger.Info("Pruned old reports", tag.Count(n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	c.Start()
	ctx.Logger.Info("Report pruning scheduled", slog.String("schedule", schedule))
	return c, nil
}
