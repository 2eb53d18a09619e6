package cmd

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dagucloud/crashguard/internal/cmn/config"
	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
	"github.com/dagucloud/crashguard/internal/monitor"
	"github.com/dagucloud/crashguard/internal/persis/filereport"
	"github.com/dagucloud/crashguard/internal/report"
	"github.com/dagucloud/crashguard/internal/sighandler"
	"github.com/dagucloud/crashguard/internal/telemetry"
)

// engine is the crash handling stack of one process: the dispatcher, the
// signal monitor registered with it and the report writer it feeds.
type engine struct {
	dispatcher *monitor.Dispatcher
	signals    *sighandler.Monitor
	store      *filereport.Store
	writer     *report.Writer
	registry   *prometheus.Registry
}

// newEngine builds the crash handling stack without enabling it. A positive
// maxDepth overrides the configured stack depth.
func (c *Context) newEngine(platform sighandler.Platform, maxDepth int) (*engine, error) {
	store, err := c.ReportStore()
	if err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		maxDepth = c.Config.Monitor.MaxStackDepth
	}

	e := &engine{store: store}
	e.dispatcher = monitor.NewDispatcher(
		monitor.WithLogger(c.Logger),
		monitor.WithMaxStackDepth(maxDepth),
	)
	e.signals = sighandler.New(platform,
		sighandler.WithDispatcher(e.dispatcher),
		sighandler.WithMaxStackDepth(maxDepth),
		sighandler.WithLogger(c.Logger),
	)
	e.writer = report.NewWriter(store,
		report.WithWriterLogger(c.Logger),
		report.WithReportWrittenCallback(func(id int64) {
			c.Logger.Debug("Report callback", tag.ReportID(id))
		}),
	)
	e.writer.SetUserInfo(map[string]any{
		"app_name": c.Config.Core.AppName,
		"version":  config.Version,
	})
	e.dispatcher.SetEventCallback(e.writer)

	e.registry = telemetry.NewRegistry(telemetry.NewCollector(config.Version, store, e.dispatcher))
	e.dispatcher.MustRegisterMetrics(e.registry)
	return e, nil
}

// parseDepth parses the --max-depth flag; an empty value means the
// configured depth.
func parseDepth(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid max depth %q", s)
	}
	return n, nil
}
