package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dagucloud/crashguard/internal/cmn/config"
	"github.com/dagucloud/crashguard/internal/cmn/logger"
	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
	"github.com/dagucloud/crashguard/internal/persis/filereport"
)

const (
	logDirPermissions = 0750
	idLockFileName    = "report-id.lock"
)

// Context holds the configuration for a command.
type Context struct {
	context.Context

	Command *cobra.Command
	Config  *config.Config
	Logger  logger.Logger
	Quiet   bool

	closers []io.Closer
}

// NewContext loads the configuration and sets up the logger for cmd.
func NewContext(cmd *cobra.Command) (*Context, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	quiet, err := boolFlag(cmd, quietFlag.name)
	if err != nil {
		return nil, err
	}

	var loaderOpts []config.ConfigLoaderOption
	cfgPath, err := stringFlag(cmd, configFlag.name)
	if err != nil {
		return nil, err
	}
	if cfgPath != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(cfgPath))
	}

	cfg, err := config.Load(loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	c := &Context{
		Command: cmd,
		Config:  cfg,
		Quiet:   quiet,
	}

	opts := []logger.Option{
		logger.WithFormat(cfg.Core.LogFormat),
		logger.WithConsole(cmd.ErrOrStderr()),
	}
	if cfg.Core.Debug || os.Getenv("DEBUG") != "" {
		opts = append(opts, logger.WithDebug())
	}
	if quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if cmd.Flags().Lookup(logFileFlag.name) != nil {
		logFile, err := stringFlag(cmd, logFileFlag.name)
		if err != nil {
			return nil, err
		}
		if logFile != "" {
			w, err := c.openLogFile(logFile)
			if err != nil {
				return nil, err
			}
			opts = append(opts, logger.WithWriter(w))
		}
	}

	c.Logger = logger.NewLogger(opts...)
	c.Context = logger.WithLogger(ctx, c.Logger)

	for _, w := range cfg.Warnings {
		c.Logger.Warn(w)
	}
	return c, nil
}

// openLogFile returns a rotating writer for name. A bare file name is
// placed in the configured log directory.
func (c *Context) openLogFile(name string) (io.Writer, error) {
	if filepath.Base(name) == name {
		name = filepath.Join(c.Config.Paths.LogDir, name)
	}
	if err := os.MkdirAll(filepath.Dir(name), logDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	w := &lumberjack.Logger{
		Filename:   name,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	c.closers = append(c.closers, w)
	return w, nil
}

// ReportStore opens the report store described by the configuration.
func (c *Context) ReportStore() (*filereport.Store, error) {
	store, err := filereport.New(
		c.Config.Paths.ReportsDir,
		c.Config.Core.AppName,
		filereport.WithMaxReportCount(c.Config.Reports.MaxCount),
		filereport.WithLockFile(filepath.Join(c.Config.Paths.DataDir, idLockFileName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}
	return store, nil
}

// Out is where command output goes.
func (c *Context) Out() io.Writer {
	return c.Command.OutOrStdout()
}

// Close releases resources opened by the context.
func (c *Context) Close() {
	for _, cl := range c.closers {
		_ = cl.Close()
	}
	c.closers = nil
}

// NewCommand wires runFunc into cmd with the common flags and context
// setup.
func NewCommand(cmd *cobra.Command, flags []commandLineFlag, runFunc func(ctx *Context, args []string) error) *cobra.Command {
	initFlags(cmd, flags...)
	cmd.SilenceUsage = true

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd)
		if err != nil {
			return fmt.Errorf("initialization error: %w", err)
		}
		defer ctx.Close()

		if err := runFunc(ctx, args); err != nil {
			ctx.Logger.Error("Command failed", tag.Error(err))
			return err
		}
		return nil
	}
	return cmd
}
