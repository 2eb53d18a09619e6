package config

import (
	"errors"
	"fmt"
	"net"
)

// Config is the validated application configuration.
type Config struct {
	Core    Core
	Paths   PathsConfig
	Reports ReportsConfig
	Monitor MonitorConfig
	Metrics MetricsConfig

	// Warnings collects non-fatal problems found while loading.
	Warnings []string
}

// Core holds settings that apply to every command.
type Core struct {
	Debug     bool
	LogFormat string
	AppName   string
}

// PathsConfig holds resolved absolute directories.
type PathsConfig struct {
	InstallDir     string
	ReportsDir     string
	DataDir        string
	LogDir         string
	ConfigFileUsed string
}

// ReportsConfig controls the report store.
type ReportsConfig struct {
	// MaxCount is the number of reports kept on disk; older ones are pruned.
	MaxCount int
}

// MonitorConfig controls the signal monitor.
type MonitorConfig struct {
	Enabled       bool
	MaxStackDepth int
}

// MetricsConfig controls the metrics endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

var (
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrInvalidMaxCount  = errors.New("reports.max_count must be positive")
	ErrInvalidDepth     = errors.New("monitor.max_stack_depth must be positive")
	ErrInvalidAddr      = errors.New("invalid metrics address")
	ErrEmptyAppName     = errors.New("app_name must not be empty")
)

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if err := c.validateCore(); err != nil {
		return err
	}
	if c.Reports.MaxCount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxCount, c.Reports.MaxCount)
	}
	if c.Monitor.MaxStackDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, c.Monitor.MaxStackDepth)
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidAddr, c.Metrics.Addr, err)
		}
	}
	return nil
}

func (c *Config) validateCore() error {
	switch c.Core.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q (must be text or json)", ErrInvalidLogFormat, c.Core.LogFormat)
	}
	if c.Core.AppName == "" {
		return ErrEmptyAppName
	}
	return nil
}
