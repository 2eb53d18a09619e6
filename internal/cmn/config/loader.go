package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/dagucloud/crashguard/internal/machine"
)

const (
	defaultMaxReportCount = 5
	defaultLogFormat      = "text"
)

// ConfigLoader reads and merges configuration from various sources.
type ConfigLoader struct {
	v          *viper.Viper
	configFile string
	appHomeDir string
	warnings   []string
}

// ConfigLoaderOption defines a functional option for configuring a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile returns a ConfigLoaderOption that sets the configuration file path.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// WithAppHomeDir sets the application home directory, overriding the
// CRASHGUARD_HOME and XDG resolution.
func WithAppHomeDir(dir string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.appHomeDir = dir
	}
}

// NewConfigLoader creates a ConfigLoader with the given viper instance and options.
func NewConfigLoader(v *viper.Viper, options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{v: v}
	for _, opt := range options {
		opt(loader)
	}
	return loader
}

// Load reads the config file, applies defaults and environment overrides,
// and returns a validated Config.
func (l *ConfigLoader) Load() (*Config, error) {
	home, configDir, err := l.resolveHome()
	if err != nil {
		return nil, err
	}

	l.configureViper(configDir, l.configFile)
	l.bindEnvironmentVariables()
	l.setViperDefaultValues(home)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var def Definition
	if err := l.v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveHome returns the install directory and the directory searched for
// config.yaml.
func (l *ConfigLoader) resolveHome() (string, string, error) {
	if l.appHomeDir != "" {
		dir, err := filepath.Abs(l.appHomeDir)
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve home directory %q: %w", l.appHomeDir, err)
		}
		return dir, dir, nil
	}

	envHome := strings.ToUpper(AppSlug) + "_HOME"
	if dir := os.Getenv(envHome); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve %s %q: %w", envHome, dir, err)
		}
		return abs, abs, nil
	}

	return filepath.Join(xdg.DataHome, AppSlug), filepath.Join(xdg.ConfigHome, AppSlug), nil
}

func (l *ConfigLoader) buildConfig(def Definition) (*Config, error) {
	cfg := &Config{
		Core: Core{
			Debug:     def.Debug,
			LogFormat: def.LogFormat,
			AppName:   def.AppName,
		},
		Reports: ReportsConfig{MaxCount: defaultMaxReportCount},
		Monitor: MonitorConfig{Enabled: true, MaxStackDepth: machine.MaxStackDepth},
	}

	if err := l.loadPathsConfig(cfg, def); err != nil {
		return nil, err
	}
	l.loadReportsConfig(cfg, def)
	l.loadMonitorConfig(cfg, def)
	if def.Metrics != nil {
		cfg.Metrics.Addr = def.Metrics.Addr
	}

	cfg.Warnings = l.warnings
	return cfg, nil
}

func (l *ConfigLoader) loadPathsConfig(cfg *Config, def Definition) error {
	var paths PathsDef
	if def.Paths != nil {
		paths = *def.Paths
	}

	install, err := resolvePath("install", paths.InstallDir)
	if err != nil {
		return err
	}
	cfg.Paths.InstallDir = install

	for _, p := range []struct {
		name   string
		value  string
		subdir string
		target *string
	}{
		{"reports", paths.ReportsDir, "Reports", &cfg.Paths.ReportsDir},
		{"data", paths.DataDir, "Data", &cfg.Paths.DataDir},
		{"log", paths.LogDir, "logs", &cfg.Paths.LogDir},
	} {
		if p.value == "" {
			*p.target = filepath.Join(install, p.subdir)
			continue
		}
		resolved, err := resolvePath(p.name, p.value)
		if err != nil {
			return err
		}
		*p.target = resolved
	}

	if used := l.v.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err == nil {
			cfg.Paths.ConfigFileUsed = used
		}
	}
	return nil
}

func (l *ConfigLoader) loadReportsConfig(cfg *Config, def Definition) {
	if def.Reports == nil {
		return
	}
	if def.Reports.MaxCount != 0 {
		cfg.Reports.MaxCount = def.Reports.MaxCount
	}
}

func (l *ConfigLoader) loadMonitorConfig(cfg *Config, def Definition) {
	if def.Monitor == nil {
		return
	}
	if def.Monitor.Enabled != nil {
		cfg.Monitor.Enabled = *def.Monitor.Enabled
	}
	if depth := def.Monitor.MaxStackDepth; depth != 0 {
		if depth > machine.MaxStackDepth {
			l.warnings = append(l.warnings, fmt.Sprintf(
				"monitor.max_stack_depth %d exceeds the limit, using %d", depth, machine.MaxStackDepth))
			depth = machine.MaxStackDepth
		}
		cfg.Monitor.MaxStackDepth = depth
	}
}

func resolvePath(fieldName, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		value = filepath.Join(home, value[2:])
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s path %q: %w", fieldName, value, err)
	}
	return abs, nil
}

func (l *ConfigLoader) setViperDefaultValues(home string) {
	l.v.SetDefault("debug", false)
	l.v.SetDefault("log_format", defaultLogFormat)
	l.v.SetDefault("app_name", AppSlug)
	l.v.SetDefault("paths.install_dir", home)
	l.v.SetDefault("reports.max_count", defaultMaxReportCount)
	l.v.SetDefault("monitor.enabled", true)
	l.v.SetDefault("monitor.max_stack_depth", machine.MaxStackDepth)
	l.v.SetDefault("metrics.addr", "")
}

type envBinding struct {
	key    string
	env    string
	isPath bool
}

var envBindings = []envBinding{
	{key: "debug", env: "DEBUG"},
	{key: "log_format", env: "LOG_FORMAT"},
	{key: "app_name", env: "APP_NAME"},
	{key: "paths.install_dir", env: "INSTALL_DIR", isPath: true},
	{key: "paths.reports_dir", env: "REPORTS_DIR", isPath: true},
	{key: "paths.data_dir", env: "DATA_DIR", isPath: true},
	{key: "paths.log_dir", env: "LOG_DIR", isPath: true},
	{key: "reports.max_count", env: "REPORTS_MAX_COUNT"},
	{key: "monitor.enabled", env: "MONITOR_ENABLED"},
	{key: "monitor.max_stack_depth", env: "MONITOR_MAX_STACK_DEPTH"},
	{key: "metrics.addr", env: "METRICS_ADDR"},
}

func (l *ConfigLoader) bindEnvironmentVariables() {
	prefix := strings.ToUpper(AppSlug) + "_"

	for _, b := range envBindings {
		fullEnv := prefix + b.env

		if b.isPath {
			if val := os.Getenv(fullEnv); val != "" {
				if abs, err := filepath.Abs(val); err == nil && abs != val {
					_ = os.Setenv(fullEnv, abs)
				}
			}
		}

		_ = l.v.BindEnv(b.key, fullEnv)
	}
}

func (l *ConfigLoader) configureViper(configDir, configFile string) {
	if configFile == "" {
		l.v.AddConfigPath(configDir)
		l.v.SetConfigName("config")
	} else {
		l.v.SetConfigFile(configFile)
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(strings.ToUpper(AppSlug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
}

// Load reads the configuration with a fresh viper instance.
func Load(opts ...ConfigLoaderOption) (*Config, error) {
	return NewConfigLoader(viper.New(), opts...).Load()
}
