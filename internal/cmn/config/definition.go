package config

// Definition holds the configuration as read from the config file and the
// environment. Each field maps to a configuration key.
type Definition struct {
	// Debug toggles debug logging.
	Debug bool `mapstructure:"debug"`

	// LogFormat defines the output format for log messages.
	// Available options: "json", "text"
	LogFormat string `mapstructure:"log_format"`

	// AppName is the prefix of every report file name.
	AppName string `mapstructure:"app_name"`

	// Paths holds the directories the application reads and writes.
	Paths *PathsDef `mapstructure:"paths"`

	// Reports controls the report store.
	Reports *ReportsDef `mapstructure:"reports"`

	// Monitor controls the signal monitor.
	Monitor *MonitorDef `mapstructure:"monitor"`

	// Metrics controls the Prometheus endpoint.
	Metrics *MetricsDef `mapstructure:"metrics"`
}

// PathsDef configures filesystem locations.
type PathsDef struct {
	InstallDir string `mapstructure:"install_dir"`
	ReportsDir string `mapstructure:"reports_dir"`
	DataDir    string `mapstructure:"data_dir"`
	LogDir     string `mapstructure:"log_dir"`
}

// ReportsDef configures the report store.
type ReportsDef struct {
	MaxCount int `mapstructure:"max_count"`
}

// MonitorDef configures the signal monitor.
type MonitorDef struct {
	Enabled       *bool `mapstructure:"enabled"`
	MaxStackDepth int   `mapstructure:"max_stack_depth"`
}

// MetricsDef configures the metrics endpoint.
type MetricsDef struct {
	Addr string `mapstructure:"addr"`
}
