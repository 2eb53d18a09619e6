// Package telemetry exposes crashguard state as Prometheus metrics.
package telemetry

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ReportCounter counts stored crash reports.
type ReportCounter interface {
	Count() (int, error)
}

// MonitorStates reports which monitors are enabled, keyed by name.
type MonitorStates interface {
	ActiveMonitors() map[string]bool
}

// Collector implements prometheus.Collector
type Collector struct {
	startTime time.Time
	version   string
	reports   ReportCounter
	monitors  MonitorStates

	infoDesc           *prometheus.Desc
	uptimeDesc         *prometheus.Desc
	reportsStoredDesc  *prometheus.Desc
	monitorEnabledDesc *prometheus.Desc
}

// NewCollector creates a new metrics collector. reports and monitors may be
// nil, in which case their metrics are not exported.
func NewCollector(version string, reports ReportCounter, monitors MonitorStates) *Collector {
	return &Collector{
		startTime: time.Now(),
		version:   version,
		reports:   reports,
		monitors:  monitors,

		infoDesc: prometheus.NewDesc(
			"crashguard_info",
			"Crashguard build information",
			[]string{"version", "go_version"},
			nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"crashguard_uptime_seconds",
			"Time since the watcher started",
			nil,
			nil,
		),
		reportsStoredDesc: prometheus.NewDesc(
			"crashguard_reports_stored",
			"Number of crash reports on disk",
			nil,
			nil,
		),
		monitorEnabledDesc: prometheus.NewDesc(
			"crashguard_monitor_enabled",
			"Whether a crash monitor is enabled",
			[]string{"monitor"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.infoDesc
	ch <- c.uptimeDesc
	ch <- c.reportsStoredDesc
	ch <- c.monitorEnabledDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(
		c.infoDesc,
		prometheus.GaugeValue,
		1,
		c.version,
		runtime.Version(),
	)

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc,
		prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)

	if c.reports != nil {
		// A failed count skips the sample instead of reporting zero.
		if n, err := c.reports.Count(); err == nil {
			ch <- prometheus.MustNewConstMetric(
				c.reportsStoredDesc,
				prometheus.GaugeValue,
				float64(n),
			)
		}
	}

	if c.monitors != nil {
		for name, enabled := range c.monitors.ActiveMonitors() {
			v := 0.0
			if enabled {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(
				c.monitorEnabledDesc,
				prometheus.GaugeValue,
				v,
				name,
			)
		}
	}
}

// NewRegistry creates a Prometheus registry with the crashguard collector
// and the Go runtime collectors.
func NewRegistry(collector *Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collector)

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return registry
}
