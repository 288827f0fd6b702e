package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Namespace - Prometheus metrics namespace.
const Namespace = "tetherd"

// Metrics holds the engine's collectors
type Metrics struct {
	Registry *prometheus.Registry

	Patches          *prometheus.CounterVec
	PatchErrors      *prometheus.CounterVec
	Reconfigurations *prometheus.CounterVec
	ProcessScans     prometheus.Counter
	CmdLineReads     prometheus.Counter
	Clients          prometheus.Gauge
	FilesetOutdated  prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry
func New(version string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		Registry: registry,
		Patches: newCounterVec(registry, "config", "patches_total",
			"Config patches by file and whether a line changed.", "file", "changed"),
		PatchErrors: newCounterVec(registry, "config", "patch_errors_total",
			"Config patches that failed to read or write.", "file"),
		Reconfigurations: newCounterVec(registry, "lan", "reconfigurations_total",
			"LAN subnet reconfigurations by outcome step.", "step"),
		ProcessScans: newCounter(registry, "process", "scans_total",
			"Process table refreshes."),
		CmdLineReads: newCounter(registry, "process", "cmdline_reads_total",
			"Command lines read from procfs, cached pids excluded."),
		Clients: newGauge(registry, "dhcp", "clients",
			"Clients holding an active DHCP lease."),
		FilesetOutdated: newGauge(registry, "fileset", "outdated",
			"1 if the installed fileset must be reinstalled."),
	}

	newExporterMetric(registry, version)
	return m
}

// newExporterMetric registers a constant gauge carrying the daemon version
func newExporterMetric(registry *prometheus.Registry, version string) {
	metric := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   Namespace,
		Subsystem:   "exporter",
		Name:        "info",
		Help:        "Metadata about the daemon.",
		ConstLabels: prometheus.Labels{"version": version},
	})
	registry.MustRegister(metric)
	metric.Set(1)
}

func newCounter(registry *prometheus.Registry, subsystem, name, help string) prometheus.Counter {
	metric := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
	registry.MustRegister(metric)
	return metric
}

func newCounterVec(registry *prometheus.Registry, subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	metric := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	registry.MustRegister(metric)
	return metric
}

func newGauge(registry *prometheus.Registry, subsystem, name, help string) prometheus.Gauge {
	metric := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
	registry.MustRegister(metric)
	return metric
}
