// Package prometheus provides the Prometheus-backed implementations of
// the metrics interfaces declared in pkg/metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dtn-bard/bard/pkg/metrics"
)

// bardMetrics is the Prometheus implementation of metrics.BARDMetrics.
type bardMetrics struct {
	committedPercent *prometheus.GaugeVec
	quotaBytes       *prometheus.GaugeVec
	acceptDecisions  *prometheus.CounterVec
}

// NewBARDMetrics creates a new Prometheus-backed BARDMetrics instance.
//
// Returns nil if metrics are not enabled (metrics.InitRegistry not called),
// which is always safe to pass to BARD.SetMetrics: every call site routes through
// the nil-safe wrappers in pkg/metrics.
func NewBARDMetrics() metrics.BARDMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &bardMetrics{
		committedPercent: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bard_committed_percent",
				Help: "Committed usage as a percentage of quota (larger of bundles and bytes), per canonical key and side",
			},
			[]string{"key", "side"}, // side: "internal", "external"
		),
		quotaBytes: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bard_quota_bytes",
				Help: "Configured quota in bytes, per canonical key and side",
			},
			[]string{"key", "side"},
		),
		acceptDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bard_accept_decisions_total",
				Help: "query_accept_bundle outcomes",
			},
			[]string{"accepted"},
		),
	}
}

func (m *bardMetrics) SetCommittedPercent(key string, internalPct, externalPct float64) {
	if m == nil {
		return
	}
	m.committedPercent.WithLabelValues(key, "internal").Set(internalPct)
	m.committedPercent.WithLabelValues(key, "external").Set(externalPct)
}

func (m *bardMetrics) SetQuotaBytes(key string, internalBytes, externalBytes uint64) {
	if m == nil {
		return
	}
	m.quotaBytes.WithLabelValues(key, "internal").Set(float64(internalBytes))
	m.quotaBytes.WithLabelValues(key, "external").Set(float64(externalBytes))
}

func (m *bardMetrics) IncAcceptDecision(accepted bool) {
	if m == nil {
		return
	}
	label := "false"
	if accepted {
		label = "true"
	}
	m.acceptDecisions.WithLabelValues(label).Inc()
}

// restageCLMetrics is the Prometheus implementation of metrics.RestageCLMetrics.
type restageCLMetrics struct {
	diskUsed   *prometheus.GaugeVec
	diskTotal  *prometheus.GaugeVec
	state      *prometheus.GaugeVec
	restaged   *prometheus.CounterVec
	restageDup *prometheus.CounterVec
	restageErr *prometheus.CounterVec
	reloaded   *prometheus.CounterVec
	reloadErr  *prometheus.CounterVec
	quarantine *prometheus.CounterVec
	rescanDur  prometheus.Histogram
}

// NewRestageCLMetrics creates a new Prometheus-backed RestageCLMetrics
// instance. Returns nil if metrics are not enabled.
func NewRestageCLMetrics() metrics.RestageCLMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &restageCLMetrics{
		diskUsed: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bard_restagecl_disk_used_bytes",
				Help: "Bytes currently used on a RestageCL link's storage volume",
			},
			[]string{"link"},
		),
		diskTotal: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bard_restagecl_disk_total_bytes",
				Help: "Total capacity of a RestageCL link's storage volume",
			},
			[]string{"link"},
		),
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bard_restagecl_state",
				Help: "RestageCL link state (ordinal, see CLState)",
			},
			[]string{"link"},
		),
		restaged: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bard_restagecl_restaged_total",
				Help: "Bundles successfully written to external storage",
			},
			[]string{"link"},
		),
		restageDup: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bard_restagecl_restage_dupes_total",
				Help: "Restage attempts suppressed as duplicate filenames",
			},
			[]string{"link"},
		),
		restageErr: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bard_restagecl_restage_errors_total",
				Help: "Restage attempts that failed with an I/O error",
			},
			[]string{"link"},
		),
		reloaded: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bard_restagecl_reloaded_total",
				Help: "Restaged files successfully reloaded into internal storage",
			},
			[]string{"link"},
		),
		reloadErr: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bard_restagecl_reload_errors_total",
				Help: "Reload attempts that failed",
			},
			[]string{"link"},
		),
		quarantine: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bard_restagecl_quarantined_total",
				Help: "Restaged files moved to quarantine after repeated reload failures",
			},
			[]string{"link"},
		),
		rescanDur: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bard_rescan_duration_seconds",
				Help:    "Duration of a BARD-wide rescan",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
	}
}

func (m *restageCLMetrics) SetDiskUsage(link string, used, total uint64) {
	if m == nil {
		return
	}
	m.diskUsed.WithLabelValues(link).Set(float64(used))
	m.diskTotal.WithLabelValues(link).Set(float64(total))
}

func (m *restageCLMetrics) SetState(link string, state int) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(link).Set(float64(state))
}

func (m *restageCLMetrics) IncRestaged(link string) {
	if m == nil {
		return
	}
	m.restaged.WithLabelValues(link).Inc()
}

func (m *restageCLMetrics) IncRestageDupe(link string) {
	if m == nil {
		return
	}
	m.restageDup.WithLabelValues(link).Inc()
}

func (m *restageCLMetrics) IncRestageError(link string) {
	if m == nil {
		return
	}
	m.restageErr.WithLabelValues(link).Inc()
}

func (m *restageCLMetrics) IncReloaded(link string) {
	if m == nil {
		return
	}
	m.reloaded.WithLabelValues(link).Inc()
}

func (m *restageCLMetrics) IncReloadError(link string) {
	if m == nil {
		return
	}
	m.reloadErr.WithLabelValues(link).Inc()
}

func (m *restageCLMetrics) IncQuarantined(link string) {
	if m == nil {
		return
	}
	m.quarantine.WithLabelValues(link).Inc()
}

func (m *restageCLMetrics) ObserveRescanDuration(seconds float64) {
	if m == nil {
		return
	}
	m.rescanDur.Observe(seconds)
}
