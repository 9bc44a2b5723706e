// Package metrics implements the observability hooks with Prometheus
// collectors.
//
// gallade is a short-lived command, so metrics are not scraped; instead
// [Metrics.WriteTextfile] dumps them in the node_exporter textfile format at
// the end of a run.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/gallade/pkg/observability"
)

const namespace = "gallade"

// Metrics collects resolver, store, cache and HTTP events.
type Metrics struct {
	registry *prometheus.Registry

	resolveDuration *prometheus.HistogramVec
	resolvedNodes   prometheus.Gauge
	fetches         *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	conflicts       *prometheus.CounterVec

	storeHits  prometheus.Counter
	downloads  *prometheus.CounterVec
	downloaded prometheus.Counter
	mismatches prometheus.Counter
	corrupt    prometheus.Counter

	cacheOps   *prometheus.CounterVec
	cacheBytes prometheus.Counter

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
}

// New creates the collectors and registers them with registry. A nil
// registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: registry,
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "resolve", Name: "duration_seconds",
			Help: "Time spent building and resolving the dependency graph.",
		}, []string{"status"}),
		resolvedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "resolve", Name: "nodes",
			Help: "Number of coordinates in the last resolved graph.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "metadata", Name: "fetches_total",
			Help: "Remote metadata fetches by kind and status.",
		}, []string{"kind", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "metadata", Name: "fetch_duration_seconds",
			Help: "Latency of remote metadata fetches.",
		}, []string{"kind"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "resolve", Name: "conflicts_total",
			Help: "Candidates overridden during conflict resolution, by reason.",
		}, []string{"reason"}),
		storeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "hits_total",
			Help: "Artifacts served from the local store.",
		}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "downloads_total",
			Help: "Artifact downloads by status.",
		}, []string{"status"}),
		downloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "downloaded_bytes_total",
			Help: "Bytes downloaded into the store.",
		}),
		mismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "checksum_mismatches_total",
			Help: "Downloads rejected because their checksum did not match.",
		}),
		corrupt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "corrupt_total",
			Help: "Stored objects that failed re-verification.",
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "operations_total",
			Help: "Response cache operations by key type and result.",
		}, []string{"type", "result"}),
		cacheBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "written_bytes_total",
			Help: "Bytes written to the response cache.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by host and status code.",
		}, []string{"host", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency by host.",
		}, []string{"host"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "retries_total",
			Help: "Retried HTTP requests by host.",
		}, []string{"host"}),
	}
	registry.MustRegister(
		m.resolveDuration, m.resolvedNodes, m.fetches, m.fetchDuration, m.conflicts,
		m.storeHits, m.downloads, m.downloaded, m.mismatches, m.corrupt,
		m.cacheOps, m.cacheBytes,
		m.requests, m.requestDuration, m.retries,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Install registers m as every observability hook.
func (m *Metrics) Install() {
	observability.SetResolveHooks(m)
	observability.SetStoreHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}

func (m *Metrics) OnResolveStart(context.Context, int) {}

func (m *Metrics) OnResolveComplete(_ context.Context, nodes int, d time.Duration, err error) {
	m.resolveDuration.WithLabelValues(status(err)).Observe(d.Seconds())
	if err == nil {
		m.resolvedNodes.Set(float64(nodes))
	}
}

func (m *Metrics) OnFetch(_ context.Context, kind, _ string, d time.Duration, err error) {
	m.fetches.WithLabelValues(kind, status(err)).Inc()
	m.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) OnConflict(_ context.Context, _, _, _, reason string) {
	m.conflicts.WithLabelValues(reason).Inc()
}

func (m *Metrics) OnStoreHit(context.Context, string) { m.storeHits.Inc() }

func (m *Metrics) OnDownload(_ context.Context, _ string, bytes int64, _ time.Duration, err error) {
	m.downloads.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.downloaded.Add(float64(bytes))
	}
}

func (m *Metrics) OnChecksumMismatch(context.Context, string) { m.mismatches.Inc() }
func (m *Metrics) OnCorrupt(context.Context, string)          { m.corrupt.Inc() }

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheOps.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.Add(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, code int, d time.Duration) {
	m.requests.WithLabelValues(host, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.requests.WithLabelValues(host, "error").Inc()
}

func (m *Metrics) OnRetry(_ context.Context, host string, _ int, _ error) {
	m.retries.WithLabelValues(host).Inc()
}

var (
	_ observability.ResolveHooks = (*Metrics)(nil)
	_ observability.StoreHooks   = (*Metrics)(nil)
	_ observability.CacheHooks   = (*Metrics)(nil)
	_ observability.HTTPHooks    = (*Metrics)(nil)
)
