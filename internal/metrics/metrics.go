// Package metrics 定义构建与缓存相关的 Prometheus 指标，由 /-/metrics 暴露。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundle_hub_build_total",
			Help: "Total number of bundle builds started",
		},
		[]string{"mount"},
	)

	BuildFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundle_hub_build_failed_total",
			Help: "Number of bundle builds that failed",
		},
		[]string{"mount", "kind"},
	)

	BuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bundle_hub_build_duration_seconds",
			Help:    "Bundle build duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mount"},
	)

	CacheLookup = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundle_hub_cache_lookup_total",
			Help: "Artifact lookups by outcome (hit, shared, built, disk, bypass)",
		},
		[]string{"mount", "result"},
	)
)

// ObserveBuild 记录一次构建及其耗时；kind 非空表示失败。
func ObserveBuild(mount string, elapsed time.Duration, kind string) {
	BuildTotal.WithLabelValues(mount).Inc()
	BuildDuration.WithLabelValues(mount).Observe(elapsed.Seconds())
	if kind != "" {
		BuildFailed.WithLabelValues(mount, kind).Inc()
	}
}

// ObserveLookup 记录一次缓存查询的结果来源。
func ObserveLookup(mount, result string) {
	CacheLookup.WithLabelValues(mount, result).Inc()
}
