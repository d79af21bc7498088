package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mdtanrikulu/dnssec-oracle/evt"
	"github.com/mdtanrikulu/dnssec-oracle/util"
)

//nolint:gochecknoglobals
var registerOnce sync.Once

// RegisterEventListeners registers all metric handlers by the event bus
func RegisterEventListeners() {
	registerOnce.Do(func() {
		registerApplicationEventListeners()
		registerVerificationEventListeners()
		registerAdminEventListeners()
		registerCachingEventListeners()
	})
}

func registerApplicationEventListeners() {
	v := versionNumberGauge()
	RegisterMetric(v)

	subscribe(evt.ApplicationStarted, func(version, buildTime string) {
		v.WithLabelValues(version, buildTime).Set(1)
	})
}

func versionNumberGauge() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dnssec_oracle_build_info",
			Help: "Version number and build info",
		}, []string{"version", "build_time"},
	)
}

func registerVerificationEventListeners() {
	verifications := verificationCount()
	duration := verificationDuration()

	RegisterMetric(verifications)
	RegisterMetric(duration)

	subscribe(evt.VerificationCompleted, func(outcome string, d time.Duration) {
		verifications.WithLabelValues(outcome).Inc()
		duration.WithLabelValues(outcome).Observe(d.Seconds())
	})
}

func verificationCount() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnssec_oracle_verifications_total",
			Help: "Number of verified proofs by outcome",
		}, []string{"outcome"},
	)
}

func verificationDuration() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dnssec_oracle_verification_duration_seconds",
			Help:    "Duration of proof verifications",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"outcome"},
	)
}

func registerAdminEventListeners() {
	updates := registryUpdateCount()
	anchorsVersion := anchorsVersionGauge()
	anchorsCount := anchorsCountGauge()

	RegisterMetric(updates)
	RegisterMetric(anchorsVersion)
	RegisterMetric(anchorsCount)

	subscribe(evt.RegistryUpdated, func(registry string, _ uint8, _ string) {
		updates.WithLabelValues(registry).Inc()
	})

	subscribe(evt.TrustAnchorsRotated, func(version uint64, cnt int) {
		anchorsVersion.Set(float64(version))
		anchorsCount.Set(float64(cnt))
	})
}

func registryUpdateCount() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnssec_oracle_registry_updates_total",
			Help: "Number of handler bindings changed by the owner",
		}, []string{"registry"},
	)
}

func anchorsVersionGauge() prometheus.Gauge {
	return prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dnssec_oracle_trust_anchors_version",
			Help: "Version of the trust anchor set",
		},
	)
}

func anchorsCountGauge() prometheus.Gauge {
	return prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dnssec_oracle_trust_anchors",
			Help: "Number of trust anchors",
		},
	)
}

func registerCachingEventListeners() {
	entryCount := cacheEntryCount()
	hitCount := cacheHitCount()
	missCount := cacheMissCount()

	RegisterMetric(entryCount)
	RegisterMetric(hitCount)
	RegisterMetric(missCount)

	subscribe(evt.VerificationCacheMiss, func(_ string) {
		missCount.Inc()
	})

	subscribe(evt.VerificationCacheHit, func(_ string) {
		hitCount.Inc()
	})

	subscribe(evt.VerificationCacheChanged, func(cnt int) {
		entryCount.Set(float64(cnt))
	})
}

func cacheHitCount() prometheus.Counter {
	return prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dnssec_oracle_cache_hits_total",
			Help: "Verification cache hit counter",
		},
	)
}

func cacheMissCount() prometheus.Counter {
	return prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dnssec_oracle_cache_misses_total",
			Help: "Verification cache miss counter",
		},
	)
}

func cacheEntryCount() prometheus.Gauge {
	return prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dnssec_oracle_cache_entries",
			Help: "Number of entries in the verification cache",
		},
	)
}

func subscribe(topic string, fn interface{}) {
	util.FatalOnError(fmt.Sprintf("can't subscribe topic '%s'", topic), evt.Bus().Subscribe(topic, fn))
}
