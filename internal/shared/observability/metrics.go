package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// Tracer is used for spans around scans and other long-running operations.
var Tracer = otel.Tracer("staticreflect")

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "staticreflect_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ParseCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staticreflect_parse_cache_hits_total",
		Help: "Total number of parse requests served from the cache.",
	})

	ParseCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staticreflect_parse_cache_misses_total",
		Help: "Total number of parse requests that had to parse a file.",
	})

	ParseCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staticreflect_parse_cache_evictions_total",
		Help: "Total number of parsed files evicted from the cache.",
	})

	ParseCacheResident = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staticreflect_parse_cache_resident_files",
		Help: "Current number of parsed files held by the cache.",
	})

	EvaluationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staticreflect_evaluation_failures_total",
		Help: "Total number of constant expressions that could not be folded.",
	}, []string{"code"})

	CompositionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "staticreflect_composition_seconds",
		Help:    "Time spent building a class composition table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ReflectedClasses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staticreflect_reflected_classes",
		Help: "Current number of class-like entities held by reflectors.",
	})

	LiveBridgeInitializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staticreflect_live_bridge_initializations_total",
		Help: "Total number of entities that switched to a live runtime reflector.",
	}, []string{"entity"})

	LocatorScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "staticreflect_locator_scan_seconds",
		Help:    "Time spent scanning a directory tree for declarations.",
		Buckets: prometheus.DefBuckets,
	})

	LocatorIndexedSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staticreflect_locator_indexed_symbols",
		Help: "Number of symbols known to the directory locator after the last scan.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staticreflect_watcher_events_total",
		Help: "Total number of file system events received by the locator watcher.",
	})
)
