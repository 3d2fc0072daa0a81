package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SamplesCaptured   *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	QueueEvictions    prometheus.Counter
	Uploads           *prometheus.CounterVec
	UploadSeconds     prometheus.Histogram
	CaptureRestarts   *prometheus.CounterVec
	GeocodeCache      *prometheus.CounterVec
	GeocodeSeconds    *prometheus.HistogramVec
	RouteOptimization *prometheus.CounterVec
	ProofOfDelivery   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		SamplesCaptured: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_samples_captured_total",
			Help: "Total number of position samples received from the location source.",
		}, []string{"outcome"}),
		QueueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hermes_upload_queue_depth",
			Help: "Number of samples waiting in the upload queue.",
		}),
		QueueEvictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hermes_upload_queue_evictions_total",
			Help: "Total number of samples evicted by the queue high-water mark.",
		}),
		Uploads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_uploads_total",
			Help: "Total number of sample upload attempts.",
		}, []string{"outcome"}),
		UploadSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "hermes_upload_duration_seconds",
			Help:    "Duration of sample uploads to the telemetry sink.",
			Buckets: prometheus.DefBuckets,
		}),
		CaptureRestarts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_capture_restarts_total",
			Help: "Total number of forced capture restarts performed by the supervisor.",
		}, []string{"reason"}),
		GeocodeCache: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_geocode_cache_lookups_total",
			Help: "Total number of geocode cache lookups.",
		}, []string{"result"}),
		GeocodeSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hermes_geocode_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		RouteOptimization: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_route_optimizations_total",
			Help: "Total number of route optimizations by strategy.",
		}, []string{"strategy"}),
		ProofOfDelivery: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_proof_of_delivery_total",
			Help: "Total number of proof-of-delivery saves and syncs by outcome.",
		}, []string{"outcome"}),
	}
}
