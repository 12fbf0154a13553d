package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	reportsRetrieved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reports_retrieved_total",
		Help: "Report retrievals by outcome (hit or generated).",
	}, []string{"result"})

	reportsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reports_failed_total",
		Help: "Report retrievals that failed, by pipeline stage.",
	}, []string{"stage"})

	reportGeneration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_generation_duration_seconds",
		Help:    "Time spent rendering and uploading a report PDF.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	viragFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "virag_fetch_total",
		Help: "Analysis fetches against the AI service, by outcome.",
	}, []string{"outcome"})

	prefetchJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_prefetch_jobs_total",
		Help: "Report prefetch queue jobs, by outcome.",
	}, []string{"outcome"})
)

// IncReportHit counts a retrieval served from the cached PDF.
func IncReportHit() {
	reportsRetrieved.WithLabelValues("hit").Inc()
}

// IncReportGenerated counts a retrieval that rendered a new PDF.
func IncReportGenerated() {
	reportsRetrieved.WithLabelValues("generated").Inc()
}

// IncReportFailed counts a failed retrieval at the given stage.
func IncReportFailed(stage string) {
	reportsFailed.WithLabelValues(stage).Inc()
}

// ObserveReportGeneration records how long a render+upload took.
func ObserveReportGeneration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	reportGeneration.Observe(d.Seconds())
}

// IncViragFetch counts an analysis fetch outcome (ok, timeout, upstream_error, network_error).
func IncViragFetch(outcome string) {
	viragFetches.WithLabelValues(outcome).Inc()
}

// IncPrefetchJob counts a prefetch worker outcome.
func IncPrefetchJob(outcome string) {
	prefetchJobs.WithLabelValues(outcome).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
