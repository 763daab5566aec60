// Package prometheus implements metrics.Recorder on a Prometheus registry
// and serves it over HTTP.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opentender/feedcrawler/pkg/metrics"
)

// Recorder is the Prometheus-backed metrics.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	feedRequests    *prometheus.CounterVec
	pagesHandled    *prometheus.CounterVec
	itemsHandled    *prometheus.CounterVec
	positionSaves   *prometheus.CounterVec
	positionDrops   prometheus.Counter
	restarts        prometheus.Counter
}

var _ metrics.Recorder = (*Recorder)(nil)

// NewRecorder builds a Recorder with its own registry, including the
// standard Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Recorder{
		registry: reg,
		feedRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedcrawler_feed_requests_total",
				Help: "Total feed page requests by direction and result class",
			},
			[]string{"direction", "class"},
		),
		pagesHandled: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedcrawler_pages_handled_total",
				Help: "Total non-empty pages handed to the data handler",
			},
			[]string{"direction"},
		),
		itemsHandled: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedcrawler_items_handled_total",
				Help: "Total feed items handed to the data handler",
			},
			[]string{"direction"},
		),
		positionSaves: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedcrawler_position_saves_total",
				Help: "Total successful position-store writes",
			},
			[]string{"direction"},
		),
		positionDrops: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "feedcrawler_position_drops_total",
				Help: "Total position drops after offset invalidation",
			},
		),
		restarts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "feedcrawler_restarts_total",
				Help: "Total supervisor re-bootstraps",
			},
		),
	}
}

// FeedRequest implements metrics.Recorder.
func (r *Recorder) FeedRequest(direction, class string) {
	r.feedRequests.WithLabelValues(direction, class).Inc()
}

// PageHandled implements metrics.Recorder.
func (r *Recorder) PageHandled(direction string, items int) {
	r.pagesHandled.WithLabelValues(direction).Inc()
	r.itemsHandled.WithLabelValues(direction).Add(float64(items))
}

// PositionSaved implements metrics.Recorder.
func (r *Recorder) PositionSaved(direction string) {
	r.positionSaves.WithLabelValues(direction).Inc()
}

// PositionDropped implements metrics.Recorder.
func (r *Recorder) PositionDropped() {
	r.positionDrops.Inc()
}

// Restarted implements metrics.Recorder.
func (r *Recorder) Restarted() {
	r.restarts.Inc()
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
