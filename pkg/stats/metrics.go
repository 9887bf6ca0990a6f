package stats

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// Metrics exports run counters through a private Prometheus registry
type Metrics struct {
	registry *prometheus.Registry

	quota     prometheus.Gauge
	inFlight  prometheus.Gauge
	available *prometheus.CounterVec
	images    *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	pages     *prometheus.CounterVec
}

// NewMetrics registers the collectors against a fresh registry
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quota: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "img_rotator_quota",
			Help: "Target number of processed images for the run.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "img_rotator_images_in_flight",
			Help: "Images admitted and not yet completed.",
		}),
		available: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "img_rotator_candidates_total",
			Help: "Image candidates discovered per site.",
		}, []string{"site"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "img_rotator_images_total",
			Help: "Completed images partitioned by site and final status.",
		}, []string{"site", "status"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "img_rotator_images_skipped_total",
			Help: "Candidates skipped because an earlier run processed them.",
		}, []string{"site"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "img_rotator_pages_total",
			Help: "Site page fetches partitioned by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{m.quota, m.inFlight, m.available, m.images, m.skipped, m.pages} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register run collector: %w", err)
		}
	}
	return m, nil
}

// ObservePage counts a site page fetch outcome
func (m *Metrics) ObservePage(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.pages.WithLabelValues("error").Inc()
		return
	}
	m.pages.WithLabelValues("ok").Inc()
}

// Registry exposes the gatherer for tests and exporters
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current metrics in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: writing metrics textfile '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
