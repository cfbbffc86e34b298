// Package metrics records pipeline stage timings and row counts.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cryptovol"

// Recorder holds the pipeline metrics in a private registry
type Recorder struct {
	registry      *prometheus.Registry
	rows          *prometheus.GaugeVec
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	missingFilled prometheus.Counter
}

// NewRecorder creates a recorder with all metrics registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Number of rows produced by each pipeline stage.",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Number of failed pipeline stages.",
		}, []string{"stage"}),
		missingFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_values_filled_total",
			Help:      "Missing feature values replaced by medians.",
		}),
	}
	r.registry.MustRegister(r.rows, r.stageDuration, r.stageErrors, r.missingFilled)
	return r
}

// Stage times fn under the given stage label and counts failures
func (r *Recorder) Stage(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		r.stageErrors.WithLabelValues(stage).Inc()
	}
	return err
}

// Rows records the row count produced by a stage
func (r *Recorder) Rows(stage string, n int) {
	r.rows.WithLabelValues(stage).Set(float64(n))
}

// MissingFilled adds to the count of imputed values
func (r *Recorder) MissingFilled(n int) {
	r.missingFilled.Add(float64(n))
}

// Registry exposes the underlying registry, mainly for tests
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteFile writes all metrics in the text exposition format
func (r *Recorder) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
