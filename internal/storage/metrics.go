package storage

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for provisioning and saving.
type Metrics struct {
	ProvisionedDirs *prometheus.CounterVec
	SavedFiles      *prometheus.CounterVec
	SavedBytes      prometheus.Counter
	Collisions      *prometheus.CounterVec
	SaveDuration    prometheus.Histogram
}

// NewMetrics returns the process-wide storage metrics, registering them on
// first use.
//
// Metrics:
//   - pmapi_storage_provisioned_dirs_total{result} - created, existing or failed
//   - pmapi_storage_saved_files_total{outcome} - saved, legacy, rejected or failed
//   - pmapi_storage_saved_bytes_total
//   - pmapi_storage_collisions_total{policy}
//   - pmapi_storage_save_duration_seconds
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ProvisionedDirs: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "pmapi",
					Subsystem: "storage",
					Name:      "provisioned_dirs_total",
					Help:      "Directories visited by the provisioner, by result",
				},
				[]string{"result"},
			),
			SavedFiles: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "pmapi",
					Subsystem: "storage",
					Name:      "saved_files_total",
					Help:      "File save attempts, by outcome",
				},
				[]string{"outcome"},
			),
			SavedBytes: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "pmapi",
					Subsystem: "storage",
					Name:      "saved_bytes_total",
					Help:      "Bytes written by the file saver",
				},
			),
			Collisions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "pmapi",
					Subsystem: "storage",
					Name:      "collisions_total",
					Help:      "Saves whose derived path was already taken, by policy",
				},
				[]string{"policy"},
			),
			SaveDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "pmapi",
					Subsystem: "storage",
					Name:      "save_duration_seconds",
					Help:      "Duration of file saves",
					Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
				},
			),
		}
	})
	return globalMetrics
}
