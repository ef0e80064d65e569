package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GenerationSucceeded records a successful generator call
func GenerationSucceeded(duration time.Duration) {
	GenerationsTotal.WithLabelValues("success").Inc()
	GenerationDuration.Observe(duration.Seconds())
}

// GenerationFailed records a failed generator call by failure kind
func GenerationFailed(kind string) {
	GenerationsTotal.WithLabelValues(kind).Inc()
}

// TitleDone records the per-title result
func TitleDone(result string) {
	TitlesTotal.WithLabelValues(result).Inc()
}

// ThumbnailStored records a thumbnail written to storage. Quality and
// attempts are only observed for normalized thumbnails.
func ThumbnailStored(mode string, quality, attempts, size int) {
	ThumbnailsTotal.WithLabelValues(mode).Inc()
	ThumbnailBytes.Observe(float64(size))
	if attempts > 0 {
		EncodeQuality.Observe(float64(quality))
		EncodeAttempts.Observe(float64(attempts))
	}
}

// BatchFinished records a batch's final state and duration
func BatchFinished(state string, duration time.Duration) {
	BatchesTotal.WithLabelValues(state).Inc()
	BatchDuration.Observe(duration.Seconds())
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, for pickup by node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
