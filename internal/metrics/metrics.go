package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "thumbsv2"

// Batch metrics
var (
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batches run, by final state",
		},
		[]string{"state"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Batch wall-clock time distribution",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
	)

	TitlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "titles_total",
			Help:      "Titles handled, by result (generated, skipped)",
		},
		[]string{"result"},
	)
)

// Generator metrics
var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Image generation calls, by status (success, transient, auth)",
		},
		[]string{"status"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Image generation latency distribution",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 90, 120, 180},
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnails_total",
			Help:      "Thumbnails stored, by mode (normalized, raw_fallback)",
		},
		[]string{"mode"},
	)

	ThumbnailBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "thumbnail_bytes",
			Help:      "Size of stored thumbnails",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 2, 8),
		},
	)

	EncodeQuality = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_quality",
			Help:      "JPEG quality accepted by the quality ladder",
			Buckets:   prometheus.LinearBuckets(10, 10, 9),
		},
	)

	EncodeAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_attempts",
			Help:      "Encode attempts needed per thumbnail",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		},
	)
)
