package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_messages_processed_total",
			Help: "Total number of processed messages by outcome",
		},
		[]string{"outcome"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_stage_failures_total",
			Help: "Total number of degraded pipeline stages by failure kind",
		},
		[]string{"kind"},
	)

	ImpactScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "emotrack_impact_score",
			Help:    "Compound impact score of processed messages",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	ClassificationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "emotrack_classification_latency_seconds",
			Help: "Emotion classification latency in seconds",
		},
	)

	ResidentProfiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emotrack_resident_profiles",
			Help: "Number of user profiles held in memory",
		},
	)

	CheckpointDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "emotrack_checkpoint_duration_seconds",
			Help: "Time taken to persist all resident profiles",
		},
	)
)
