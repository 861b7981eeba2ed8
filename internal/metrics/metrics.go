package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EnrichmentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_enrichment_total",
			Help: "Enrichment queue outcomes by status and note",
		},
		[]string{"status", "note"}, // queued|skipped|suppressed|rejected|enriched|failed
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_dispatch_total",
			Help: "Sequence step dispatch outcomes by channel",
		},
		[]string{"channel", "outcome"}, // email|voice|network|wait , sent|skipped|throttled|failed
	)

	ClaimsLostTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_claims_lost_total",
			Help: "Due enrollments another poller claimed first",
		},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outreach_poll_duration_seconds",
			Help:    "Wall time of one orchestrator poll cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_events_written_total",
			Help: "Enrollment events flushed to ClickHouse",
		},
	)

	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_voice_callbacks_total",
			Help: "Voice call completion events by outcome",
		},
		[]string{"source", "outcome"}, // webhook|kafka , applied|duplicate|rejected|error
	)

	OutboxRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_outbox_relayed_total",
			Help: "Outbox rows published to Kafka by the polling relay",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		EnrichmentTotal,
		DispatchTotal,
		ClaimsLostTotal,
		PollDuration,
		EventsWritten,
		CallbacksTotal,
		OutboxRelayed,
	)
}
