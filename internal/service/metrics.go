package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GamesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mines_games_started_total",
			Help: "Games started",
		},
	)
	RevealsRequested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mines_reveals_requested_total",
			Help: "Disclosure requests accepted",
		},
	)
	RevealsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mines_reveals_completed_total",
			Help: "Verified disclosures applied, by cell outcome",
		},
		[]string{"outcome"},
	)
	RevealsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mines_reveals_cancelled_total",
			Help: "Pending disclosures cancelled, by reason",
		},
		[]string{"reason"},
	)
	Rejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mines_rejected_operations_total",
			Help: "Operations rejected before any state change",
		},
		[]string{"op", "code"},
	)
	PendingDisclosures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mines_pending_disclosures",
			Help: "Actors with an outstanding disclosure request",
		},
	)
	EventsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mines_events_persisted_total",
			Help: "Protocol events written to the event log, by result",
		},
		[]string{"result"},
	)
	DisclosureLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mines_disclosure_latency_seconds",
			Help:    "Time between a reveal request and its verified completion",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(GamesStarted)
	prometheus.MustRegister(RevealsRequested)
	prometheus.MustRegister(RevealsCompleted)
	prometheus.MustRegister(RevealsCancelled)
	prometheus.MustRegister(Rejected)
	prometheus.MustRegister(PendingDisclosures)
	prometheus.MustRegister(EventsPersisted)
	prometheus.MustRegister(DisclosureLatency)
}
