// Package metrics exposes the process's Prometheus collectors. The
// teacher's /stats endpoint reports two raw numbers (room count,
// player count) read on demand from the matchmaker; this package
// generalizes that into live gauges/counters scraped by Prometheus
// instead of polled over HTTP; /stats is kept as a human-readable
// summary alongside /metrics in cmd/quizroomd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quizroom",
		Name:      "rooms_active",
		Help:      "Number of rooms currently live.",
	})

	PlayersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quizroom",
		Name:      "players_connected",
		Help:      "Number of players with a live socket across all rooms.",
	})

	RoomsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizroom",
		Name:      "rooms_created_total",
		Help:      "Total rooms created.",
	})

	RoomsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizroom",
		Name:      "rooms_closed_total",
		Help:      "Total rooms closed, labeled by reason.",
	}, []string{"reason"})

	JoinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizroom",
		Name:      "joins_total",
		Help:      "Total join attempts, labeled by outcome.",
	}, []string{"outcome"})

	ReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizroom",
		Name:      "reconnects_total",
		Help:      "Total reconnect attempts, labeled by role and outcome.",
	}, []string{"role", "outcome"})

	TimerExpiriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizroom",
		Name:      "timer_expiries_total",
		Help:      "Total rounds ended by timer expiry rather than host/all-answered trigger.",
	})

	ReaperClosuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizroom",
		Name:      "reaper_closures_total",
		Help:      "Total rooms closed by the grace-period reaper.",
	})

	ReaperPlayerRemovalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizroom",
		Name:      "reaper_player_removals_total",
		Help:      "Total players hard-removed by the grace-period reaper.",
	})
)
