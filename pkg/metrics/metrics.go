package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_store_merges_total",
		Help: "Timeline merge operations by source and outcome.",
	}, []string{"source", "outcome"})

	GuardDenialsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_store_guard_denials_total",
		Help: "Merge candidates rejected by the monotonicity guard.",
	})

	TombstoneDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_store_tombstone_drops_total",
		Help: "Incoming messages dropped because their id was tombstoned.",
	})

	TombstoneEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_store_tombstone_evictions_total",
		Help: "Tombstones evicted after the set reached its cap.",
	})

	CatchUpRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_catchup_runs_total",
		Help: "Completed catch-up sweeps.",
	})

	CatchUpSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_catchup_skips_total",
		Help: "Catch-up triggers skipped, by reason (running, debounced).",
	}, []string{"reason"})

	CatchUpRoomErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_catchup_room_errors_total",
		Help: "Per-room catch-up query failures (non-fatal).",
	})

	RealtimeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_realtime_events_total",
		Help: "Realtime events consumed by the bridge, by type.",
	}, []string{"type"})
)
