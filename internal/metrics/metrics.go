// Package metrics holds the Prometheus instruments shared by the coordinator.
// All collectors live in the default registry and are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodestone_ingest_events_total",
			Help: "Events accepted from game servers, by event kind.",
		}, []string{"event"})

	OutboundCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodestone_outbound_calls_total",
			Help: "Control calls sent to game servers, by action and result.",
		}, []string{"action", "result"})

	RCONPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodestone_rcon_polls_total",
			Help: "RCON polls, by target and result.",
		}, []string{"target", "result"})

	FanoutDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodestone_fanout_dropped_total",
			Help: "Fan-out messages or consumers dropped, by reason.",
		}, []string{"reason"})

	FanoutConsumers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lodestone_fanout_consumers",
			Help: "Websocket consumers currently connected.",
		})

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lodestone_active_sessions",
			Help: "Player sessions currently held in memory.",
		})

	BanTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodestone_ban_transitions_total",
			Help: "Ban store transitions, by action and actor kind.",
		}, []string{"action", "actor"})
)

func init() {
	prometheus.MustRegister(
		IngestEventsTotal,
		OutboundCallsTotal,
		RCONPollsTotal,
		FanoutDroppedTotal,
		FanoutConsumers,
		ActiveSessions,
		BanTransitionsTotal,
	)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
