package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes session-level metrics.
type Collector struct {
	participantsConnected prometheus.Gauge
	screenSharesActive    prometheus.Gauge

	joinsTotal          prometheus.Counter
	publishEventsTotal  *prometheus.CounterVec
	rosterRefreshTotal  prometheus.Counter
	teardownStepsFailed prometheus.Counter
}

func NewCollector() *Collector {
	return &Collector{
		participantsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stagecall_participants_connected",
			Help: "Remote participants currently in the meeting (screen identities excluded)",
		}),

		screenSharesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stagecall_screen_shares_active",
			Help: "Screen shares currently active, local and remote",
		}),

		joinsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagecall_joins_total",
			Help: "Total successful primary channel joins",
		}),

		publishEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagecall_publish_events_total",
			Help: "Transport publish/unpublish/left events processed",
		}, []string{"origin", "type"}),

		rosterRefreshTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagecall_roster_refresh_total",
			Help: "Roster fetches attempted for display-name resolution",
		}),

		teardownStepsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagecall_teardown_steps_failed_total",
			Help: "Teardown steps that failed and were skipped over",
		}),
	}
}

func (c *Collector) RecordJoin() {
	c.joinsTotal.Inc()
}

func (c *Collector) SetParticipantCount(n int) {
	c.participantsConnected.Set(float64(n))
}

func (c *Collector) SetScreenSharesActive(n int) {
	c.screenSharesActive.Set(float64(n))
}

func (c *Collector) RecordEvent(origin, eventType string) {
	c.publishEventsTotal.WithLabelValues(origin, eventType).Inc()
}

func (c *Collector) RecordRosterRefresh() {
	c.rosterRefreshTotal.Inc()
}

func (c *Collector) RecordTeardownStepFailure() {
	c.teardownStepsFailed.Inc()
}
