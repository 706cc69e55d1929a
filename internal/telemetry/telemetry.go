// Package telemetry implements the operational metrics endpoint described
// in SPEC_FULL.md's supplemented features: a small set of
// prometheus/client_golang collectors distinct from C2's in-match scoring
// engine, exposed on /metrics. Grounded on the teacher's
// internal/interfaces/http.MetricsRegistry (gauges/counters built at
// construction, registered with MustRegister, a promhttp Handler method),
// scaled down to the handful of gauges/counters this system actually
// needs instead of the teacher's full pipeline/regime metric surface.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every operational metric this process exposes. Each
// process owns exactly one, built with New and registered against its own
// prometheus.Registry rather than the global default, so tests can build
// more than one without tripping a duplicate-registration panic.
type Registry struct {
	registry *prometheus.Registry

	ActiveRooms        prometheus.Gauge
	QueueDepth         prometheus.Gauge
	RateLimitDrops     prometheus.Counter
	PlacementCompleted prometheus.Counter
	ApexPromotions     prometheus.Counter
	ApexDemotions      prometheus.Counter
}

// New builds and registers the metric set.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "velotype_active_rooms",
			Help: "Number of in-progress matches currently owned by a Room.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "velotype_matchmaking_queue_depth",
			Help: "Number of players currently waiting in the matchmaking queue.",
		}),
		RateLimitDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "velotype_rate_limit_drops_total",
			Help: "Total number of inbound frames rejected by the per-connection rate limiter.",
		}),
		PlacementCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "velotype_placement_completed_total",
			Help: "Total number of accounts that completed their placement series.",
		}),
		ApexPromotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "velotype_apex_promotions_total",
			Help: "Total number of accounts newly eligible for the Apex competitive tier.",
		}),
		ApexDemotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "velotype_apex_demotions_total",
			Help: "Total number of accounts dropped from the Apex competitive tier.",
		}),
	}

	reg.MustRegister(
		r.ActiveRooms,
		r.QueueDepth,
		r.RateLimitDrops,
		r.PlacementCompleted,
		r.ApexPromotions,
		r.ApexDemotions,
	)
	return r
}

// Handler serves the registered metrics in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
