package obs

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every Prometheus collector the daemon registers. Fields are
// exported so call sites increment them directly.
type Metrics struct {
	ProviderCalls   *prometheus.CounterVec   // provider, status=success|failure|circuit_open|timeout
	ProviderLatency *prometheus.HistogramVec // provider

	BreakerState       *prometheus.GaugeVec   // provider; 0 closed, 1 open, 2 half_open
	BreakerTransitions *prometheus.CounterVec // provider, state

	CacheEvents *prometheus.CounterVec // event=hit|miss|store|corrupt|contended|degraded

	IdentifyRequests prometheus.Counter
	IdentifyInFlight prometheus.Gauge

	SweepRemoved *prometheus.CounterVec // store=results|locks
}

// NewMetrics builds and registers the collector set against reg. Passing nil
// registers against the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identify_provider_calls_total",
				Help: "Total provider call outcomes by status",
			},
			[]string{"provider", "status"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identify_provider_latency_ms",
				Help:    "Latency of provider calls (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1ms .. ~8s
			},
			[]string{"provider"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "breaker_state",
				Help: "Current circuit state per provider (0 closed, 1 open, 2 half_open)",
			},
			[]string{"provider"},
		),
		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breaker_transitions_total",
				Help: "Total circuit state transitions by destination state",
			},
			[]string{"provider", "state"},
		),
		CacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_events_total",
				Help: "Total result cache activity by event",
			},
			[]string{"event"},
		),
		IdentifyRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "identify_requests_total",
			Help: "Total aggregate identification requests",
		}),
		IdentifyInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "identify_inflight",
			Help: "Aggregate identification requests currently running",
		}),
		SweepRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "janitor_sweep_removed_total",
				Help: "Total expired rows removed by the background janitors",
			},
			[]string{"store"},
		),
	}

	reg.MustRegister(
		m.ProviderCalls,
		m.ProviderLatency,
		m.BreakerState,
		m.BreakerTransitions,
		m.CacheEvents,
		m.IdentifyRequests,
		m.IdentifyInFlight,
		m.SweepRemoved,
	)

	return m
}
