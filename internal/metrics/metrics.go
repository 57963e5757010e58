package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	breakStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulseboard",
			Name:      "break_started_total",
			Help:      "Count of break sessions started by break type.",
		},
		[]string{"break_type"},
	)

	breakDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulseboard",
			Name:      "break_denied_total",
			Help:      "Count of rejected break starts by reason.",
		},
		[]string{"reason"},
	)

	breakEnded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pulseboard",
			Name:      "break_ended_total",
			Help:      "Count of break sessions ended.",
		},
	)

	breakExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pulseboard",
			Name:      "break_expired_total",
			Help:      "Count of sessions flagged expired by the sweep.",
		},
	)

	activityTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulseboard",
			Name:      "activity_ticks_total",
			Help:      "Count of activity updates by resulting state.",
		},
		[]string{"state"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulseboard",
			Name:      "cache_lookups_total",
			Help:      "Count of cache lookups by view and outcome.",
		},
		[]string{"view", "outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulseboard",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			breakStarted, breakDenied, breakEnded, breakExpired,
			activityTicks, cacheLookups, httpRequests,
		)
	})
}

func IncBreakStarted(breakType string) {
	breakStarted.WithLabelValues(breakType).Inc()
}

func IncBreakDenied(reason string) {
	breakDenied.WithLabelValues(reason).Inc()
}

func IncBreakEnded() {
	breakEnded.Inc()
}

func IncBreakExpired() {
	breakExpired.Inc()
}

func IncActivityTick(active bool) {
	state := "inactive"
	if active {
		state = "active"
	}
	activityTicks.WithLabelValues(state).Inc()
}

func IncCacheLookup(view string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookups.WithLabelValues(view, outcome).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
