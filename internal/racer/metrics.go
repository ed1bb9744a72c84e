package racer

//
// Metrics definitions
//

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsSummaryObjectives returns the summary objectives for promauto.NewSummary.
func metricsSummaryObjectives() map[float64]float64 {
	return map[float64]float64{
		0.5:  0.010, // 0.490 <= φ <= 0.510
		0.9:  0.010, // 0.899 <= φ <= 0.901
		0.99: 0.001, // 0.989 <= φ <= 0.991
	}
}

var (
	// metricAttemptsCount counts the connect attempts by failure.
	metricAttemptsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mknet_connect_attempts_total",
		Help: "Total number of connect attempts",
	}, []string{"failure"})

	// metricConnectDurationSeconds summarizes the time to connect.
	metricConnectDurationSeconds = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "mknet_connect_duration_seconds",
		Help:       "Summarizes the time to obtain a connected socket or give up (in seconds)",
		Objectives: metricsSummaryObjectives(),
	})
)
