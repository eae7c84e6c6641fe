package notifications

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	droppedTotal prometheus.Counter

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics registers the dropped-event counter. Safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentcred_notifications_dropped_total",
			Help: "Governance events dropped because the notification queue was full",
		})
		metricsRegistered = true
	})
}

func incrementDroppedCounter() {
	if !metricsRegistered || droppedTotal == nil {
		return
	}
	droppedTotal.Inc()
}

// GetDroppedCounter exposes the counter for tests.
func GetDroppedCounter() prometheus.Counter {
	return droppedTotal
}
