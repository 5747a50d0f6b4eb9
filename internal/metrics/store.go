package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(checkpointsTotal)
}

var checkpointsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_checkpoints_total",
		Help: "Persistence checkpoints by outcome (ok, unauthorized, unavailable, skipped).",
	},
	[]string{"outcome"},
)

// Checkpoint records one persistence checkpoint attempt
func Checkpoint(outcome string) {
	checkpointsTotal.WithLabelValues(norm(outcome)).Inc()
}
