package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		generationsTotal,
		generationLatencyMs,
		streamDeltasTotal,
		tokensTotal,
		openStreams,
	)
}

// Generation outcomes
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_generations_total",
			Help: "Completed generations per provider/model and outcome.",
		},
		[]string{"provider", "model", "outcome"},
	)

	generationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_generation_latency_ms",
			Help:    "Wall time of a streamed generation in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000, 64000},
		},
		[]string{"provider", "model"},
	)

	streamDeltasTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_stream_deltas_total",
			Help: "Streamed text deltas per provider/model.",
		},
		[]string{"provider", "model"},
	)

	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_tokens_total",
			Help: "Prompt and completion tokens per provider/model.",
		},
		[]string{"provider", "model", "kind"},
	)

	openStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_open_streams",
			Help: "Generations currently streaming.",
		},
	)
)

// StreamOpened tracks a generation that started streaming
func StreamOpened() {
	openStreams.Inc()
}

// ObserveGeneration records the end of one generation
func ObserveGeneration(provider, model, outcome string, elapsed time.Duration, deltas int) {
	provider, model = norm(provider), norm(model)
	openStreams.Dec()
	generationsTotal.WithLabelValues(provider, model, outcome).Inc()
	generationLatencyMs.WithLabelValues(provider, model).Observe(float64(elapsed.Milliseconds()))
	streamDeltasTotal.WithLabelValues(provider, model).Add(float64(deltas))
}

// ObserveTokens records prompt/completion token counts
func ObserveTokens(provider, model string, prompt, completion int) {
	provider, model = norm(provider), norm(model)
	tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completion))
}
