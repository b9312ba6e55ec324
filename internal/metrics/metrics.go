// Package metrics records per-run counters in a Prometheus textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ekisa-team/summa/internal/backend"
)

// Run results recorded in summa_runs_total.
const (
	ResultDone   = "done"
	ResultFailed = "failed"
)

// Run holds the metrics of a single summarization run.
type Run struct {
	registry *prometheus.Registry

	TokensTotal       *prometheus.CounterVec
	GenerationSeconds prometheus.Gauge
	PromptBytes       prometheus.Gauge
	RunsTotal         *prometheus.CounterVec
	HaltsTotal        prometheus.Counter
}

// NewRun creates the metrics on a fresh registry.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Run{
		registry: reg,
		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "summa_tokens_total",
			Help: "Tokens delivered to the output, by kind",
		}, []string{"kind"}),
		GenerationSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "summa_generation_seconds",
			Help: "Wall time spent feeding the prompt and predicting",
		}),
		PromptBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "summa_prompt_bytes",
			Help: "Size of the formatted prompt",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "summa_runs_total",
			Help: "Completed runs, by result",
		}, []string{"result"}),
		HaltsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "summa_halts_total",
			Help: "Generations stopped early by the output sink",
		}),
	}
}

// ObservePrompt records the formatted prompt size.
func (r *Run) ObservePrompt(size int) {
	r.PromptBytes.Set(float64(size))
}

// ObserveTokens records how many tokens of kind reached the output.
func (r *Run) ObserveTokens(kind backend.TokenKind, n int) {
	r.TokensTotal.WithLabelValues(kind.String()).Add(float64(n))
}

// ObserveStats records generation timing and halts.
func (r *Run) ObserveStats(stats *backend.InferenceStats) {
	if stats == nil {
		return
	}

	r.GenerationSeconds.Set((stats.FeedPromptDuration + stats.PredictDuration).Seconds())
	if stats.Halted {
		r.HaltsTotal.Inc()
	}
}

// Finish records the run result.
func (r *Run) Finish(err error) {
	if err != nil {
		r.RunsTotal.WithLabelValues(ResultFailed).Inc()
		return
	}

	r.RunsTotal.WithLabelValues(ResultDone).Inc()
}

// Registry returns the registry holding the run metrics.
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTo writes the metrics to path in the text exposition format. The file
// is replaced atomically.
func (r *Run) WriteTo(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: failed to write %s: %w", path, err)
	}

	return nil
}
