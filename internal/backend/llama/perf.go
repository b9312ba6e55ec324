package llama

import (
	"regexp"
	"strconv"
	"time"

	"github.com/ekisa-team/summa/internal/backend"
)

// perfLine matches llama.cpp timing lines, old (llama_print_timings) and
// new (llama_perf_context_print) spellings.
var perfLine = regexp.MustCompile(`(?m)^(?:llama_perf_context_print|llama_print_timings):\s+(prompt eval|eval) time =\s+([0-9.]+) ms /\s+([0-9]+) (?:tokens|runs)`)

type perf struct {
	promptEval   time.Duration
	eval         time.Duration
	promptTokens int
	evalRuns     int
	hasPrompt    bool
	hasEval      bool
}

func parsePerf(stderr string) perf {
	var p perf
	for _, m := range perfLine.FindAllStringSubmatch(stderr, -1) {
		ms, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		count, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		d := time.Duration(ms * float64(time.Millisecond))

		switch m[1] {
		case "prompt eval":
			p.promptEval, p.promptTokens, p.hasPrompt = d, count, true
		case "eval":
			p.eval, p.evalRuns, p.hasEval = d, count, true
		}
	}

	return p
}

// applyPerf overrides wall-clock measurements with the runtime's own timings.
func applyPerf(stats *backend.InferenceStats, p perf) {
	if p.hasPrompt {
		stats.FeedPromptDuration = p.promptEval
		stats.PromptTokens = p.promptTokens
	}
	if p.hasEval {
		stats.PredictDuration = p.eval
		stats.PredictTokens = p.evalRuns
	}
}
