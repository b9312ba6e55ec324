package llama

import (
	"fmt"
	"strconv"

	"github.com/ekisa-team/summa/internal/backend"
)

const (
	// allLayers is passed to -ngl to offload every layer.
	allLayers = 999

	// promptFile is where llama-cli reads the prompt from.
	promptFile = "/dev/stdin"
)

// buildArgs builds llama-cli command-line arguments.
func buildArgs(path string, mp backend.ModelParameters, req *backend.InferenceRequest, seed uint32) []string {
	args := []string{
		"--model", path,
		"--ctx-size", strconv.Itoa(mp.ContextSize),
	}

	// GPU layers
	ngl := 0
	if mp.UseGPU {
		ngl = mp.GPULayers
		if ngl < 0 {
			ngl = allLayers
		}
	}
	args = append(args, "-ngl", strconv.Itoa(ngl))

	// Threads
	if mp.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(mp.Threads))
	}

	// Sampling
	p := req.Parameters
	args = append(args,
		"--temp", fmt.Sprintf("%.2f", p.Temperature),
		"--top-k", strconv.Itoa(p.TopK),
		"--top-p", fmt.Sprintf("%.2f", p.TopP),
		"--repeat-penalty", fmt.Sprintf("%.2f", p.RepeatPenalty),
		"--repeat-last-n", strconv.Itoa(p.RepeatLastN),
		"--seed", strconv.FormatUint(uint64(seed), 10),
	)

	// Token limit
	n := -1
	if req.MaxTokens > 0 {
		n = req.MaxTokens
	}
	args = append(args, "-n", strconv.Itoa(n))

	// The prompt is fed on stdin; a single argv element is capped at 128 KiB on Linux.
	args = append(args, "--file", promptFile)

	args = append(args, "--no-warmup")
	args = append(args, "--simple-io")
	args = append(args, "--no-conversation")
	if !req.PlayBackPreviousTokens {
		args = append(args, "--no-display-prompt")
	}

	return args
}
