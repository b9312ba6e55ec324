package backend

import (
	"fmt"
	"strings"
	"time"
)

const maxContextExponent = 24

// InferenceStats summarises one generation.
type InferenceStats struct {
	// FeedPromptDuration is the time spent evaluating the prompt.
	FeedPromptDuration time.Duration

	// PredictDuration is the time spent generating new tokens.
	PredictDuration time.Duration

	// PromptTokens is the number of prompt tokens evaluated.
	PromptTokens int

	// PredictTokens is the number of tokens generated.
	PredictTokens int

	// Halted is set when the token callback stopped generation.
	Halted bool
}

// PerTokenDuration is the mean generation time per predicted token.
func (s *InferenceStats) PerTokenDuration() time.Duration {
	if s.PredictTokens == 0 {
		return 0
	}

	return s.PredictDuration / time.Duration(s.PredictTokens)
}

// String renders one "name: value" pair per line.
func (s *InferenceStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "feed_prompt_duration: %dms\n", s.FeedPromptDuration.Milliseconds())
	fmt.Fprintf(&b, "prompt_tokens: %d\n", s.PromptTokens)
	fmt.Fprintf(&b, "predict_duration: %dms\n", s.PredictDuration.Milliseconds())
	fmt.Fprintf(&b, "predict_tokens: %d\n", s.PredictTokens)
	fmt.Fprintf(&b, "per_token_duration: %.3fms", float64(s.PerTokenDuration().Microseconds())/1000)
	if s.Halted {
		b.WriteString("\nhalted: true")
	}

	return b.String()
}

// ContextSizeFromExponent converts a context exponent n into 2^n tokens.
func ContextSizeFromExponent(n int) (int, error) {
	if n < 1 || n > maxContextExponent {
		return 0, fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidContext, n, maxContextExponent)
	}

	return 1 << n, nil
}
