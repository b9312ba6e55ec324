// Package prompt wraps input text in the Llama-2 chat instruction format.
package prompt

// DefaultSystem is the system instruction used when none is configured.
const DefaultSystem = "Summarize this"

// Prompt is a fully formatted instruction prompt.
type Prompt string

// Template is a Llama-2 chat template with a fixed system instruction.
type Template struct {
	System string
}

// DefaultTemplate instructs the model to summarize.
var DefaultTemplate = Template{System: DefaultSystem}

// Build wraps text with DefaultTemplate.
func Build(text string) Prompt {
	return DefaultTemplate.Build(text)
}

// Build wraps text verbatim: no escaping, no truncation. Every input,
// including the empty string, yields a well-formed prompt.
func (t Template) Build(text string) Prompt {
	return Prompt("[INST] <<SYS>>\n" + t.System + "\n<</SYS>>\n\n" + text + "\n[/INST]\n")
}

// String returns the prompt text.
func (p Prompt) String() string {
	return string(p)
}
