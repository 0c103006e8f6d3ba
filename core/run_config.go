package core

// DefaultMaxLLMIterations bounds the model/tool loop when RunConfig leaves
// MaxLLMIterations unset.
const DefaultMaxLLMIterations = 10

// ResponseModality selects the output modalities requested from the model.
type ResponseModality string

const (
	// ModalityText requests textual output.
	ModalityText ResponseModality = "TEXT"
	// ModalityAudio requests audio output.
	ModalityAudio ResponseModality = "AUDIO"
	// ModalityImage requests image output.
	ModalityImage ResponseModality = "IMAGE"
)

// RunConfig carries per-invocation execution options.
type RunConfig struct {
	// Streaming exposes partial model chunks as events; when false only the
	// terminal chunk of each model turn is emitted.
	Streaming bool

	// MaxLLMIterations bounds the LLM agent's model/tool loop. Zero selects
	// DefaultMaxLLMIterations.
	MaxLLMIterations int

	// ResponseModalities requested from the model. Empty means text.
	ResponseModalities []ResponseModality
}

// DefaultRunConfig returns the baseline configuration: non-streaming with
// the default loop bound.
func DefaultRunConfig() RunConfig {
	return RunConfig{MaxLLMIterations: DefaultMaxLLMIterations}
}

// LoopBound resolves the effective model/tool iteration limit.
func (c RunConfig) LoopBound() int {
	if c.MaxLLMIterations > 0 {
		return c.MaxLLMIterations
	}
	return DefaultMaxLLMIterations
}
