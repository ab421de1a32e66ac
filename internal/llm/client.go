// Package llm wraps the local-network Ollama endpoint behind a small
// client interface. The model is treated as a fallible oracle: calls
// return errors, never panic, and callers own their fallback behavior.
package llm

import "context"

// Options are passed through to the model server per request.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`     // context window
	NumPredict  int     `json:"num_predict,omitempty"` // max output tokens
}

// Request is one generation call.
type Request struct {
	Model   string  `json:"model"`
	System  string  `json:"system,omitempty"`
	Prompt  string  `json:"prompt"`
	Options Options `json:"options,omitempty"`
}

// Response is the final, fully accumulated generation result.
type Response struct {
	Text            string `json:"text"`
	Model           string `json:"model"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
	TotalDuration   int64  `json:"total_duration,omitempty"`
}

// Chunk is one streamed fragment of a generation in progress.
type Chunk struct {
	Text string
	Done bool
}

// StreamFunc receives chunks as they arrive. Returning an error aborts
// the stream and surfaces that error from GenerateStream.
type StreamFunc func(Chunk) error

// Client is the oracle boundary. Implementations must be safe for
// concurrent use: steps in one execution wave may call in parallel.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	GenerateStream(ctx context.Context, req Request, fn StreamFunc) (*Response, error)
}
