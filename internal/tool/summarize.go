package tool

import (
	"context"
	"fmt"
	"strconv"

	"maestro/internal/llm"
	"maestro/internal/plan"
)

const summarizeSystemPrompt = `You are a summarization engine. Produce a concise, factual summary of the provided content. No preamble, no commentary, no markdown headings. Stay under the requested word budget.`

const defaultSummaryWords = 150

// Summarize condenses text to a bounded length via the oracle.
//
// Parameters: "content" (required), "max_words" (optional).
// Output: the summary.
// Metadata: "input_length", "output_length".
type Summarize struct {
	client llm.Client
	model  string
}

// NewSummarize creates the summarization tool bound to a model.
func NewSummarize(client llm.Client, model string) *Summarize {
	return &Summarize{client: client, model: model}
}

func (s *Summarize) Name() string { return "summarize" }

func (s *Summarize) Execute(ctx context.Context, params plan.Params) (Result, error) {
	content := plan.ParamString(params, "content")
	if content == "" {
		err := fmt.Errorf("summarize: missing required parameter %q", "content")
		return failure(err), err
	}
	maxWords := defaultSummaryWords
	if n, ok := plan.ParamInt(params, "max_words"); ok && n > 0 {
		maxWords = n
	}

	resp, err := s.client.Generate(ctx, llm.Request{
		Model:  s.model,
		System: summarizeSystemPrompt,
		Prompt: fmt.Sprintf("Summarize in at most %d words:\n\n%s", maxWords, content),
		Options: llm.Options{
			Temperature: 0.3,
		},
	})
	if err != nil {
		err = fmt.Errorf("summarize: %w", err)
		return failure(err), err
	}

	return Result{
		Success: true,
		Output:  resp.Text,
		Metadata: map[string]string{
			"input_length":  strconv.Itoa(len(content)),
			"output_length": strconv.Itoa(len(resp.Text)),
		},
	}, nil
}
