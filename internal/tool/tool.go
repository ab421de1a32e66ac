// Package tool defines the uniform request/response contract routers use
// to invoke capabilities, plus the built-in tool implementations: web
// fetch, readable-text extraction, summarization, and device info.
//
// Tools convert their internal failures into Result{Success: false} with
// the error mirrored in the return value, so callers can either branch on
// the result or propagate the error.
package tool

import (
	"context"

	"maestro/internal/plan"
)

// Result is the outcome of one tool invocation. Output is the primary
// payload; Metadata carries side-channel facts (lengths, content types,
// timings) kept as strings for direct prompt embedding.
type Result struct {
	Success  bool              `json:"success"`
	Output   string            `json:"output"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Tool is one invocable capability.
type Tool interface {
	Name() string
	Execute(ctx context.Context, params plan.Params) (Result, error)
}

func failure(err error) Result {
	return Result{Success: false, Output: "", Metadata: map[string]string{"error": err.Error()}}
}
