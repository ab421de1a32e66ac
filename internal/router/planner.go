package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"maestro/internal/extract"
	"maestro/internal/llm"
	"maestro/internal/plan"
)

// planFormatHint is appended to every domain planning prompt so the oracle
// emits a decodable decomposition.
const planFormatHint = `
Respond with ONLY a JSON object in this exact shape:
{"steps": [{"id": "s1", "type": "<operation_type>", "description": "<what this step does>", "parameters": {}, "dependencies": [], "estimated_seconds": 30}]}
Dependencies reference earlier step ids. Use only the operation types listed above.`

type rawPlannedStep struct {
	ID               string                `json:"id"`
	Type             string                `json:"type"`
	Description      string                `json:"description"`
	Parameters       map[string]plan.Value `json:"parameters"`
	Dependencies     []string              `json:"dependencies"`
	EstimatedSeconds int                   `json:"estimated_seconds"`
}

type rawPlanResponse struct {
	Steps []rawPlannedStep `json:"steps"`
}

// oraclePlan asks the model for a domain-scoped decomposition of a goal.
// The caller supplies the domain system prompt (which restricts the model
// to that router's affordances) and owns the fallback on error.
func oraclePlan(ctx context.Context, client llm.Client, model, systemPrompt, goal string, d Domain, opctx plan.OperationContext, logger *zap.Logger) ([]plan.OperationStep, error) {
	if client == nil {
		return nil, fmt.Errorf("no oracle configured")
	}

	var sb strings.Builder
	sb.WriteString("Goal: ")
	sb.WriteString(goal)
	if len(opctx.PreviousResults) > 0 {
		sb.WriteString("\n\nResults so far:\n")
		for _, res := range opctx.PreviousResults {
			status := "ok"
			if !res.Success {
				status = "failed: " + res.Error
			}
			fmt.Fprintf(&sb, "- %s (%s)\n", res.StepID, status)
		}
	}
	if len(opctx.UserConstraints) > 0 {
		sb.WriteString("\nConstraints: ")
		sb.WriteString(strings.Join(opctx.UserConstraints, "; "))
	}

	resp, err := client.Generate(ctx, llm.Request{
		Model:   model,
		System:  systemPrompt + planFormatHint,
		Prompt:  sb.String(),
		Options: llm.Options{Temperature: 0.2},
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}

	var decoded rawPlanResponse
	if err := extract.DecodeObject(resp.Text, &decoded); err != nil {
		return nil, fmt.Errorf("plan decode: %w", err)
	}
	if len(decoded.Steps) == 0 {
		return nil, fmt.Errorf("oracle produced an empty plan")
	}

	steps := make([]plan.OperationStep, 0, len(decoded.Steps))
	for i, raw := range decoded.Steps {
		id := strings.TrimSpace(raw.ID)
		if id == "" {
			id = fmt.Sprintf("%s-step-%d", d, i+1)
		}
		est := time.Duration(raw.EstimatedSeconds) * time.Second
		if est <= 0 {
			est = defaultStepEstimate
		}
		steps = append(steps, plan.OperationStep{
			ID:                id,
			Type:              strings.TrimSpace(raw.Type),
			Domain:            string(d),
			Description:       raw.Description,
			Parameters:        raw.Parameters,
			Dependencies:      raw.Dependencies,
			EstimatedDuration: est,
		})
	}

	logger.Debug("oracle decomposed goal",
		zap.String("domain", string(d)),
		zap.Int("steps", len(steps)))
	return steps, nil
}

// fallbackStep is the single generic step a router plans when the oracle
// call or its decoding fails: the whole goal as one operation.
func fallbackStep(d Domain, stepType, goal string) []plan.OperationStep {
	return []plan.OperationStep{{
		ID:                fmt.Sprintf("%s-step-1", d),
		Type:              stepType,
		Domain:            string(d),
		Description:       goal,
		EstimatedDuration: defaultStepEstimate,
	}}
}
