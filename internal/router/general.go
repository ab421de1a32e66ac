package router

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"maestro/internal/llm"
	"maestro/internal/plan"
)

const generalSystemPrompt = `You are a general-purpose assistant handling a request
that no specialist claimed. Work from the request and any prior step results alone;
you have no tools. Answer directly and say plainly when something is beyond reach.`

// GeneralRouter is the catch-all specialist. Delegation lands here when
// no domain matched, so a complex request that fits no pipeline still
// gets a direct oracle answer instead of dead-ending.
type GeneralRouter struct {
	Base
	client llm.Client
	model  string
}

// NewGeneralRouter wires the catch-all handler. Its priority sits below
// every real specialist so it never shadows one.
func NewGeneralRouter(client llm.Client, model string, logger *zap.Logger) *GeneralRouter {
	return &GeneralRouter{
		Base: NewBase("general-assistant", DomainGeneral, 10,
			[]string{"general assistance", "open-ended reasoning", "conversation"},
			[]string{"general_operation"},
			logger),
		client: client,
		model:  model,
	}
}

// PlanSubSteps always yields one step; there is nothing to decompose
// when no specialist affordance applies.
func (g *GeneralRouter) PlanSubSteps(ctx context.Context, goal string, opctx plan.OperationContext) ([]plan.OperationStep, error) {
	return fallbackStep(DomainGeneral, "general_operation", goal), nil
}

func (g *GeneralRouter) ExecuteStep(ctx context.Context, step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
	start := time.Now()

	goal := step.Description
	if goal == "" {
		goal = opctx.OriginalIntent
	}
	prompt := goal
	if material := gatherResults(opctx); material != "" {
		prompt = goal + "\n\nResults from earlier steps:\n" + material
	}

	resp, err := g.client.Generate(ctx, llm.Request{
		Model:   g.model,
		System:  generalSystemPrompt,
		Prompt:  prompt,
		Options: llm.Options{Temperature: 0.6},
	})
	if err != nil {
		return plan.FailureResult(step, "general assistance: "+err.Error(), nil, time.Since(start))
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return plan.FailureResult(step, "general assistance: empty response", nil, time.Since(start))
	}
	return plan.SuccessResult(step, map[string]string{"response": answer}, time.Since(start))
}

func (g *GeneralRouter) EstimateExecutionTime(step plan.OperationStep) time.Duration {
	return 15 * time.Second
}
