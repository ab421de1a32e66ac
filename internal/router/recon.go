package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"maestro/internal/llm"
	"maestro/internal/plan"
	"maestro/internal/tool"
)

const reconPlannerPrompt = `You are the planning function of an environment reconnaissance specialist.
You decompose a goal into steps using ONLY these operation types:
- environment_discovery: survey the host environment (os, arch, resources)
- device_survey: enumerate device facts relevant to the goal
- capability_scan: determine which capabilities are currently available
Keep plans short; one environment_discovery step answers most goals.`

// ReconRouter is the intelligence-gathering specialist: it surveys the
// environment the agent runs in and feeds discovered capabilities back
// into the operation context for later steps.
type ReconRouter struct {
	Base
	deviceInfo tool.Tool
	client     llm.Client
	model      string
}

// NewReconRouter wires the recon specialist.
func NewReconRouter(client llm.Client, model string, deviceInfo tool.Tool, logger *zap.Logger) *ReconRouter {
	return &ReconRouter{
		Base: NewBase("recon", DomainIntelligence, 70,
			[]string{"environment discovery", "device survey", "capability scan", "system information"},
			[]string{"environment_discovery", "device_survey", "capability_scan"},
			logger),
		deviceInfo: deviceInfo,
		client:     client,
		model:      model,
	}
}

func (r *ReconRouter) PlanSubSteps(ctx context.Context, goal string, opctx plan.OperationContext) ([]plan.OperationStep, error) {
	steps, err := oraclePlan(ctx, r.client, r.model, reconPlannerPrompt, goal, DomainIntelligence, opctx, r.Logger())
	if err != nil {
		r.Logger().Warn("recon planning fell back to generic step", zap.Error(err))
		return fallbackStep(DomainIntelligence, "environment_discovery", goal), nil
	}
	return steps, nil
}

func (r *ReconRouter) ExecuteStep(ctx context.Context, step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
	start := time.Now()

	res, err := r.deviceInfo.Execute(ctx, step.Parameters)
	if err != nil || !res.Success {
		return plan.FailureResult(step, "environment discovery failed: "+errText(err, res), nil, time.Since(start))
	}

	// Discovered facts double as capabilities for downstream planning.
	data := map[string]string{"report": res.Output}
	for k, v := range res.Metadata {
		data[k] = v
	}
	return plan.SuccessResult(step, data, time.Since(start))
}

// EstimateExecutionTime: local process introspection is near-instant.
func (r *ReconRouter) EstimateExecutionTime(step plan.OperationStep) time.Duration {
	return 2 * time.Second
}
