package router

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"maestro/internal/llm"
	"maestro/internal/plan"
)

const dataSystemPrompt = `You are a data processing specialist. You consolidate,
summarize and reformat results produced by earlier operations. Respond with the
processed output only, no preamble.`

// DataRouter consolidates and reshapes results accumulated by earlier
// steps. It never fetches anything itself; its raw material is the
// operation context.
type DataRouter struct {
	Base
	client llm.Client
	model  string
}

// NewDataRouter wires the data processing specialist.
func NewDataRouter(client llm.Client, model string, logger *zap.Logger) *DataRouter {
	return &DataRouter{
		Base: NewBase("data-processing", DomainData, 60,
			[]string{"data consolidation", "result summarization", "data transformation", "report generation"},
			[]string{"data_processing", "consolidate_results", "generate_report"},
			logger),
		client: client,
		model:  model,
	}
}

func (d *DataRouter) PlanSubSteps(ctx context.Context, goal string, opctx plan.OperationContext) ([]plan.OperationStep, error) {
	return fallbackStep(DomainData, "consolidate_results", goal), nil
}

func (d *DataRouter) ExecuteStep(ctx context.Context, step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
	start := time.Now()

	material := gatherResults(opctx)
	if material == "" {
		return plan.FailureResult(step, "no prior results available to process", nil, time.Since(start))
	}

	instruction := step.Description
	if instruction == "" {
		instruction = "Consolidate the results below into a single coherent report."
	}

	resp, err := d.client.Generate(ctx, llm.Request{
		Model:  d.model,
		System: dataSystemPrompt,
		Prompt: fmt.Sprintf("%s\n\nResults:\n%s", instruction, material),
		Options: llm.Options{
			Temperature: 0.3,
			NumPredict:  1024,
		},
	})
	if err != nil {
		return plan.FailureResult(step, fmt.Sprintf("data processing: %v", err), map[string]string{
			"sources": strconv.Itoa(len(opctx.PreviousResults)),
		}, time.Since(start))
	}

	return plan.SuccessResult(step, map[string]string{
		"report":  strings.TrimSpace(resp.Text),
		"sources": strconv.Itoa(len(opctx.PreviousResults)),
	}, time.Since(start))
}

func (d *DataRouter) EstimateExecutionTime(step plan.OperationStep) time.Duration {
	return 10 * time.Second
}

// gatherResults flattens prior step results into prompt material.
// Failed steps are included with their error so the oracle can mention
// gaps rather than invent data.
func gatherResults(opctx plan.OperationContext) string {
	if len(opctx.PreviousResults) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range opctx.PreviousResults {
		fmt.Fprintf(&b, "[%s]", r.StepID)
		if !r.Success {
			fmt.Fprintf(&b, " failed: %s\n", r.Error)
			continue
		}
		b.WriteByte('\n')
		keys := make([]string, 0, len(r.Data))
		for k := range r.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := r.Data[k]
			if len(v) > 4096 {
				v = v[:4096]
			}
			fmt.Fprintf(&b, "  %s: %s\n", k, v)
		}
	}
	return b.String()
}
