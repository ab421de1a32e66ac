package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"maestro/internal/llm"
	"maestro/internal/plan"
)

// recordingOracle keeps the last prompt so tests can assert what the
// model was actually shown.
type recordingOracle struct {
	fakeOracle
	lastPrompt string
}

func (r *recordingOracle) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	r.lastPrompt = req.Prompt
	return r.fakeOracle.Generate(ctx, req)
}

func TestGeneralAnswersDirectly(t *testing.T) {
	g := NewGeneralRouter(&fakeOracle{text: "  forty-two  "}, "test-model", nil)

	step := plan.OperationStep{ID: "s1", Type: "general_operation", Domain: "general", Description: "ponder the meaning of life"}
	res := g.ExecuteStep(context.Background(), step, plan.NewOperationContext("sess", "ponder the meaning of life", 0))
	require.True(t, res.Success)
	require.Equal(t, "forty-two", res.Data["response"])
}

func TestGeneralIncludesPriorResults(t *testing.T) {
	oracle := &recordingOracle{fakeOracle: fakeOracle{text: "done"}}
	g := NewGeneralRouter(oracle, "test-model", nil)

	opctx := plan.NewOperationContext("sess", "wrap it up", 0)
	opctx = opctx.Evolve(plan.StepResult{
		StepID:  "web-1",
		Success: true,
		Data:    map[string]string{"summary": "the page says hello"},
	}, nil)

	step := plan.OperationStep{ID: "s2", Type: "general_operation", Domain: "general"}
	res := g.ExecuteStep(context.Background(), step, opctx)
	require.True(t, res.Success)
	require.Contains(t, oracle.lastPrompt, "wrap it up")
	require.Contains(t, oracle.lastPrompt, "the page says hello")
}

func TestGeneralOracleErrorFails(t *testing.T) {
	g := NewGeneralRouter(&fakeOracle{err: errors.New("connection refused")}, "test-model", nil)

	step := plan.OperationStep{ID: "s1", Type: "general_operation", Domain: "general"}
	res := g.ExecuteStep(context.Background(), step, plan.NewOperationContext("sess", "x", 0))
	require.False(t, res.Success)
	require.Contains(t, res.Error, "connection refused")
}

func TestGeneralPlansSingleStep(t *testing.T) {
	g := NewGeneralRouter(&fakeOracle{text: "unused"}, "test-model", nil)

	steps, err := g.PlanSubSteps(context.Background(), "anything at all", plan.NewOperationContext("sess", "anything at all", 0))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Equal(t, "general_operation", steps[0].Type)
}
