package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"maestro/internal/intent"
	"maestro/internal/llm"
	"maestro/internal/personality"
	"maestro/internal/plan"
	"maestro/internal/router"
	"maestro/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// cannedLLM returns fixed text for every call, counting calls and
// recording the requests it saw.
type cannedLLM struct {
	text  string
	err   error
	calls atomic.Int32

	mu   sync.Mutex
	reqs []llm.Request
}

func (c *cannedLLM) record(req llm.Request) {
	c.mu.Lock()
	c.reqs = append(c.reqs, req)
	c.mu.Unlock()
}

func (c *cannedLLM) requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.reqs...)
}

func (c *cannedLLM) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.calls.Add(1)
	c.record(req)
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Text: c.text}, nil
}

func (c *cannedLLM) GenerateStream(ctx context.Context, req llm.Request, fn llm.StreamFunc) (*llm.Response, error) {
	c.calls.Add(1)
	c.record(req)
	if c.err != nil {
		return nil, c.err
	}
	if err := fn(llm.Chunk{Text: c.text}); err != nil {
		return nil, err
	}
	if err := fn(llm.Chunk{Done: true}); err != nil {
		return nil, err
	}
	return &llm.Response{Text: c.text}, nil
}

// scriptRouter plans a fixed set of steps and executes them with a
// configurable function.
type scriptRouter struct {
	router.Base
	steps []plan.OperationStep
	exec  func(step plan.OperationStep, opctx plan.OperationContext) plan.StepResult
}

func newScriptRouter(steps []plan.OperationStep, exec func(plan.OperationStep, plan.OperationContext) plan.StepResult) *scriptRouter {
	return &scriptRouter{
		Base: router.NewBase("script", router.DomainWeb, 80,
			[]string{"web intelligence"}, []string{"web_intelligence"}, nil),
		steps: steps,
		exec:  exec,
	}
}

func (s *scriptRouter) CanHandle(ctx context.Context, step plan.OperationStep) bool { return true }

func (s *scriptRouter) PlanSubSteps(ctx context.Context, goal string, opctx plan.OperationContext) ([]plan.OperationStep, error) {
	return s.steps, nil
}

func (s *scriptRouter) ExecuteStep(ctx context.Context, step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
	return s.exec(step, opctx)
}

const simpleVerdict = `{"complexity": "SIMPLE", "reasoning": "chat", "risk_level": "low"}`
const complexVerdict = `{"complexity": "COMPLEX", "reasoning": "needs tools", "risk_level": "medium", "required_specialists": ["web"]}`

func newTestOrchestrator(t *testing.T, verdict string, rt router.Router, oracle *cannedLLM, cfg Config) *Orchestrator {
	t.Helper()
	classifier := intent.NewClassifier(&cannedLLM{text: verdict}, "m", nil)
	persona := personality.NewManager(&cannedLLM{text: "styled reply"}, "m", nil)
	reg := router.NewRegistry(nil)
	if rt != nil {
		reg.Register(rt)
	}
	return New(classifier, reg, persona, oracle, cfg, nil)
}

func collect(t *testing.T, updates <-chan Update) []Update {
	t.Helper()
	var out []Update
	deadline := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return out
			}
			out = append(out, u)
		case <-deadline:
			t.Fatalf("update stream did not close; got %d updates", len(out))
		}
	}
}

func TestSimpleTurnSkipsPlanning(t *testing.T) {
	o := newTestOrchestrator(t, simpleVerdict, nil, &cannedLLM{text: "unused"}, Config{Model: "m"})

	got := collect(t, o.Process(context.Background(), session.New(4), "hi"))
	require.Len(t, got, 2)

	iu, ok := got[0].(IntentUpdate)
	require.True(t, ok)
	require.Equal(t, intent.ComplexitySimple, iu.Analysis.Complexity)

	cu, ok := got[1].(CompleteUpdate)
	require.True(t, ok)
	require.Equal(t, "styled reply", cu.Response)
	require.Empty(t, cu.Results)
}

// Steps without mutual dependencies run in the same wave, concurrently;
// their dependent runs in the next wave with the prior wave's last result
// visible in its context.
func TestComplexTurnWaveExecution(t *testing.T) {
	steps := []plan.OperationStep{
		{ID: "a", Type: "web_intelligence", Domain: "web"},
		{ID: "b", Type: "web_intelligence", Domain: "web"},
		{ID: "c", Type: "web_intelligence", Domain: "web", Dependencies: []string{"a", "b"}},
	}

	var inFlight sync.WaitGroup
	inFlight.Add(2)
	bothStarted := make(chan struct{})
	go func() {
		inFlight.Wait()
		close(bothStarted)
	}()

	var sawPriorResults atomic.Bool
	rt := newScriptRouter(steps, func(step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
		switch step.ID {
		case "a", "b":
			// Both wave-1 steps must be in flight at once.
			inFlight.Done()
			select {
			case <-bothStarted:
			case <-time.After(2 * time.Second):
				return plan.FailureResult(step, "peer never started", nil, 0)
			}
			return plan.SuccessResult(step, map[string]string{"out": step.ID}, 0)
		default:
			sawPriorResults.Store(len(opctx.PreviousResults) > 0)
			return plan.SuccessResult(step, map[string]string{"out": "c"}, 0)
		}
	})

	oracle := &cannedLLM{text: "synthesized"}
	o := newTestOrchestrator(t, complexVerdict, rt, oracle, Config{Model: "m"})

	got := collect(t, o.Process(context.Background(), session.New(4), "check the web"))

	var stepUpdates []StepUpdate
	var complete *CompleteUpdate
	for _, u := range got {
		switch v := u.(type) {
		case StepUpdate:
			stepUpdates = append(stepUpdates, v)
		case CompleteUpdate:
			c := v
			complete = &c
		case ErrorUpdate:
			t.Fatalf("unexpected error update: %v", v.Err)
		}
	}

	require.Len(t, stepUpdates, 3)
	require.Equal(t, 1, stepUpdates[0].Wave)
	require.Equal(t, 1, stepUpdates[1].Wave)
	require.Equal(t, 2, stepUpdates[2].Wave)
	require.Equal(t, "c", stepUpdates[2].Result.StepID)
	require.True(t, sawPriorResults.Load())

	require.NotNil(t, complete)
	require.Equal(t, "styled reply", complete.Response)
	require.Len(t, complete.Results, 3)
}

func TestUpdateOrdering(t *testing.T) {
	steps := []plan.OperationStep{{ID: "a", Type: "web_intelligence", Domain: "web"}}
	rt := newScriptRouter(steps, func(step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
		return plan.SuccessResult(step, map[string]string{"out": "a"}, 0)
	})
	o := newTestOrchestrator(t, complexVerdict, rt, &cannedLLM{text: "synthesized"}, Config{Model: "m"})

	got := collect(t, o.Process(context.Background(), session.New(4), "check the web"))
	require.Len(t, got, 4)
	require.IsType(t, IntentUpdate{}, got[0])
	require.IsType(t, PlanUpdate{}, got[1])
	require.IsType(t, StepUpdate{}, got[2])
	require.IsType(t, CompleteUpdate{}, got[3])

	pu := got[1].(PlanUpdate)
	require.Len(t, pu.Plan.Steps, 1)
	require.Equal(t, plan.RiskMedium, pu.Plan.RiskLevel)
}

// The turn budget is checked between waves: a slow first wave completes,
// its results are kept, and later waves never start.
func TestTimeoutStopsBetweenWaves(t *testing.T) {
	steps := []plan.OperationStep{
		{ID: "a", Type: "web_intelligence", Domain: "web"},
		{ID: "b", Type: "web_intelligence", Domain: "web", Dependencies: []string{"a"}},
	}
	var executed atomic.Int32
	rt := newScriptRouter(steps, func(step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
		executed.Add(1)
		time.Sleep(80 * time.Millisecond)
		return plan.SuccessResult(step, map[string]string{"out": step.ID}, 0)
	})
	o := newTestOrchestrator(t, complexVerdict, rt, &cannedLLM{text: "synthesized"}, Config{Model: "m", Timeout: 30 * time.Millisecond})

	got := collect(t, o.Process(context.Background(), session.New(4), "check the web"))

	var complete *CompleteUpdate
	for _, u := range got {
		if c, ok := u.(CompleteUpdate); ok {
			complete = &c
		}
	}
	require.NotNil(t, complete)
	require.Len(t, complete.Results, 1)
	require.Equal(t, "a", complete.Results[0].StepID)
	require.Equal(t, int32(1), executed.Load())
}

// When every step fails there is nothing to synthesize from: the oracle
// must not be called and the reply carries the last error.
func TestTotalFailureSkipsOracle(t *testing.T) {
	steps := []plan.OperationStep{
		{ID: "a", Type: "web_intelligence", Domain: "web"},
		{ID: "b", Type: "web_intelligence", Domain: "web"},
	}
	rt := newScriptRouter(steps, func(step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
		return plan.FailureResult(step, "tool exploded: "+step.ID, nil, 0)
	})
	oracle := &cannedLLM{text: "should never appear"}
	o := newTestOrchestrator(t, complexVerdict, rt, oracle, Config{Model: "m"})

	got := collect(t, o.Process(context.Background(), session.New(4), "check the web"))

	var complete *CompleteUpdate
	for _, u := range got {
		if c, ok := u.(CompleteUpdate); ok {
			complete = &c
		}
	}
	require.NotNil(t, complete)
	require.Contains(t, complete.Response, "wasn't able to complete")
	require.Contains(t, complete.Response, "tool exploded")
	require.Equal(t, int32(0), oracle.calls.Load())
}

func TestFailedStepBlocksDependents(t *testing.T) {
	steps := []plan.OperationStep{
		{ID: "a", Type: "web_intelligence", Domain: "web"},
		{ID: "b", Type: "web_intelligence", Domain: "web", Dependencies: []string{"a"}},
	}
	var executed atomic.Int32
	rt := newScriptRouter(steps, func(step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
		executed.Add(1)
		return plan.FailureResult(step, "nope", nil, 0)
	})
	o := newTestOrchestrator(t, complexVerdict, rt, &cannedLLM{}, Config{Model: "m"})

	got := collect(t, o.Process(context.Background(), session.New(4), "check the web"))

	var stepIDs []string
	for _, u := range got {
		if s, ok := u.(StepUpdate); ok {
			stepIDs = append(stepIDs, s.Result.StepID)
		}
	}
	require.Equal(t, []string{"a"}, stepIDs)
	require.Equal(t, int32(1), executed.Load())
}

func TestReplanningRequestIsHardError(t *testing.T) {
	steps := []plan.OperationStep{{ID: "a", Type: "web_intelligence", Domain: "web"}}
	rt := newScriptRouter(steps, func(step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
		res := plan.SuccessResult(step, nil, 0)
		res.RequiresReplanning = true
		return res
	})
	o := newTestOrchestrator(t, complexVerdict, rt, &cannedLLM{}, Config{Model: "m"})

	got := collect(t, o.Process(context.Background(), session.New(4), "check the web"))

	eu, ok := got[len(got)-1].(ErrorUpdate)
	require.True(t, ok)
	require.True(t, errors.Is(eu.Err, ErrReplanningUnsupported))
}

func TestRouterPanicBecomesFailedResult(t *testing.T) {
	steps := []plan.OperationStep{{ID: "a", Type: "web_intelligence", Domain: "web"}}
	rt := newScriptRouter(steps, func(step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
		panic("router bug")
	})
	o := newTestOrchestrator(t, complexVerdict, rt, &cannedLLM{text: "synthesized"}, Config{Model: "m"})

	got := collect(t, o.Process(context.Background(), session.New(4), "check the web"))

	var step *StepUpdate
	for _, u := range got {
		if s, ok := u.(StepUpdate); ok {
			step = &s
		}
	}
	require.NotNil(t, step)
	require.False(t, step.Result.Success)
	require.Contains(t, step.Result.Error, "router bug")
}

// An empty registry is a wiring bug, not a runtime condition; it
// surfaces as a turn error.
func TestNoRouterForDomain(t *testing.T) {
	o := newTestOrchestrator(t, complexVerdict, nil, &cannedLLM{}, Config{Model: "m"})

	got := collect(t, o.Process(context.Background(), session.New(4), "check the web"))
	eu, ok := got[len(got)-1].(ErrorUpdate)
	require.True(t, ok)
	require.Contains(t, eu.Err.Error(), "no router available")
}

const openEndedVerdict = `{"complexity": "COMPLEX", "reasoning": "open ended", "risk_level": "medium", "required_specialists": []}`

// A complex request that matches no specialist domain lands on the
// catch-all router and still completes.
func TestUnmatchedComplexTurnLandsOnGeneralRouter(t *testing.T) {
	general := &cannedLLM{text: "a considered answer"}
	rt := router.NewGeneralRouter(general, "m", nil)
	o := newTestOrchestrator(t, openEndedVerdict, rt, &cannedLLM{text: "synthesized"}, Config{Model: "m"})

	got := collect(t, o.Process(context.Background(), session.New(4), "ponder the meaning of life"))

	var complete *CompleteUpdate
	for _, u := range got {
		switch v := u.(type) {
		case CompleteUpdate:
			c := v
			complete = &c
		case ErrorUpdate:
			t.Fatalf("unexpected error update: %v", v.Err)
		}
	}
	require.NotNil(t, complete)
	require.Equal(t, "styled reply", complete.Response)
	require.Len(t, complete.Results, 1)
	require.True(t, complete.Results[0].Success)
	require.Equal(t, "a considered answer", complete.Results[0].Data["response"])
}

// The classifier call carries the active persona's system prompt and the
// session's recent-turn window, and the window excludes the current input.
func TestClassifierSeesPersonaAndSessionWindow(t *testing.T) {
	rec := &cannedLLM{text: simpleVerdict}
	classifier := intent.NewClassifier(rec, "m", nil)
	persona := personality.NewManager(&cannedLLM{text: "reply"}, "m", nil)
	o := New(classifier, router.NewRegistry(nil), persona, &cannedLLM{}, Config{Model: "m"}, nil)

	sess := session.New(4)
	sess.Append(session.RoleUser, "my name is Ada")
	sess.Append(session.RoleAssistant, "noted")

	collect(t, o.Process(context.Background(), sess, "what's my name?"))

	reqs := rec.requests()
	require.Len(t, reqs, 1)
	require.Contains(t, reqs[0].System, personality.Default().SystemPrompt)
	require.Contains(t, reqs[0].Prompt, "my name is Ada")
	require.Contains(t, reqs[0].Prompt, "Current request: what's my name?")
}

func TestDelegateKeywordsAndSpecialists(t *testing.T) {
	d, st := delegate("summarize https://example.com", nil)
	require.Equal(t, router.DomainWeb, d)
	require.Equal(t, "web_intelligence", st)

	d, _ = delegate("how is the battery", nil)
	require.Equal(t, router.DomainDevice, d)

	d, _ = delegate("read the config file", nil)
	require.Equal(t, router.DomainFiles, d)

	// Classifier specialists override keywords.
	d, _ = delegate("read the config file", []string{"web"})
	require.Equal(t, router.DomainWeb, d)

	d, st = delegate("ponder the meaning of life", nil)
	require.Equal(t, router.DomainGeneral, d)
	require.Equal(t, "general_operation", st)
}
