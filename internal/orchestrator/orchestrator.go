// Package orchestrator is the conductor: it classifies a user turn,
// delegates complex work to a domain specialist, executes the resulting
// plan in dependency waves, and synthesizes the outcome into one reply.
// Progress streams out as typed updates so a UI can render thinking,
// planning, and per-step results as they happen.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"maestro/internal/intent"
	"maestro/internal/llm"
	"maestro/internal/personality"
	"maestro/internal/plan"
	"maestro/internal/router"
	"maestro/internal/session"
)

// ErrReplanningUnsupported is returned when a step demands replanning.
// Replanning mid-flight is not implemented; surfacing a hard error beats
// silently running a plan a specialist has declared stale.
var ErrReplanningUnsupported = errors.New("step requested replanning, which is not supported")

const synthesisPrompt = `You are the synthesis function of an orchestration agent.
You are given the user's request and the results of the steps executed for it.
Write the reply to the user: lead with the outcome, mention failures honestly,
and do not describe the execution machinery.`

// Config carries the orchestrator's tunables.
type Config struct {
	Model string
	// Timeout bounds one turn's execution phase. Checked between waves,
	// never inside a step. Zero means no limit.
	Timeout time.Duration
	// MaxParallel caps concurrent steps within a wave. Zero means no cap.
	MaxParallel int
}

// Orchestrator wires the classifier, the router registry, and the
// personality layer into the turn lifecycle.
type Orchestrator struct {
	classifier *intent.Classifier
	registry   *router.Registry
	persona    *personality.Manager
	client     llm.Client
	cfg        Config
	logger     *zap.Logger
}

// New constructs an orchestrator.
func New(classifier *intent.Classifier, registry *router.Registry, persona *personality.Manager, client llm.Client, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		classifier: classifier,
		registry:   registry,
		persona:    persona,
		client:     client,
		cfg:        cfg,
		logger:     logger,
	}
}

// Process runs one user turn and streams updates until a terminal
// CompleteUpdate or ErrorUpdate, after which the channel is closed. The
// stream order is fixed: thinking segments, then intent, then (for
// complex turns) the plan and one update per finished step, then the
// terminal event. The session's recent-turn window is snapshotted before
// Process returns, so the caller may append the turn right after calling.
func (o *Orchestrator) Process(ctx context.Context, sess *session.Session, input string) <-chan Update {
	updates := make(chan Update, 16)
	history := sess.PromptContext()
	go func() {
		defer close(updates)
		o.run(ctx, sess.ID, input, history, updates)
	}()
	return updates
}

func (o *Orchestrator) run(ctx context.Context, sessionID, input, history string, updates chan<- Update) {
	start := time.Now()

	analysis := o.classifier.Classify(ctx, input, o.persona.Current().SystemPrompt, history, func(segment string) {
		updates <- ThinkingUpdate{Segment: segment}
	})
	updates <- IntentUpdate{Analysis: analysis}

	o.logger.Info("intent classified",
		zap.String("session", sessionID),
		zap.String("complexity", string(analysis.Complexity)),
		zap.String("risk", string(analysis.RiskLevel)))

	if analysis.Complexity == intent.ComplexitySimple {
		reply, err := o.persona.Respond(ctx, input, history)
		if err != nil {
			updates <- ErrorUpdate{Err: err}
			return
		}
		updates <- CompleteUpdate{Response: reply, Elapsed: time.Since(start)}
		return
	}

	domain, stepType := delegate(input, analysis.RequiredSpecialists)
	opctx := plan.NewOperationContext(sessionID, input, o.cfg.Timeout)

	execPlan, err := o.buildPlan(ctx, domain, stepType, input, analysis, opctx)
	if err != nil {
		updates <- ErrorUpdate{Err: err}
		return
	}
	updates <- PlanUpdate{Plan: execPlan}

	results, err := o.executePlan(ctx, execPlan, opctx, updates)
	if err != nil {
		updates <- ErrorUpdate{Err: err}
		return
	}

	reply, err := o.synthesize(ctx, input, results)
	if err != nil {
		updates <- ErrorUpdate{Err: err}
		return
	}
	updates <- CompleteUpdate{Response: reply, Results: results, Elapsed: time.Since(start)}
}

// buildPlan asks the delegated specialist to decompose the request and
// validates the result before anything runs.
func (o *Orchestrator) buildPlan(ctx context.Context, domain router.Domain, stepType, input string, analysis intent.Analysis, opctx plan.OperationContext) (*plan.ExecutionPlan, error) {
	probe := plan.OperationStep{Type: stepType, Domain: string(domain)}
	rt := o.registry.SelectOptimalRouter(ctx, probe)
	if rt == nil {
		return nil, fmt.Errorf("no router available for domain %q", domain)
	}

	o.logger.Debug("delegated",
		zap.String("domain", string(domain)),
		zap.String("router", rt.Name()))

	steps, err := rt.PlanSubSteps(ctx, input, opctx)
	if err != nil {
		return nil, fmt.Errorf("planning via %s: %w", rt.Name(), err)
	}

	p := plan.NewExecutionPlan(input, steps).WithRiskLevel(analysis.RiskLevel)

	if v := p.ValidateDependencies(); !v.Valid {
		var refs []string
		for _, m := range v.Missing {
			refs = append(refs, fmt.Sprintf("%s -> %s", m.StepID, m.DependencyID))
		}
		return nil, fmt.Errorf("plan has unresolved dependencies: %s", strings.Join(refs, ", "))
	}
	if p.HasCircularDependencies() {
		return nil, fmt.Errorf("plan has circular dependencies")
	}
	return &p, nil
}

// executePlan runs the plan wave by wave. Steps inside a wave run
// concurrently; each wave sees a context evolved with the last result of
// the wave before it. Failed steps are never marked complete, so their
// dependents stay blocked and execution converges on whatever remains
// runnable. The timeout gate sits between waves only.
func (o *Orchestrator) executePlan(ctx context.Context, p *plan.ExecutionPlan, opctx plan.OperationContext, updates chan<- Update) ([]plan.StepResult, error) {
	completed := make(map[string]bool, len(p.Steps))
	attempted := make(map[string]bool, len(p.Steps))
	var results []plan.StepResult
	wave := 0

	for len(results) < len(p.Steps) {
		if opctx.Expired() {
			o.logger.Warn("execution budget spent",
				zap.Duration("elapsed", opctx.Elapsed()),
				zap.Int("done", len(results)),
				zap.Int("total", len(p.Steps)))
			return results, nil
		}

		// A failed step stays out of completed so its dependents never
		// become runnable, but it must not be retried either.
		var runnable []plan.OperationStep
		for _, step := range p.ExecutableSteps(completed) {
			if !attempted[step.ID] {
				runnable = append(runnable, step)
			}
		}
		if len(runnable) == 0 {
			// Remaining steps depend on failures. Their absence is
			// reported through the results, not as a turn error.
			return results, nil
		}
		wave++

		waveResults := make([]plan.StepResult, len(runnable))
		g, gctx := errgroup.WithContext(ctx)
		if o.cfg.MaxParallel > 0 {
			g.SetLimit(o.cfg.MaxParallel)
		}
		for i, step := range runnable {
			attempted[step.ID] = true
			g.Go(func() error {
				// Distinct slice elements, no lock needed.
				waveResults[i] = o.executeStep(gctx, step, opctx)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return results, err
		}

		for _, res := range waveResults {
			if res.RequiresReplanning {
				return results, fmt.Errorf("step %s: %w", res.StepID, ErrReplanningUnsupported)
			}
			results = append(results, res)
			if res.Success {
				completed[res.StepID] = true
			}
			updates <- StepUpdate{Result: res, Wave: wave}
		}

		// The next wave's context carries the last result of this one.
		opctx = opctx.Evolve(waveResults[len(waveResults)-1], nil)
	}
	return results, nil
}

// executeStep resolves and runs one step. Every failure mode, including
// a panicking router, becomes a failed StepResult.
func (o *Orchestrator) executeStep(ctx context.Context, step plan.OperationStep, opctx plan.OperationContext) (res plan.StepResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("router panicked",
				zap.String("step", step.ID),
				zap.Any("panic", r))
			res = plan.FailureResult(step, fmt.Sprintf("internal error: %v", r), nil, time.Since(start))
		}
	}()

	rt := o.registry.SelectOptimalRouter(ctx, step)
	if rt == nil {
		return plan.FailureResult(step, fmt.Sprintf("no router can handle step type %q in domain %q", step.Type, step.Domain), nil, time.Since(start))
	}
	if v := rt.ValidateCapabilities(step); !v.Valid {
		return plan.FailureResult(step, "missing requirements: "+strings.Join(v.MissingRequirements, ", "), nil, time.Since(start))
	}

	o.logger.Debug("executing step",
		zap.String("step", step.ID),
		zap.String("type", step.Type),
		zap.String("router", rt.Name()))
	return rt.ExecuteStep(ctx, step, opctx)
}

// synthesize turns step results into the user-facing reply. When every
// step failed there is nothing to synthesize from, so the oracle is
// skipped and the last error is reported directly.
func (o *Orchestrator) synthesize(ctx context.Context, input string, results []plan.StepResult) (string, error) {
	succeeded := 0
	lastErr := ""
	for _, r := range results {
		if r.Success {
			succeeded++
		} else if r.Error != "" {
			lastErr = r.Error
		}
	}

	if succeeded == 0 {
		msg := "I wasn't able to complete that."
		if lastErr != "" {
			msg += " The last problem was: " + lastErr
		}
		return msg, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n\nStep results:\n", input)
	for _, r := range results {
		if !r.Success {
			fmt.Fprintf(&b, "- %s failed: %s\n", r.StepID, r.Error)
			continue
		}
		fmt.Fprintf(&b, "- %s succeeded:\n", r.StepID)
		for k, v := range r.Data {
			if len(v) > 2048 {
				v = v[:2048]
			}
			fmt.Fprintf(&b, "    %s: %s\n", k, v)
		}
	}

	resp, err := o.client.Generate(ctx, llm.Request{
		Model:   o.cfg.Model,
		System:  synthesisPrompt,
		Prompt:  b.String(),
		Options: llm.Options{Temperature: 0.4},
	})
	if err != nil {
		return "", fmt.Errorf("synthesis: %w", err)
	}

	styled, err := o.persona.Stylize(ctx, strings.TrimSpace(resp.Text))
	if err != nil {
		o.logger.Warn("tone pass failed, using raw synthesis", zap.Error(err))
		return strings.TrimSpace(resp.Text), nil
	}
	return styled, nil
}
