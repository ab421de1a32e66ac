// Package plan defines the execution-plan model for the orchestrator:
// dependency-annotated operation steps, acyclicity and reference
// validation, and the wave derivation the executor schedules from.
//
// Plans are values. Nothing in this package mutates a plan in place;
// "mutation" goes through whole-plan-copy helpers so a plan handed to an
// executor stays stable for the lifetime of a turn.
package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RiskLevel grades how much damage a plan could do if it goes wrong.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// OperationStep is one unit of plannable work. Steps are created during
// planning and never touched afterwards; completion is tracked externally
// through a completed-id set.
type OperationStep struct {
	ID                string        `json:"id"`
	Type              string        `json:"type"`
	Domain            string        `json:"domain"`
	Description       string        `json:"description"`
	Parameters        Params        `json:"parameters,omitempty"`
	Dependencies      []string      `json:"dependencies,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration_ms"`
}

// ExecutionPlan is an immutable DAG of steps plus metadata.
type ExecutionPlan struct {
	PlanID            string          `json:"plan_id"`
	OriginalIntent    string          `json:"original_intent"`
	Steps             []OperationStep `json:"steps"`
	EstimatedDuration time.Duration   `json:"estimated_duration_ms"`
	RiskLevel         RiskLevel       `json:"risk_level"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewExecutionPlan creates a plan with a generated id.
func NewExecutionPlan(intent string, steps []OperationStep) ExecutionPlan {
	var total time.Duration
	for _, s := range steps {
		total += s.EstimatedDuration
	}
	return ExecutionPlan{
		PlanID:            fmt.Sprintf("plan-%s", uuid.New().String()[:8]),
		OriginalIntent:    intent,
		Steps:             steps,
		EstimatedDuration: total,
		RiskLevel:         RiskMedium,
		CreatedAt:         time.Now(),
	}
}

// Step looks up a step by id.
func (p ExecutionPlan) Step(id string) (OperationStep, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return OperationStep{}, false
}

// WithSteps returns a copy of the plan with extra steps appended.
func (p ExecutionPlan) WithSteps(steps ...OperationStep) ExecutionPlan {
	next := p
	next.Steps = make([]OperationStep, 0, len(p.Steps)+len(steps))
	next.Steps = append(next.Steps, p.Steps...)
	next.Steps = append(next.Steps, steps...)
	next.EstimatedDuration = 0
	for _, s := range next.Steps {
		next.EstimatedDuration += s.EstimatedDuration
	}
	return next
}

// WithRiskLevel returns a copy of the plan with the risk level replaced.
func (p ExecutionPlan) WithRiskLevel(r RiskLevel) ExecutionPlan {
	next := p
	next.RiskLevel = r
	return next
}

// MissingDependency is one dangling dependency reference.
type MissingDependency struct {
	StepID       string
	DependencyID string
}

// DependencyValidation reports dangling references. A dangling reference
// is a distinct error class from a cycle: the plan shape is wrong, not
// merely unexecutable.
type DependencyValidation struct {
	Valid   bool
	Missing []MissingDependency
}

// ValidateDependencies checks that every declared dependency references a
// step inside this plan. Every missing reference is listed, not just the
// first.
func (p ExecutionPlan) ValidateDependencies() DependencyValidation {
	ids := make(map[string]struct{}, len(p.Steps))
	for _, s := range p.Steps {
		ids[s.ID] = struct{}{}
	}
	var missing []MissingDependency
	for _, s := range p.Steps {
		for _, dep := range s.Dependencies {
			if _, ok := ids[dep]; !ok {
				missing = append(missing, MissingDependency{StepID: s.ID, DependencyID: dep})
			}
		}
	}
	return DependencyValidation{Valid: len(missing) == 0, Missing: missing}
}

// HasCircularDependencies reports whether any step participates in a
// dependency cycle. Depth-first traversal with a recursion-stack set;
// dangling references are ignored here (ValidateDependencies owns those).
func (p ExecutionPlan) HasCircularDependencies() bool {
	steps := make(map[string]OperationStep, len(p.Steps))
	for _, s := range p.Steps {
		steps[s.ID] = s
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on recursion stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(steps))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range steps[id].Dependencies {
			if _, ok := steps[dep]; !ok {
				continue
			}
			switch color[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, s := range p.Steps {
		if color[s.ID] == white {
			if visit(s.ID) {
				return true
			}
		}
	}
	return false
}

// ExecutableSteps returns the steps whose dependencies are all in the
// completed set and which have not themselves completed, in declaration
// order.
func (p ExecutionPlan) ExecutableSteps(completed map[string]bool) []OperationStep {
	var out []OperationStep
	for _, s := range p.Steps {
		if completed[s.ID] {
			continue
		}
		ready := true
		for _, dep := range s.Dependencies {
			if !completed[dep] {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, s)
		}
	}
	return out
}

// ExecutionWaves partitions the plan into parallel batches: each wave is
// the set of steps executable given everything before it. The loop stops
// as soon as no new step becomes executable, so a cycle (or a dangling
// reference) stalls the remainder instead of spinning forever.
func (p ExecutionPlan) ExecutionWaves() [][]OperationStep {
	completed := make(map[string]bool, len(p.Steps))
	var waves [][]OperationStep
	for {
		wave := p.ExecutableSteps(completed)
		if len(wave) == 0 {
			return waves
		}
		waves = append(waves, wave)
		for _, s := range wave {
			completed[s.ID] = true
		}
	}
}

// Summary renders a short, human-readable listing for prompts and logs.
func (p ExecutionPlan) Summary() string {
	out := fmt.Sprintf("plan %s (%d steps, risk=%s)\n", p.PlanID, len(p.Steps), p.RiskLevel)
	for _, s := range p.Steps {
		deps := ""
		if len(s.Dependencies) > 0 {
			sorted := append([]string(nil), s.Dependencies...)
			sort.Strings(sorted)
			deps = fmt.Sprintf(" (after %v)", sorted)
		}
		out += fmt.Sprintf("  %s [%s/%s]: %s%s\n", s.ID, s.Domain, s.Type, s.Description, deps)
	}
	return out
}
