package orchestrator

import (
	"time"

	"maestro/internal/intent"
	"maestro/internal/plan"
)

// Update is one event on the stream a Process call emits. The set of
// event types is closed; the marker method keeps callers from injecting
// their own and lets a switch over updates stay exhaustive.
type Update interface {
	isUpdate()
}

// ThinkingUpdate carries one completed reasoning segment from the
// classifier, streamed out while analysis is still running.
type ThinkingUpdate struct {
	Segment string
}

// IntentUpdate announces the finished intent analysis.
type IntentUpdate struct {
	Analysis intent.Analysis
}

// PlanUpdate announces the generated execution plan before any step runs.
type PlanUpdate struct {
	Plan *plan.ExecutionPlan
}

// StepUpdate reports one finished step, successful or not.
type StepUpdate struct {
	Result plan.StepResult
	// Wave is the 1-based index of the dependency wave the step ran in.
	Wave int
}

// CompleteUpdate is the terminal event of a successful turn.
type CompleteUpdate struct {
	Response string
	Results  []plan.StepResult
	Elapsed  time.Duration
}

// ErrorUpdate is the terminal event of a failed turn.
type ErrorUpdate struct {
	Err error
}

func (ThinkingUpdate) isUpdate() {}
func (IntentUpdate) isUpdate()   {}
func (PlanUpdate) isUpdate()     {}
func (StepUpdate) isUpdate()     {}
func (CompleteUpdate) isUpdate() {}
func (ErrorUpdate) isUpdate()    {}
