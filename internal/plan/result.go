package plan

import "time"

// StepResult is the outcome of executing one step. Data is deliberately a
// string map: downstream synthesis prompts consume it verbatim, and
// stringifying at the producer keeps that path free of type juggling.
type StepResult struct {
	StepID             string            `json:"step_id"`
	Domain             string            `json:"domain"`
	Success            bool              `json:"success"`
	Data               map[string]string `json:"data,omitempty"`
	Error              string            `json:"error,omitempty"`
	ExecutionTime      time.Duration     `json:"execution_time_ms"`
	RequiresReplanning bool              `json:"requires_replanning,omitempty"`
}

// SuccessResult builds a passing result for a step.
func SuccessResult(step OperationStep, data map[string]string, elapsed time.Duration) StepResult {
	return StepResult{
		StepID:        step.ID,
		Domain:        step.Domain,
		Success:       true,
		Data:          data,
		ExecutionTime: elapsed,
	}
}

// FailureResult builds a failing result for a step. Partial data collected
// before the failure may still be attached for diagnostics.
func FailureResult(step OperationStep, errMsg string, data map[string]string, elapsed time.Duration) StepResult {
	return StepResult{
		StepID:        step.ID,
		Domain:        step.Domain,
		Success:       false,
		Data:          data,
		Error:         errMsg,
		ExecutionTime: elapsed,
	}
}
