// Package router implements the domain-specialist layer: the Router
// contract, a registry with capability-based dynamic dispatch, and the
// concrete routers for web intelligence, environment recon, file
// operations, data processing, and device control.
package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"maestro/internal/plan"
)

// Domain is the closed set of specialist areas. Every router declares
// exactly one, though it may claim additional step types via CanHandle.
type Domain string

const (
	DomainIntelligence  Domain = "intelligence"
	DomainWeb           Domain = "web"
	DomainDevice        Domain = "device"
	DomainDesktop       Domain = "desktop"
	DomainSecurity      Domain = "security"
	DomainData          Domain = "dataproc"
	DomainCommunication Domain = "communication"
	DomainNetwork       Domain = "network"
	DomainFiles         Domain = "files"
	DomainGeneral       Domain = "general"
)

// ValidationResult declares missing prerequisites without executing.
type ValidationResult struct {
	Valid               bool
	MissingRequirements []string
	Warnings            []string
}

// Insights is a router's self-description for planning-time introspection.
type Insights struct {
	Name         string
	Domain       Domain
	Capabilities []string
	Constraints  []string
	RiskPosture  plan.RiskLevel
}

// Router is a domain expert that plans sub-steps for a goal and executes
// them against its tool cluster.
//
// ExecuteStep must catch every internal failure and convert it to a
// failed StepResult; the orchestrator has no recovery path for a panic
// or error escaping a router.
type Router interface {
	Name() string
	Domain() Domain
	Priority() int
	Capabilities() []string

	// CanHandle is a fast admission check. It takes a context because a
	// router may need to consult live capability state to answer.
	CanHandle(ctx context.Context, step plan.OperationStep) bool

	ExecuteStep(ctx context.Context, step plan.OperationStep, opctx plan.OperationContext) plan.StepResult
	PlanSubSteps(ctx context.Context, goal string, opctx plan.OperationContext) ([]plan.OperationStep, error)
	EstimateExecutionTime(step plan.OperationStep) time.Duration
	ValidateCapabilities(step plan.OperationStep) ValidationResult
	Insights(opctx plan.OperationContext) Insights
}

const defaultStepEstimate = 30 * time.Second

// Base provides the default Router behaviors concrete routers embed:
// admission by declared step types or domain match, a 30s estimate, a
// pass-through validation, and metadata-driven insights.
type Base struct {
	name         string
	domain       Domain
	priority     int
	capabilities []string
	stepTypes    map[string]bool
	constraints  []string
	riskPosture  plan.RiskLevel
	logger       *zap.Logger
}

// NewBase constructs the embeddable defaults.
func NewBase(name string, domain Domain, priority int, capabilities, stepTypes []string, logger *zap.Logger) Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	types := make(map[string]bool, len(stepTypes))
	for _, t := range stepTypes {
		types[t] = true
	}
	return Base{
		name:         name,
		domain:       domain,
		priority:     priority,
		capabilities: capabilities,
		stepTypes:    types,
		riskPosture:  plan.RiskMedium,
		logger:       logger,
	}
}

func (b *Base) Name() string           { return b.name }
func (b *Base) Domain() Domain         { return b.domain }
func (b *Base) Priority() int          { return b.priority }
func (b *Base) Capabilities() []string { return b.capabilities }

// CanHandle accepts steps whose type the router declared, or whose domain
// matches the router's own.
func (b *Base) CanHandle(ctx context.Context, step plan.OperationStep) bool {
	if b.stepTypes[step.Type] {
		return true
	}
	return step.Domain == string(b.domain)
}

func (b *Base) EstimateExecutionTime(step plan.OperationStep) time.Duration {
	return defaultStepEstimate
}

func (b *Base) ValidateCapabilities(step plan.OperationStep) ValidationResult {
	return ValidationResult{Valid: true}
}

func (b *Base) Insights(opctx plan.OperationContext) Insights {
	return Insights{
		Name:         b.name,
		Domain:       b.domain,
		Capabilities: b.capabilities,
		Constraints:  b.constraints,
		RiskPosture:  b.riskPosture,
	}
}

// Logger exposes the embedded logger to concrete routers.
func (b *Base) Logger() *zap.Logger { return b.logger }
