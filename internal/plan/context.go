package plan

import "time"

// SecurityLevel bounds what operations the executing routers may attempt.
type SecurityLevel string

const (
	SecurityMinimal  SecurityLevel = "minimal"
	SecurityStandard SecurityLevel = "standard"
	SecurityElevated SecurityLevel = "elevated"
	SecurityMaximum  SecurityLevel = "maximum"
)

// OperationContext is the world state threaded through execution. It is
// immutable by convention: Evolve returns a fresh copy, so every step in a
// wave can read one shared snapshot without locks.
type OperationContext struct {
	SessionID              string
	OriginalIntent         string
	DiscoveredCapabilities map[string]string
	PreviousResults        []StepResult
	UserConstraints        []string
	DeviceContext          map[string]string
	SecurityLevel          SecurityLevel
	Timeout                time.Duration

	startedAt time.Time
}

// NewOperationContext creates a context whose expiry clock starts now.
func NewOperationContext(sessionID, intent string, timeout time.Duration) OperationContext {
	return OperationContext{
		SessionID:      sessionID,
		OriginalIntent: intent,
		SecurityLevel:  SecurityStandard,
		Timeout:        timeout,
		startedAt:      time.Now(),
	}
}

// Evolve folds a result and any newly discovered capabilities into a new
// context. The receiver is untouched; maps and slices are copied so the
// old snapshot stays safe to read concurrently.
func (c OperationContext) Evolve(result StepResult, capabilities map[string]string) OperationContext {
	next := c

	next.PreviousResults = make([]StepResult, 0, len(c.PreviousResults)+1)
	next.PreviousResults = append(next.PreviousResults, c.PreviousResults...)
	next.PreviousResults = append(next.PreviousResults, result)

	next.DiscoveredCapabilities = make(map[string]string, len(c.DiscoveredCapabilities)+len(capabilities))
	for k, v := range c.DiscoveredCapabilities {
		next.DiscoveredCapabilities[k] = v
	}
	for k, v := range capabilities {
		next.DiscoveredCapabilities[k] = v
	}

	return next
}

// WithConstraints returns a copy with user constraints replaced.
func (c OperationContext) WithConstraints(constraints ...string) OperationContext {
	next := c
	next.UserConstraints = append([]string(nil), constraints...)
	return next
}

// WithDeviceContext returns a copy with device facts replaced.
func (c OperationContext) WithDeviceContext(device map[string]string) OperationContext {
	next := c
	next.DeviceContext = make(map[string]string, len(device))
	for k, v := range device {
		next.DeviceContext[k] = v
	}
	return next
}

// WithSecurityLevel returns a copy with the security level replaced.
func (c OperationContext) WithSecurityLevel(level SecurityLevel) OperationContext {
	next := c
	next.SecurityLevel = level
	return next
}

// Expired reports whether the turn's wall-clock budget is spent. This is
// the only timeout gate in the core: the orchestrator checks it between
// waves, never inside an individual step.
func (c OperationContext) Expired() bool {
	if c.Timeout <= 0 {
		return false
	}
	return time.Since(c.startedAt) > c.Timeout
}

// Elapsed returns wall time since the context was created.
func (c OperationContext) Elapsed() time.Duration {
	return time.Since(c.startedAt)
}
