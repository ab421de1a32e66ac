package router

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"maestro/internal/plan"
	"maestro/internal/tool"
)

// DeviceRouter surveys and controls the local device. Input injection
// needs a HID transport that is not always present, so
// ValidateCapabilities reports it as missing rather than failing at
// execution time.
type DeviceRouter struct {
	Base
	deviceInfo tool.Tool
	hid        tool.Tool // nil when no HID transport is wired
}

// NewDeviceRouter wires the device specialist. hid may be nil; device
// survey steps still work without it.
func NewDeviceRouter(deviceInfo, hid tool.Tool, logger *zap.Logger) *DeviceRouter {
	return &DeviceRouter{
		Base: NewBase("device-control", DomainDevice, 50,
			[]string{"device control", "input injection", "keyboard input", "mouse input", "battery diagnostics"},
			[]string{"device_control", "input_injection", "battery_check", "device_survey"},
			logger),
		deviceInfo: deviceInfo,
		hid:        hid,
	}
}

func (d *DeviceRouter) PlanSubSteps(ctx context.Context, goal string, opctx plan.OperationContext) ([]plan.OperationStep, error) {
	lower := strings.ToLower(goal)
	stepType := "device_survey"
	switch {
	case strings.Contains(lower, "battery"):
		stepType = "battery_check"
	case strings.Contains(lower, "type") || strings.Contains(lower, "click") || strings.Contains(lower, "input"):
		stepType = "input_injection"
	}
	return fallbackStep(DomainDevice, stepType, goal), nil
}

func (d *DeviceRouter) ExecuteStep(ctx context.Context, step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
	start := time.Now()

	switch step.Type {
	case "input_injection":
		if d.hid == nil {
			return plan.FailureResult(step, "input injection requires a HID transport, none is wired", nil, time.Since(start))
		}
		res, err := d.hid.Execute(ctx, step.Parameters)
		if err != nil {
			return plan.FailureResult(step, err.Error(), res.Metadata, time.Since(start))
		}
		data := map[string]string{"output": res.Output}
		for k, v := range res.Metadata {
			data[k] = v
		}
		return plan.SuccessResult(step, data, time.Since(start))

	default: // battery_check, device_survey, device_control
		if d.deviceInfo == nil {
			return plan.FailureResult(step, "no device info tool wired", nil, time.Since(start))
		}
		res, err := d.deviceInfo.Execute(ctx, step.Parameters)
		if err != nil || !res.Success {
			return plan.FailureResult(step, errText(err, res), res.Metadata, time.Since(start))
		}
		data := map[string]string{"report": res.Output}
		for k, v := range res.Metadata {
			data[k] = v
		}
		return plan.SuccessResult(step, data, time.Since(start))
	}
}

func (d *DeviceRouter) ValidateCapabilities(step plan.OperationStep) ValidationResult {
	if step.Type == "input_injection" && d.hid == nil {
		return ValidationResult{
			Valid:               false,
			MissingRequirements: []string{"hid transport"},
		}
	}
	return ValidationResult{Valid: true}
}

func (d *DeviceRouter) EstimateExecutionTime(step plan.OperationStep) time.Duration {
	return 2 * time.Second
}
