package tool

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"maestro/internal/plan"
)

// DeviceInfo reports facts about the host the agent runs on. This is the
// environment-discovery primitive the recon router leans on.
//
// Parameters: none required; "fields" (optional list) restricts output.
// Output: "key: value" lines.
// Metadata: the same facts individually keyed.
type DeviceInfo struct {
	startedAt time.Time
}

// NewDeviceInfo creates the device info tool.
func NewDeviceInfo() *DeviceInfo { return &DeviceInfo{startedAt: time.Now()} }

func (d *DeviceInfo) Name() string { return "device_info" }

func (d *DeviceInfo) Execute(ctx context.Context, params plan.Params) (Result, error) {
	hostname, _ := os.Hostname()
	wd, _ := os.Getwd()

	facts := map[string]string{
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       strconv.Itoa(runtime.NumCPU()),
		"goroutines": strconv.Itoa(runtime.NumGoroutine()),
		"hostname":   hostname,
		"workdir":    wd,
		"uptime":     time.Since(d.startedAt).Round(time.Second).String(),
	}

	// Optional field filter.
	if v, ok := params["fields"]; ok {
		if list, ok := v.AsList(); ok && len(list) > 0 {
			keep := map[string]bool{}
			for _, f := range list {
				keep[f.Text()] = true
			}
			for k := range facts {
				if !keep[k] {
					delete(facts, k)
				}
			}
		}
	}

	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	// Stable output order for prompts and tests.
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %s\n", k, facts[k])
	}
	return Result{Success: true, Output: sb.String(), Metadata: facts}, nil
}
