package router

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"maestro/internal/plan"
)

// maxFileReadBytes bounds how much of a file a read step returns; results
// flow into prompts and must stay small.
const maxFileReadBytes = 256 * 1024

// FilesRouter handles file operations confined to a configured root
// directory. Planning here is rule-based: file goals decompose
// deterministically, so burning an oracle round trip buys nothing.
type FilesRouter struct {
	Base
	root string
}

// NewFilesRouter wires the file specialist rooted at root.
func NewFilesRouter(root string, logger *zap.Logger) *FilesRouter {
	return &FilesRouter{
		Base: NewBase("file-operations", DomainFiles, 60,
			[]string{"file listing", "file reading", "file stat", "file operations"},
			[]string{"file_list", "file_read", "file_stat", "file_operations"},
			logger),
		root: root,
	}
}

func (f *FilesRouter) PlanSubSteps(ctx context.Context, goal string, opctx plan.OperationContext) ([]plan.OperationStep, error) {
	lower := strings.ToLower(goal)
	stepType := "file_list"
	switch {
	case strings.Contains(lower, "read") || strings.Contains(lower, "show") || strings.Contains(lower, "open"):
		stepType = "file_read"
	case strings.Contains(lower, "stat") || strings.Contains(lower, "size") || strings.Contains(lower, "modified"):
		stepType = "file_stat"
	}

	steps := fallbackStep(DomainFiles, stepType, goal)
	if path := findPathToken(goal); path != "" {
		steps[0].Parameters = plan.Params{"path": plan.String(path)}
	}
	return steps, nil
}

func (f *FilesRouter) ExecuteStep(ctx context.Context, step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
	start := time.Now()

	path, err := f.resolve(plan.ParamString(step.Parameters, "path"))
	if err != nil {
		return plan.FailureResult(step, err.Error(), nil, time.Since(start))
	}

	switch step.Type {
	case "file_read":
		data, err := os.ReadFile(path)
		if err != nil {
			return plan.FailureResult(step, fmt.Sprintf("read %s: %v", path, err), nil, time.Since(start))
		}
		truncated := false
		if len(data) > maxFileReadBytes {
			data = data[:maxFileReadBytes]
			truncated = true
		}
		return plan.SuccessResult(step, map[string]string{
			"path":      path,
			"content":   string(data),
			"truncated": strconv.FormatBool(truncated),
		}, time.Since(start))

	case "file_stat":
		info, err := os.Stat(path)
		if err != nil {
			return plan.FailureResult(step, fmt.Sprintf("stat %s: %v", path, err), nil, time.Since(start))
		}
		return plan.SuccessResult(step, map[string]string{
			"path":     path,
			"size":     strconv.FormatInt(info.Size(), 10),
			"modified": info.ModTime().Format(time.RFC3339),
			"is_dir":   strconv.FormatBool(info.IsDir()),
		}, time.Since(start))

	default: // file_list, file_operations
		entries, err := os.ReadDir(path)
		if err != nil {
			return plan.FailureResult(step, fmt.Sprintf("list %s: %v", path, err), nil, time.Since(start))
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)
		return plan.SuccessResult(step, map[string]string{
			"path":    path,
			"entries": strings.Join(names, "\n"),
			"count":   strconv.Itoa(len(names)),
		}, time.Since(start))
	}
}

func (f *FilesRouter) ValidateCapabilities(step plan.OperationStep) ValidationResult {
	if f.root == "" {
		return ValidationResult{
			Valid:               false,
			MissingRequirements: []string{"file-system access required: no root directory configured"},
		}
	}
	return ValidationResult{Valid: true}
}

func (f *FilesRouter) EstimateExecutionTime(step plan.OperationStep) time.Duration {
	return time.Second
}

// resolve confines a requested path to the router's root. An empty path
// means the root itself.
func (f *FilesRouter) resolve(path string) (string, error) {
	if f.root == "" {
		return "", fmt.Errorf("file operations unavailable: no root directory configured")
	}
	if path == "" {
		return f.root, nil
	}
	joined := filepath.Join(f.root, path)
	rel, err := filepath.Rel(f.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the configured root", path)
	}
	return joined, nil
}

// findPathToken pulls the first path-looking token out of free text.
func findPathToken(text string) string {
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, `"'.,;:()`)
		if strings.ContainsRune(tok, '/') || strings.ContainsRune(tok, '.') && filepath.Ext(tok) != "" {
			if !strings.Contains(tok, "://") {
				return tok
			}
		}
	}
	return ""
}
