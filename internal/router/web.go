package router

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"maestro/internal/llm"
	"maestro/internal/plan"
	"maestro/internal/tool"
)

const webPlannerPrompt = `You are the planning function of a web intelligence specialist.
You decompose a goal into steps using ONLY these operation types:
- fetch_content: retrieve raw content for a URL (parameters: url)
- extract_content: extract readable text from fetched markup
- summarize_content: condense extracted text (parameters: max_words)
- web_intelligence: the full fetch/extract/summarize pipeline for one URL (parameters: url)
Prefer the single web_intelligence step unless the goal needs the stages separated.`

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+|(?:[a-z0-9-]+\.)+[a-z]{2,}(?:/[^\s"'<>]*)?`)

// WebRouter is the web-intelligence specialist. Its signature workflow is
// fetch raw content, extract readable text, summarize to a bounded length,
// short-circuiting on the first failed stage while recording how far it
// got for diagnostics.
type WebRouter struct {
	Base
	fetch     tool.Tool
	extracter tool.Tool
	summarize tool.Tool
	client    llm.Client
	model     string
}

// NewWebRouter wires the web specialist with its tool cluster.
func NewWebRouter(client llm.Client, model string, fetch, extracter, summarize tool.Tool, logger *zap.Logger) *WebRouter {
	return &WebRouter{
		Base: NewBase("web-intelligence", DomainWeb, 80,
			[]string{"web fetch", "content extraction", "page summarization", "url analysis", "web intelligence"},
			[]string{"web_intelligence", "fetch_content", "extract_content", "summarize_content"},
			logger),
		fetch:     fetch,
		extracter: extracter,
		summarize: summarize,
		client:    client,
		model:     model,
	}
}

// PlanSubSteps asks the oracle for a decomposition scoped to web
// operations, falling back to one full-pipeline step on any failure.
func (w *WebRouter) PlanSubSteps(ctx context.Context, goal string, opctx plan.OperationContext) ([]plan.OperationStep, error) {
	steps, err := oraclePlan(ctx, w.client, w.model, webPlannerPrompt, goal, DomainWeb, opctx, w.Logger())
	if err != nil {
		w.Logger().Warn("web planning fell back to generic step", zap.Error(err))
		fallback := fallbackStep(DomainWeb, "web_intelligence", goal)
		if url := findURL(goal); url != "" {
			fallback[0].Parameters = plan.Params{"url": plan.String(url)}
		}
		return fallback, nil
	}
	return steps, nil
}

// ExecuteStep runs one web operation. All failures come back as failed
// StepResults; nothing escapes.
func (w *WebRouter) ExecuteStep(ctx context.Context, step plan.OperationStep, opctx plan.OperationContext) plan.StepResult {
	start := time.Now()

	switch step.Type {
	case "fetch_content":
		res, err := w.fetch.Execute(ctx, step.Parameters)
		return stageResult(step, "fetch", res, err, nil, start)
	case "extract_content":
		params := withContentFromContext(step, opctx)
		res, err := w.extracter.Execute(ctx, params)
		return stageResult(step, "extract", res, err, nil, start)
	case "summarize_content":
		params := withContentFromContext(step, opctx)
		res, err := w.summarize.Execute(ctx, params)
		return stageResult(step, "summarize", res, err, nil, start)
	default:
		return w.runPipeline(ctx, step, opctx, start)
	}
}

// runPipeline is the full fetch -> extract -> summarize workflow for one
// URL, short-circuiting on the first failed stage.
func (w *WebRouter) runPipeline(ctx context.Context, step plan.OperationStep, opctx plan.OperationContext, start time.Time) plan.StepResult {
	url := plan.ParamString(step.Parameters, "url")
	if url == "" {
		url = findURL(step.Description)
	}
	if url == "" {
		url = findURL(opctx.OriginalIntent)
	}
	if url == "" {
		return plan.FailureResult(step, "web pipeline: no URL in parameters, description, or intent", nil, time.Since(start))
	}

	data := map[string]string{"url": url}

	fetched, err := w.fetch.Execute(ctx, plan.Params{"url": plan.String(url)})
	if err != nil || !fetched.Success {
		return plan.FailureResult(step, "fetch stage failed: "+errText(err, fetched), data, time.Since(start))
	}
	data["raw_length"] = strconv.Itoa(len(fetched.Output))

	extracted, err := w.extracter.Execute(ctx, plan.Params{"content": plan.String(fetched.Output)})
	if err != nil || !extracted.Success {
		return plan.FailureResult(step, "extract stage failed: "+errText(err, extracted), data, time.Since(start))
	}
	data["text_length"] = strconv.Itoa(len(extracted.Output))
	if title := extracted.Metadata["title"]; title != "" {
		data["title"] = title
	}

	summaryParams := plan.Params{"content": plan.String(extracted.Output)}
	if n, ok := plan.ParamInt(step.Parameters, "max_words"); ok {
		summaryParams["max_words"] = plan.Number(float64(n))
	}
	summary, err := w.summarize.Execute(ctx, summaryParams)
	if err != nil || !summary.Success {
		return plan.FailureResult(step, "summarize stage failed: "+errText(err, summary), data, time.Since(start))
	}
	data["summary"] = summary.Output

	return plan.SuccessResult(step, data, time.Since(start))
}

// withContentFromContext fills the "content" parameter from the most
// recent prior result when the step itself carries none. This is how a
// planned extract step consumes its fetch predecessor's output.
func withContentFromContext(step plan.OperationStep, opctx plan.OperationContext) plan.Params {
	params := plan.Params{}
	for k, v := range step.Parameters {
		params[k] = v
	}
	if plan.ParamString(params, "content") != "" {
		return params
	}
	for i := len(opctx.PreviousResults) - 1; i >= 0; i-- {
		prev := opctx.PreviousResults[i]
		if !prev.Success {
			continue
		}
		for _, key := range []string{"summary", "text", "output", "raw"} {
			if v, ok := prev.Data[key]; ok && v != "" {
				params["content"] = plan.String(v)
				return params
			}
		}
	}
	return params
}

func stageResult(step plan.OperationStep, stage string, res tool.Result, err error, data map[string]string, start time.Time) plan.StepResult {
	if data == nil {
		data = map[string]string{}
	}
	for k, v := range res.Metadata {
		data[k] = v
	}
	if err != nil || !res.Success {
		return plan.FailureResult(step, stage+" failed: "+errText(err, res), data, time.Since(start))
	}
	data["output"] = res.Output
	return plan.SuccessResult(step, data, time.Since(start))
}

func errText(err error, res tool.Result) string {
	if err != nil {
		return err.Error()
	}
	if msg, ok := res.Metadata["error"]; ok {
		return msg
	}
	return "tool reported failure"
}

// findURL pulls the first URL-looking token out of free text.
func findURL(text string) string {
	return urlPattern.FindString(text)
}
