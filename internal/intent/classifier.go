// Package intent classifies user input as a simple conversational turn
// or a complex multi-step operation, streaming the model's reasoning out
// as it forms.
package intent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"maestro/internal/extract"
	"maestro/internal/llm"
	"maestro/internal/plan"
)

// Complexity is the classifier's binary verdict.
type Complexity string

const (
	ComplexitySimple  Complexity = "SIMPLE"
	ComplexityComplex Complexity = "COMPLEX"
)

// Analysis is the structured outcome of intent classification.
type Analysis struct {
	Complexity          Complexity
	Reasoning           string
	RiskLevel           plan.RiskLevel
	RequiredSpecialists []string
}

const classifierPrompt = `You are the intent analysis function of an orchestration agent.
Classify the user's request:
- SIMPLE: answerable in one conversational reply with no tools or external data.
  Examples: "hey, how are you?", "what does TLS stand for?", "tell me a joke".
- COMPLEX: needs planning, tools, external data, or multiple steps.
  Examples: "summarize https://example.com/post" (web), "how much battery do I
  have left?" (device), "read notes.txt and tell me what's in it" (files),
  "what can you see about this device?" (intelligence), "combine those results
  into one report" (data).
Specialist domains you may name in required_specialists:
- web: fetch pages, extract content, summarize online material
- device: battery status, hardware control, input injection
- files: list, read, and inspect files
- intelligence: reconnaissance of the local environment
- data: consolidate and transform results from earlier steps
Respond with ONLY a JSON object:
{"complexity": "SIMPLE" or "COMPLEX", "reasoning": "<one sentence>", "risk_level": "low|medium|high|critical", "required_specialists": ["<domain>", ...]}`

// Classifier decides how much machinery a user turn deserves.
type Classifier struct {
	client llm.Client
	model  string
	logger *zap.Logger
}

// NewClassifier constructs an intent classifier backed by the given model.
func NewClassifier(client llm.Client, model string, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{client: client, model: model, logger: logger}
}

// Classify streams the model's analysis of input, invoking onThinking for
// each completed reasoning segment as it arrives. The active persona's
// system prompt and a window of recent conversation give the verdict
// context: "do that again" only classifies correctly against the turns
// that precede it. It always returns a usable Analysis: any failure in
// the stream or the decode degrades to COMPLEX at medium risk, because
// treating a complex request as simple loses work while the reverse only
// costs a planning round.
func (c *Classifier) Classify(ctx context.Context, input, persona, history string, onThinking func(string)) Analysis {
	scanner := newSegmentScanner(onThinking)

	system := classifierPrompt
	if persona != "" {
		system += "\n\nThe agent whose intent you analyze has this persona:\n" + persona
	}
	prompt := input
	if history != "" {
		prompt = history + "\nCurrent request: " + input
	}

	_, err := c.client.GenerateStream(ctx, llm.Request{
		Model:   c.model,
		System:  system,
		Prompt:  prompt,
		Options: llm.Options{Temperature: 0.1},
	}, func(chunk llm.Chunk) error {
		scanner.Feed(chunk.Text)
		return nil
	})

	visible := scanner.Visible()
	if err != nil {
		c.logger.Warn("intent stream failed, assuming complex", zap.Error(err))
		return fallbackAnalysis("classification unavailable: " + err.Error())
	}
	return c.decode(visible)
}

func (c *Classifier) decode(text string) Analysis {
	var raw struct {
		Complexity          string   `json:"complexity"`
		Reasoning           string   `json:"reasoning"`
		RiskLevel           string   `json:"risk_level"`
		RequiredSpecialists []string `json:"required_specialists"`
	}

	if err := extract.DecodeObject(text, &raw); err != nil {
		// Structured decode failed. The sniff may only ever confirm the
		// conservative verdict: the word "simple" occurs in ordinary
		// prose far too often to downgrade on, and misreading a complex
		// request as simple loses the user's work.
		c.logger.Debug("intent decode failed, sniffing keywords", zap.Error(err))
		if extract.ContainsLiteral(text, string(ComplexityComplex)) {
			return Analysis{
				Complexity: ComplexityComplex,
				Reasoning:  "verdict recovered from unstructured response",
				RiskLevel:  plan.RiskMedium,
			}
		}
		return fallbackAnalysis("unparseable classification response")
	}

	a := Analysis{
		Reasoning:           strings.TrimSpace(raw.Reasoning),
		RiskLevel:           normalizeRisk(raw.RiskLevel),
		RequiredSpecialists: raw.RequiredSpecialists,
	}
	switch strings.ToUpper(strings.TrimSpace(raw.Complexity)) {
	case string(ComplexitySimple):
		a.Complexity = ComplexitySimple
	default:
		a.Complexity = ComplexityComplex
	}
	return a
}

func fallbackAnalysis(reason string) Analysis {
	return Analysis{
		Complexity: ComplexityComplex,
		Reasoning:  reason,
		RiskLevel:  plan.RiskMedium,
	}
}

func normalizeRisk(s string) plan.RiskLevel {
	switch plan.RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case plan.RiskLow:
		return plan.RiskLow
	case plan.RiskHigh:
		return plan.RiskHigh
	case plan.RiskCritical:
		return plan.RiskCritical
	default:
		return plan.RiskMedium
	}
}
