package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultOllamaHost = "http://127.0.0.1:11434"

// maxErrorBody bounds how much of an error response we echo into logs.
const maxErrorBody = 2048

// OllamaClient talks to an Ollama server's /api/generate endpoint.
// Streaming responses arrive as newline-delimited JSON objects, one
// fragment per line, terminated by an object with "done": true.
type OllamaClient struct {
	host     string
	http     *http.Client
	defaults Options
	logger   *zap.Logger
}

// NewOllamaClient creates a client for the given host (scheme://host:port).
// An empty host selects the conventional local endpoint. A nil logger is
// replaced with a no-op one.
func NewOllamaClient(host string, logger *zap.Logger) *OllamaClient {
	if host == "" {
		host = defaultOllamaHost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaClient{
		host: strings.TrimRight(host, "/"),
		// No per-request timeout here: generation length is unbounded and
		// the orchestrator's context gate owns cancellation.
		http:   &http.Client{},
		logger: logger,
	}
}

// WithDefaultOptions sets the configured generation options. Zero fields
// in a per-request Options fall back to these, so a caller that only sets
// its temperature still inherits the configured context window.
func (c *OllamaClient) WithDefaultOptions(opts Options) *OllamaClient {
	c.defaults = opts
	return c
}

type generateRequest struct {
	Model   string   `json:"model"`
	System  string   `json:"system,omitempty"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
	TotalDuration   int64  `json:"total_duration,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Generate performs a blocking, non-streamed generation.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	body, err := c.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var out generateResponse
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama: %s", out.Error)
	}

	c.logger.Debug("generate complete",
		zap.String("model", req.Model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("eval_count", out.EvalCount))

	return &Response{
		Text:            out.Response,
		Model:           out.Model,
		PromptEvalCount: out.PromptEvalCount,
		EvalCount:       out.EvalCount,
		TotalDuration:   out.TotalDuration,
	}, nil
}

// GenerateStream performs a streamed generation, invoking fn once per
// fragment. The returned Response carries the full accumulated text.
func (c *OllamaClient) GenerateStream(ctx context.Context, req Request, fn StreamFunc) (*Response, error) {
	start := time.Now()
	body, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var sb strings.Builder
	final := &Response{Model: req.Model}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var frag generateResponse
		if err := json.Unmarshal(line, &frag); err != nil {
			return nil, fmt.Errorf("decode stream fragment: %w", err)
		}
		if frag.Error != "" {
			return nil, fmt.Errorf("ollama: %s", frag.Error)
		}
		sb.WriteString(frag.Response)
		if fn != nil {
			if err := fn(Chunk{Text: frag.Response, Done: frag.Done}); err != nil {
				return nil, fmt.Errorf("stream consumer: %w", err)
			}
		}
		if frag.Done {
			final.Model = frag.Model
			final.PromptEvalCount = frag.PromptEvalCount
			final.EvalCount = frag.EvalCount
			final.TotalDuration = frag.TotalDuration
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	final.Text = sb.String()
	c.logger.Debug("stream complete",
		zap.String("model", req.Model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes", sb.Len()))
	return final, nil
}

func (c *OllamaClient) post(ctx context.Context, req Request, stream bool) (io.ReadCloser, error) {
	payload := generateRequest{
		Model:  req.Model,
		System: req.System,
		Prompt: req.Prompt,
		Stream: stream,
	}
	opts := req.Options
	if opts.Temperature == 0 {
		opts.Temperature = c.defaults.Temperature
	}
	if opts.NumCtx == 0 {
		opts.NumCtx = c.defaults.NumCtx
	}
	if opts.NumPredict == 0 {
		opts.NumPredict = c.defaults.NumPredict
	}
	if opts != (Options{}) {
		payload.Options = &opts
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp.Body, nil
}
