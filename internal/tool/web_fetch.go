package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"maestro/internal/plan"
)

const (
	defaultFetchLimit = 2 << 20 // 2 MiB of body is plenty for text extraction
	fetchUserAgent    = "maestro/1.0 (orchestration agent)"
)

// WebFetch retrieves raw content for a URL.
//
// Parameters: "url" (required), "max_bytes" (optional).
// Output: the body, truncated to the byte cap.
// Metadata: "status", "content_type", "content_length".
type WebFetch struct {
	client *http.Client
	logger *zap.Logger
}

// NewWebFetch creates the fetch tool. A nil client gets a conservative
// default with a transport-level timeout; the orchestration-level timeout
// gate does not reach inside a running step, so the tool carries its own.
func NewWebFetch(client *http.Client, logger *zap.Logger) *WebFetch {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebFetch{client: client, logger: logger}
}

func (w *WebFetch) Name() string { return "web_fetch" }

func (w *WebFetch) Execute(ctx context.Context, params plan.Params) (Result, error) {
	url := plan.ParamString(params, "url")
	if url == "" {
		err := fmt.Errorf("web_fetch: missing required parameter %q", "url")
		return failure(err), err
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	limit := defaultFetchLimit
	if n, ok := plan.ParamInt(params, "max_bytes"); ok && n > 0 {
		limit = n
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err = fmt.Errorf("web_fetch: build request: %w", err)
		return failure(err), err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		err = fmt.Errorf("web_fetch: %w", err)
		return failure(err), err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)))
	if err != nil {
		err = fmt.Errorf("web_fetch: read body: %w", err)
		return failure(err), err
	}

	w.logger.Debug("fetched url",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))

	meta := map[string]string{
		"status":         strconv.Itoa(resp.StatusCode),
		"content_type":   resp.Header.Get("Content-Type"),
		"content_length": strconv.Itoa(len(body)),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("web_fetch: %s returned status %d", url, resp.StatusCode)
		return Result{Success: false, Output: string(body), Metadata: meta}, err
	}
	return Result{Success: true, Output: string(body), Metadata: meta}, nil
}
