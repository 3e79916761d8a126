package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini-backed oracle client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiClient implements Client against the Gemini API in JSON mode.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limit   *limitFlag
	log     *zap.Logger
}

// NewGeminiClient creates the oracle client. An empty API key yields a
// client that reports itself unavailable rather than an error, so the
// orchestrator can still run with fallback diagnoses.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*GeminiClient, error) {
	if log == nil {
		log = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	gc := &GeminiClient{
		model:   model,
		timeout: timeout,
		limit:   &limitFlag{},
		log:     log,
	}

	if cfg.APIKey == "" {
		log.Warn("oracle API key not configured, running with fallback diagnoses only")
		return gc, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create oracle client: %w", err)
	}
	gc.client = client
	return gc, nil
}

// IsAvailable reports whether the oracle can be consulted.
func (c *GeminiClient) IsAvailable() bool {
	return c.client != nil && !c.limit.status().LimitReached
}

// LimitStatus returns the monotonic usage-limit flag.
func (c *GeminiClient) LimitStatus() UsageLimitStatus {
	return c.limit.status()
}

// Analyze sends the advisory request and parses the JSON response.
func (c *GeminiClient) Analyze(ctx context.Context, req Request) (map[string]any, error) {
	if st := c.limit.status(); st.LimitReached {
		return nil, &UsageLimitError{Detail: st.Detail}
	}
	if c.client == nil {
		return nil, fmt.Errorf("oracle not configured")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Screenshot) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Screenshot, "image/png"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
	}

	c.log.Debug("oracle request",
		zap.String("task", req.Task),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Bool("screenshot", len(req.Screenshot) > 0))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		if isQuotaExhausted(err) {
			detail := err.Error()
			c.limit.set(detail)
			c.log.Error("oracle usage limit reached", zap.Error(err))
			return nil, &UsageLimitError{Detail: detail}
		}
		return nil, fmt.Errorf("oracle %s call: %w", req.Task, err)
	}

	parsed, err := parseResponse(resp.Text(), req.Schema)
	if err != nil {
		return nil, fmt.Errorf("oracle %s response: %w", req.Task, err)
	}
	return parsed, nil
}

// isQuotaExhausted classifies an API error as the fatal usage-limit signal.
func isQuotaExhausted(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	return false
}

// parseResponse decodes the model output, tolerating markdown fences, and
// validates the required fields. Confidence values on a 0-100 scale are
// normalized to 0-1.
func parseResponse(text string, schema Schema) (map[string]any, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	for _, field := range schema.Required {
		if _, ok := parsed[field]; !ok {
			return nil, fmt.Errorf("missing required field %q", field)
		}
	}

	if raw, ok := parsed["confidence"]; ok {
		parsed["confidence"] = normalizeConfidence(toFloat(raw))
	}
	return parsed, nil
}

func normalizeConfidence(v float64) float64 {
	if v > 1 {
		v = v / 100
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		var f float64
		fmt.Sscanf(n, "%f", &f)
		return f
	default:
		return 0
	}
}
