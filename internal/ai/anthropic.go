package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nhle/mailagent/internal/model"
)

const (
	defaultAnthropicModel   = "claude-sonnet-4-5-20250929"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultMaxTokens        = 1024
	apiVersion              = "2023-06-01"
)

// AnthropicClient is a Completer backed by the Claude Messages API.
type AnthropicClient struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
	limiter   *rate.Limiter
}

// NewAnthropicClient creates a Claude client. Empty model, base URL and
// non-positive token limits fall back to defaults.
func NewAnthropicClient(apiKey string, cfg model.AIConfig) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultAnthropicModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &AnthropicClient{
		apiKey:    apiKey,
		baseURL:   baseURL,
		model:     modelName,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout(cfg)},
		limiter:   newLimiter(cfg),
	}, nil
}

// Complete sends a single-turn request and returns the concatenated text
// blocks of the reply.
func (c *AnthropicClient) Complete(
	ctx context.Context,
	system string,
	prompt string,
) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	reqBody := apiRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      system,
		Temperature: 0,
		Messages: []apiMessage{
			{
				Role:    "user",
				Content: []apiContentBlock{{Type: "text", Text: prompt}},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var textParts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}
	if len(textParts) == 0 {
		return "", fmt.Errorf("response %s has no text content", result.ID)
	}

	return strings.Join(textParts, ""), nil
}

// APIError is a non-200 reply from a model provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func timeout(cfg model.AIConfig) time.Duration {
	if cfg.TimeoutSec > 0 {
		return time.Duration(cfg.TimeoutSec) * time.Second
	}
	return 60 * time.Second
}

// newLimiter allows RequestsPerMinute with a small burst; zero disables
// limiting.
func newLimiter(cfg model.AIConfig) *rate.Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 5)
}

// --- Claude API types ---

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Temperature float64      `json:"temperature"`
	Messages    []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
