package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"

	"github.com/nhle/mailagent/internal/model"
)

const defaultOpenAIModel = "gpt-4o-mini"

// contentGenerator is the part of a langchaingo model this package uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		messages []llms.MessageContent,
		options ...llms.CallOption,
	) (*llms.ContentResponse, error)
}

// OpenAIClient is a Completer backed by an OpenAI-compatible chat API
// through langchaingo.
type OpenAIClient struct {
	llm       contentGenerator
	maxTokens int
	limiter   *rate.Limiter
}

// NewOpenAIClient creates an OpenAI client.
func NewOpenAIClient(apiKey string, cfg model.AIConfig) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}

	modelName := cfg.Model
	if modelName == "" || strings.HasPrefix(modelName, "claude") {
		modelName = defaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	return newOpenAIClient(llm, cfg), nil
}

func newOpenAIClient(llm contentGenerator, cfg model.AIConfig) *OpenAIClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAIClient{
		llm:       llm,
		maxTokens: maxTokens,
		limiter:   newLimiter(cfg),
	}
}

// Complete sends a system and user message and returns the first choice.
func (c *OpenAIClient) Complete(
	ctx context.Context,
	system string,
	prompt string,
) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	resp, err := c.llm.GenerateContent(
		ctx,
		messages,
		llms.WithTemperature(0),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI response has no choices")
	}

	return resp.Choices[0].Content, nil
}
