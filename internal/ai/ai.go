// Package ai talks to a language model to plan tasks and classify mail.
package ai

import (
	"context"
	"fmt"

	"github.com/nhle/mailagent/internal/model"
)

// Completer produces a single text reply for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system string, prompt string) (string, error)
}

// NewCompleter builds the Completer selected by cfg.Provider.
func NewCompleter(apiKey string, cfg model.AIConfig) (Completer, error) {
	switch cfg.Provider {
	case "", model.AIProviderAnthropic:
		return NewAnthropicClient(apiKey, cfg)
	case model.AIProviderOpenAI:
		return NewOpenAIClient(apiKey, cfg)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
