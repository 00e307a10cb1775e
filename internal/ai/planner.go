package ai

import (
	"context"
	"fmt"
	"strings"
)

// plannerPrompt asks for the structured plan grammar understood by
// plan.ParseStructured, with the numbered list as a fallback.
const plannerPrompt = `You are an email assistant. Break the user's request down into executable mailbox operations.

Available operations:
- list_recent: fetch the most recent emails. Parameters: {"count": <integer>}.
  Every listed email is classified (Promotional, Work or Personal) and categorized automatically.
- categorize: set categories on one email. Parameters: {"message_id": "<id>", "categories": ["Work"]}.
  Only use this when the message id is known.
- send: send a plain-text email. Parameters: {"recipients": ["addr@example.com"], "subject": "...", "body": "..."}.

Respond ONLY with a JSON object of this form and nothing else:
{"version": 1, "steps": [{"operation": "list_recent", "parameters": {"count": 5}}]}

If you cannot produce JSON, return the plan as a numbered list, one operation per line,
for example: 1. list_recent(top=5)`

// Planner generates plan text for a task.
type Planner struct {
	completer Completer
}

// NewPlanner creates a Planner.
func NewPlanner(c Completer) *Planner {
	return &Planner{completer: c}
}

// Generate returns the model's plan for task. The text is opaque to the
// planner; parsing happens downstream.
func (p *Planner) Generate(ctx context.Context, task string) (string, error) {
	if strings.TrimSpace(task) == "" {
		return "", fmt.Errorf("generating plan: empty task")
	}

	text, err := p.completer.Complete(ctx, plannerPrompt, task)
	if err != nil {
		return "", fmt.Errorf("generating plan: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("generating plan: model returned no text")
	}

	return text, nil
}
