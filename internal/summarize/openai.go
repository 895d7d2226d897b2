// Package summarize implements orchestrator.Summarizer over an LLM,
// grounded in the same sashabaranov/go-openai client the teacher's
// provider layer wraps (internal/providers/venice), reduced to a single
// non-streaming completion since reformatting a reply needs no tool calls
// or streaming.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISummarizer reformats a deterministic reply via a chat completion.
// Any failure (missing key, API error, empty choice) is left to the
// caller, which falls back to the deterministic text per
// Hr-Hiring-System-Agent/supervisor/thread_memory.py's
// summarizer-with-fallback pattern.
type OpenAISummarizer struct {
	client *openai.Client
	model  string
}

// NewOpenAISummarizer builds a summarizer, or nil if apiKey is empty (the
// caller should skip wiring it into the orchestrator in that case).
func NewOpenAISummarizer(apiKey, model string) *OpenAISummarizer {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAISummarizer{client: openai.NewClient(apiKey), model: model}
}

// Summarize asks the model to restate the deterministic reply more
// naturally, grounding it in the tool data gathered so the model cannot
// introduce facts the tools didn't return.
func (s *OpenAISummarizer) Summarize(ctx context.Context, intent, deterministic string, data map[string]any) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("summarizer not configured")
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "Restate the following finding in one or two clear sentences. " +
					"Do not invent facts beyond what is given. Do not add caveats not present in the input.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("intent: %s\nfinding: %s\ndata: %s", intent, deterministic, string(dataJSON)),
			},
		},
		Temperature: 0,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("openai summarize: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai summarize: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
