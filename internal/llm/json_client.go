package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"

	"npccore/internal/debug"
	"npccore/internal/observation"
)

var (
	errNoChoices    = errors.New("no completion choices returned")
	errEmptyContent = errors.New("empty response content")
)

// JSONClient is the JSON-parsing wire mode: no tools are declared, and the
// action is extracted directly from the assistant's message content.
type JSONClient struct {
	base baseClient
}

// NewJSONClient builds a JSON-parsing client. A blank systemPrompt falls
// back to the built-in default persona.
func NewJSONClient(cfg Config, systemPrompt string, dbg *debug.Logger) *JSONClient {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &JSONClient{base: newBaseClient(cfg, systemPrompt, dbg)}
}

func (c *JSONClient) Decide(ctx context.Context, obs observation.Observation, memory string) (string, error) {
	return c.base.decideWithRetry(ctx, func(ctx context.Context) (string, error) {
		return c.attempt(ctx, obs, memory)
	})
}

func (c *JSONClient) DecideAsync(ctx context.Context, obs observation.Observation, memory string) <-chan DecideResult {
	return c.base.decideAsync(ctx, func(ctx context.Context) (string, error) {
		return c.Decide(ctx, obs, memory)
	})
}

func (c *JSONClient) attempt(ctx context.Context, obs observation.Observation, memory string) (string, error) {
	userMessage, err := BuildUserMessage(obs, memory)
	if err != nil {
		return "", err
	}

	ctx, span := c.base.startSpan(ctx, "llm.decide_json")
	defer span.End()
	span.SetAttributes(
		attribute.Int("gen_ai.request.max_tokens", maxTokens),
		attribute.String("langfuse.observation.input", userMessage),
	)

	if c.base.debug != nil {
		c.base.debug.Printf("LLM JSON decide - user message length: %d", len(userMessage))
	}

	start := time.Now()
	resp, err := c.base.wire.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.base.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.base.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: c.base.cfg.Temperature,
		MaxTokens:   maxTokens,
		Stop:        stopSequences,
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errEmptyContent
	}

	extracted, err := extractContentJSON(content)
	if err != nil {
		return "", err
	}

	recordUsage(span, resp.Usage, start, extracted)
	if c.base.debug != nil {
		c.base.debug.Printf("LLM JSON decide response: %s", extracted)
	}
	return extracted, nil
}

func (c *JSONClient) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.base.cfg.Timeout)
	defer cancel()

	resp, err := c.base.wire.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.base.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a test assistant."},
			{Role: openai.ChatMessageRoleUser, Content: `Respond with exactly: {"test":"ok"}`},
		},
		MaxTokens: 50,
	})
	if err != nil || len(resp.Choices) == 0 {
		return false
	}
	return strings.Contains(resp.Choices[0].Message.Content, "test")
}
