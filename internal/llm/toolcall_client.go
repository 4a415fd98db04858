package llm

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"

	"npccore/internal/action"
	"npccore/internal/debug"
	"npccore/internal/observation"
)

// ToolCallClient is the tool-call wire mode: the five actions are declared
// as function schemas and the model's chosen tool_call is synthesized back
// into this module's {"action", "args"} wire shape.
type ToolCallClient struct {
	base  baseClient
	tools []openai.Tool
}

// NewToolCallClient builds a tool-call client. A blank systemPrompt falls
// back to the built-in default persona.
func NewToolCallClient(cfg Config, systemPrompt string, dbg *debug.Logger) *ToolCallClient {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &ToolCallClient{
		base:  newBaseClient(cfg, systemPrompt, dbg),
		tools: buildTools(),
	}
}

func buildTools() []openai.Tool {
	schemas := action.ToolSchemas()
	tools := make([]openai.Tool, len(schemas))
	for i, s := range schemas {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		}
	}
	return tools
}

func (c *ToolCallClient) Decide(ctx context.Context, obs observation.Observation, memory string) (string, error) {
	return c.base.decideWithRetry(ctx, func(ctx context.Context) (string, error) {
		return c.attempt(ctx, obs, memory)
	})
}

func (c *ToolCallClient) DecideAsync(ctx context.Context, obs observation.Observation, memory string) <-chan DecideResult {
	return c.base.decideAsync(ctx, func(ctx context.Context) (string, error) {
		return c.Decide(ctx, obs, memory)
	})
}

func (c *ToolCallClient) attempt(ctx context.Context, obs observation.Observation, memory string) (string, error) {
	userMessage, err := BuildUserMessage(obs, memory)
	if err != nil {
		return "", err
	}

	ctx, span := c.base.startSpan(ctx, "llm.decide_tool_call")
	defer span.End()
	span.SetAttributes(
		attribute.Int("gen_ai.request.max_tokens", maxTokens),
		attribute.String("langfuse.observation.input", userMessage),
	)

	if c.base.debug != nil {
		c.base.debug.Printf("LLM tool-call decide - user message length: %d", len(userMessage))
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
		Tools:       c.tools,
		ToolChoice:  "auto",
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	message := resp.Choices[0].Message

	var result string
	if len(message.ToolCalls) > 0 {
		if c.base.debug != nil {
			c.base.debug.Printf("LLM tool call received: %s", message.ToolCalls[0].Function.Name)
		}
		result, err = synthesizeFromToolCall(message.ToolCalls[0])
		if err != nil {
			return "", err
		}
	} else {
		content := strings.TrimSpace(message.Content)
		if content == "" {
			return "", errEmptyContent
		}
		result, err = extractContentJSON(content)
		if err != nil {
			return "", err
		}
	}

	recordUsage(span, resp.Usage, start, result)
	return result, nil
}

func (c *ToolCallClient) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.base.cfg.Timeout)
	defer cancel()

	testTool := openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "test_function",
			Description: "A test function",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"message": map[string]interface{}{"type": "string"},
				},
				"required": []string{"message"},
			},
		},
	}

	resp, err := c.base.wire.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.base.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a test assistant. Use the test_function when asked."},
			{Role: openai.ChatMessageRoleUser, Content: "Please call the test function with message 'hello'"},
		},
		Temperature: 0.1,
		MaxTokens:   50,
		Tools:       []openai.Tool{testTool},
		ToolChoice:  "auto",
	})
	if err != nil || len(resp.Choices) == 0 {
		return false
	}
	return len(resp.Choices[0].Message.ToolCalls) > 0
}
