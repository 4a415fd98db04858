package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"npccore/internal/action"
	"npccore/internal/debug"
	"npccore/internal/observability"
	"npccore/internal/observation"
)

// Client decides what an NPC does next given an observation.
type Client interface {
	// Decide blocks until a raw action string is produced or the retry
	// budget is exhausted. On final failure it returns a *RequestError.
	Decide(ctx context.Context, obs observation.Observation, memory string) (string, error)
	// DecideAsync runs Decide on a worker and delivers the result on the
	// returned channel, so a controller's tick loop never blocks on I/O.
	DecideAsync(ctx context.Context, obs observation.Observation, memory string) <-chan DecideResult
	// TestConnection verifies the endpoint is reachable and, for tool-call
	// clients, that it actually exercises function calling.
	TestConnection(ctx context.Context) bool
}

// DecideResult is delivered on the channel returned by DecideAsync.
type DecideResult struct {
	Raw string
	Err error
}

// baseClient holds everything both wire modes share: the wire client,
// retry/backoff policy, tracing, and debug logging.
type baseClient struct {
	wire         *openai.Client
	cfg          Config
	systemPrompt string
	debug        *debug.Logger
	tracer       trace.Tracer
}

func newBaseClient(cfg Config, systemPrompt string, dbg *debug.Logger) baseClient {
	oaiCfg := openai.DefaultConfig("unused")
	oaiCfg.BaseURL = trimEndpoint(cfg.Endpoint)
	return baseClient{
		wire:         openai.NewClientWithConfig(oaiCfg),
		cfg:          cfg,
		systemPrompt: systemPrompt,
		debug:        dbg,
		tracer:       otel.Tracer("npc-llm-client"),
	}
}

// trimEndpoint strips the trailing "/chat/completions" suffix LM Studio-style
// endpoints advertise, since go-openai appends its own request path to BaseURL.
func trimEndpoint(endpoint string) string {
	const suffix = "/chat/completions"
	if len(endpoint) > len(suffix) && endpoint[len(endpoint)-len(suffix):] == suffix {
		return endpoint[:len(endpoint)-len(suffix)]
	}
	return endpoint
}

// decideWithRetry runs attempt against the wire, retrying up to
// cfg.MaxRetries extra times with a 0.5*attempt second backoff (0.5s, 1s,
// 1.5s, ...), matching the reference client's linear sleep schedule.
func (c *baseClient) decideWithRetry(ctx context.Context, attempt func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		raw, err := attempt(attemptCtx)
		cancel()

		if err == nil && raw != "" {
			return raw, nil
		}
		if err == nil {
			err = fmt.Errorf("empty response content")
		}
		lastErr = err
		if c.debug != nil {
			c.debug.Printf("LLM request attempt %d failed: %v", i+1, err)
		}

		if i < c.cfg.MaxRetries {
			select {
			case <-time.After(time.Duration(float64(i+1)*0.5*float64(time.Second))):
			case <-ctx.Done():
				return "", requestErr("%s", ctx.Err())
			}
		}
	}
	return "", requestErr("%s", lastErr)
}

func (c *baseClient) decideAsync(ctx context.Context, decide func(ctx context.Context) (string, error)) <-chan DecideResult {
	out := make(chan DecideResult, 1)
	go func() {
		raw, err := decide(ctx)
		out <- DecideResult{Raw: raw, Err: err}
	}()
	return out
}

func (c *baseClient) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			observability.CreateGenAIAttributes("openai", c.cfg.Model, 0, 0, float64(c.cfg.Temperature))...,
		),
	)
}

func recordUsage(span trace.Span, usage openai.Usage, start time.Time, content string) {
	span.SetAttributes(
		attribute.Int("gen_ai.usage.input_tokens", usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", usage.CompletionTokens),
		attribute.Int64("response_time_ms", time.Since(start).Milliseconds()),
		attribute.String("langfuse.observation.output", content),
		attribute.String("langfuse.observation.type", "generation"),
	)
}

// synthesizeFromToolCall converts an OpenAI tool call into this module's
// {"action": ..., "args": ...} wire shape.
func synthesizeFromToolCall(call openai.ToolCall) (string, error) {
	var args json.RawMessage
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("tool call arguments were not valid JSON: %w", err)
	}
	out := struct {
		Action string          `json:"action"`
		Args   json.RawMessage `json:"args"`
	}{Action: call.Function.Name, Args: args}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// extractContentJSON is the fallback path when a tool-call-capable endpoint
// answers with plain content instead of a tool call.
func extractContentJSON(content string) (string, error) {
	extracted := action.ExtractJSONObject(content)
	if extracted == "" {
		return "", fmt.Errorf("no JSON object found in response content")
	}
	return extracted, nil
}
