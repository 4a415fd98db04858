// Package llm drives an OpenAI-compatible chat/completions endpoint to turn
// an observation into raw action text, in either tool-call or JSON-parsing
// wire mode.
package llm

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEndpoint   = "http://127.0.0.1:1234/v1/chat/completions"
	defaultModel      = "local-model"
	defaultTemp       = 0.4
	requestTimeout    = 10 * time.Second
	defaultMaxRetries = 2
	maxTokens         = 150
)

var stopSequences = []string{"\n\n", "```"}

// Config configures a Client's connection to the chat/completions endpoint.
type Config struct {
	Endpoint     string
	Model        string
	Temperature  float32
	Timeout      time.Duration
	MaxRetries   int
	SystemPrompt string
}

// ConfigFromEnv builds a Config from LLM_ENDPOINT, LOCAL_LLM_MODEL, and
// LLM_TEMP, falling back to the same defaults as the reference client.
func ConfigFromEnv() Config {
	cfg := Config{
		Endpoint:    defaultEndpoint,
		Model:       defaultModel,
		Temperature: defaultTemp,
		Timeout:     requestTimeout,
		MaxRetries:  defaultMaxRetries,
	}
	if v := os.Getenv("LLM_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("LOCAL_LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("LLM_TEMP"); v != "" {
		if t, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Temperature = float32(t)
		}
	}
	return cfg
}

// LoadSystemPrompt reads the system prompt from path. A missing file is not
// an error: the caller's fallback (built-in default) should be used instead.
func LoadSystemPrompt(path string) (string, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}
