package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"npccore/internal/observation"
)

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:    endpoint + "/v1/chat/completions",
		Model:       "local-model",
		Temperature: 0.4,
		Timeout:     2 * time.Second,
		MaxRetries:  1,
	}
}

func sampleObservation() observation.Observation {
	return observation.Build(observation.EngineState{
		NPC:    observation.NPCSnapshot{CenterX: 320, CenterY: 160},
		Player: observation.PlayerSnapshot{CenterX: 416, CenterY: 160, SpeechText: "hello"},
	})
}

func TestBuildUserMessageFixedOrder(t *testing.T) {
	msg, err := BuildUserMessage(sampleObservation(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reminderIdx := strings.Index(msg, "SYSTEM_REMINDER:")
	obsIdx := strings.Index(msg, "OBSERVATION:")
	playerIdx := strings.Index(msg, "PLAYER_MESSAGE:")
	if reminderIdx != 0 {
		t.Fatalf("expected message to start with SYSTEM_REMINDER, got %q", msg[:30])
	}
	if obsIdx < reminderIdx {
		t.Fatalf("expected OBSERVATION after SYSTEM_REMINDER")
	}
	if playerIdx < obsIdx {
		t.Fatalf("expected PLAYER_MESSAGE after OBSERVATION")
	}
	if !strings.Contains(msg, `"hello"`) {
		t.Fatalf("expected quoted player message, got %q", msg)
	}
}

func TestBuildUserMessageOmitsPlayerMessageWhenSilent(t *testing.T) {
	obs := observation.Build(observation.EngineState{})
	msg, err := BuildUserMessage(obs, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(msg, "PLAYER_MESSAGE:") {
		t.Fatalf("expected no PLAYER_MESSAGE trailer, got %q", msg)
	}
}

func TestBuildUserMessageIncludesMemoryBlock(t *testing.T) {
	obs := observation.Build(observation.EngineState{})
	msg, err := BuildUserMessage(obs, "RECENT CONVERSATION:\nplayer: hi\nguard: hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(msg, "RECENT CONVERSATION:") {
		t.Fatalf("expected memory block, got %q", msg)
	}
}

func jsonResponseServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "local-model",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": content,
					},
				},
			},
			"usage": map[string]interface{}{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func TestJSONClientDecideExtractsFencedJSON(t *testing.T) {
	srv := jsonResponseServer(t, "```json\n{\"action\": \"say\", \"args\": {\"text\": \"hi\"}}\n```")
	defer srv.Close()

	client := NewJSONClient(testConfig(srv.URL), "", nil)
	raw, err := client.Decide(context.Background(), sampleObservation(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(raw, `"say"`) {
		t.Fatalf("expected say action, got %q", raw)
	}
}

func TestJSONClientDecideFailsOnEmptyContent(t *testing.T) {
	srv := jsonResponseServer(t, "")
	defer srv.Close()

	client := NewJSONClient(testConfig(srv.URL), "", nil)
	_, err := client.Decide(context.Background(), sampleObservation(), "")
	if err == nil {
		t.Fatalf("expected error for empty content")
	}
	if !strings.HasPrefix(err.Error(), "request_failed:") {
		t.Fatalf("expected request_failed prefix, got %q", err.Error())
	}
}

func toolCallResponseServer(t *testing.T, name, arguments string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "local-model",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "tool_calls",
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]interface{}{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]interface{}{
									"name":      name,
									"arguments": arguments,
								},
							},
						},
					},
				},
			},
			"usage": map[string]interface{}{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func TestToolCallClientDecideSynthesizesActionFromToolCall(t *testing.T) {
	srv := toolCallResponseServer(t, "move", `{"direction": "N", "distance": 1.0}`)
	defer srv.Close()

	client := NewToolCallClient(testConfig(srv.URL), "", nil)
	raw, err := client.Decide(context.Background(), sampleObservation(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Action string `json:"action"`
		Args   struct {
			Direction string  `json:"direction"`
			Distance  float64 `json:"distance"`
		} `json:"args"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("expected valid JSON, got %q: %v", raw, err)
	}
	if decoded.Action != "move" || decoded.Args.Direction != "N" {
		t.Fatalf("got %+v", decoded)
	}
}

func TestToolCallClientBuildsFiveTools(t *testing.T) {
	tools := buildTools()
	if len(tools) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(tools))
	}
}
