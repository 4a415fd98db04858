package action

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// envelope is the top-level {"action": ..., "args": ...} shape every raw LLM
// response must match. RawMessage defers args decoding until Kind is known.
type envelope struct {
	Action json.RawMessage `json:"action"`
	Args   json.RawMessage `json:"args"`
}

// Parse turns raw LLM output into a validated Action. raw may be wrapped in
// a fenced code block, may carry leading/trailing prose, and must otherwise
// be exactly one JSON object with "action" and "args" keys and nothing else.
// The returned error is always a *ParseError whose Error() string is either
// "parse_error: ..." (malformed/unextractable JSON) or "invalid: ..." (well
// formed JSON that fails the action contract).
func Parse(raw string) (*Action, error) {
	text := ExtractJSONObject(strings.TrimSpace(raw))
	if text == "" {
		return nil, parseErr("no JSON object found in response")
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return nil, parseErr("invalid JSON - %s", err.Error())
	}

	rawAction, ok := top["action"]
	if !ok {
		return nil, invalidErr("Missing 'action' field")
	}
	rawArgs, ok := top["args"]
	if !ok {
		return nil, invalidErr("Missing 'args' field")
	}
	for key := range top {
		if key != "action" && key != "args" {
			return nil, invalidErr("Extra fields not allowed: %s", key)
		}
	}

	var kindStr string
	if err := json.Unmarshal(rawAction, &kindStr); err != nil {
		return nil, invalidErr("action - must be a string")
	}

	switch Kind(kindStr) {
	case Say:
		return parseSay(rawArgs)
	case Move:
		return parseMove(rawArgs)
	case MoveTo:
		return parseMoveTo(rawArgs)
	case Interact:
		return parseInteract(rawArgs)
	case TransferItem:
		return parseTransferItem(rawArgs)
	default:
		return nil, invalidErr("action - unrecognized action %q", kindStr)
	}
}

// ExtractJSONObject finds the single JSON object to decode out of raw text
// that may be wrapped in a fenced code block or surrounded by commentary.
// Exported so an LLM client's tool-call fallback path can reuse the same
// extraction rules without re-sending text through the full Parse pipeline.
func ExtractJSONObject(text string) string {
	if strings.Contains(text, "```") {
		if fenced, ok := extractFromFence(text); ok {
			text = fenced
		}
	}

	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text
	}

	return extractFirstBraceMatch(text)
}

// extractFromFence pulls the first fenced ``` ... ``` segment whose first
// non-blank line begins a JSON object, stripping an optional "json" tag.
func extractFromFence(text string) (string, bool) {
	segments := strings.Split(text, "```")
	for i := 1; i < len(segments); i += 2 {
		segment := strings.TrimSpace(segments[i])
		if strings.HasPrefix(segment, "json") {
			segment = strings.TrimSpace(strings.TrimPrefix(segment, "json"))
		}
		if strings.HasPrefix(segment, "{") {
			return segment, true
		}
	}
	return "", false
}

// extractFirstBraceMatch finds the first '{' in text and returns the
// substring up to its matching closing brace, honoring string literals so
// braces inside quoted text don't confuse the count.
func extractFirstBraceMatch(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, ignore braces
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func decodeArgsStrict(raw json.RawMessage, allowed map[string]bool, out interface{}) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("args - must be an object")
	}
	for key := range fields {
		if !allowed[key] {
			return fmt.Errorf("Extra fields not allowed: %s", key)
		}
	}
	return json.Unmarshal(raw, out)
}

func parseSay(raw json.RawMessage) (*Action, error) {
	var args SayArgs
	if err := decodeArgsStrict(raw, map[string]bool{"text": true}, &args); err != nil {
		return nil, invalidErr("%s", err.Error())
	}
	length := utf8.RuneCountInString(args.Text)
	if length < minSayText || length > maxSayText {
		return nil, invalidErr("text - length must be between %d and %d characters", minSayText, maxSayText)
	}
	return &Action{Kind: Say, Say: args}, nil
}

func parseMove(raw json.RawMessage) (*Action, error) {
	var args MoveArgs
	if err := decodeArgsStrict(raw, map[string]bool{"direction": true, "distance": true}, &args); err != nil {
		return nil, invalidErr("%s", err.Error())
	}
	if !validDirections[args.Direction] {
		return nil, invalidErr("direction - must be one of N, E, S, W")
	}
	if args.Distance < minDistance || args.Distance > maxDistance {
		return nil, invalidErr("distance - must be between %.1f and %.1f", minDistance, maxDistance)
	}
	return &Action{Kind: Move, Move: args}, nil
}

func parseMoveTo(raw json.RawMessage) (*Action, error) {
	var args MoveToArgs
	if err := decodeArgsStrict(raw, map[string]bool{"x": true, "y": true}, &args); err != nil {
		return nil, invalidErr("%s", err.Error())
	}
	return &Action{Kind: MoveTo, MoveTo: args}, nil
}

func parseInteract(raw json.RawMessage) (*Action, error) {
	var args InteractArgs
	if err := decodeArgsStrict(raw, map[string]bool{"entity_id": true}, &args); err != nil {
		return nil, invalidErr("%s", err.Error())
	}
	if args.EntityID == "" {
		return nil, invalidErr("entity_id - must not be empty")
	}
	return &Action{Kind: Interact, Interact: args}, nil
}

func parseTransferItem(raw json.RawMessage) (*Action, error) {
	var args TransferItemArgs
	if err := decodeArgsStrict(raw, map[string]bool{"entity_id": true, "item_id": true}, &args); err != nil {
		return nil, invalidErr("%s", err.Error())
	}
	if args.EntityID == "" {
		return nil, invalidErr("entity_id - must not be empty")
	}
	if args.ItemID == "" {
		return nil, invalidErr("item_id - must not be empty")
	}
	return &Action{Kind: TransferItem, TransferItem: args}, nil
}
