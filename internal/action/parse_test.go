package action

import (
	"strings"
	"testing"
)

func TestParseValidActions(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind Kind
	}{
		{"say", `{"action": "say", "args": {"text": "hello there"}}`, Say},
		{"move", `{"action": "move", "args": {"direction": "N", "distance": 1.0}}`, Move},
		{"move_to", `{"action": "move_to", "args": {"x": 3, "y": 4}}`, MoveTo},
		{"interact", `{"action": "interact", "args": {"entity_id": "door-1"}}`, Interact},
		{"transfer_item", `{"action": "transfer_item", "args": {"entity_id": "npc-2", "item_id": "sword"}}`, TransferItem},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := Parse(tc.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Kind != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, a.Kind)
			}
		})
	}
}

func TestParseFencedCodeBlock(t *testing.T) {
	raw := "Here's my decision:\n```json\n{\"action\": \"say\", \"args\": {\"text\": \"hi\"}}\n```\nhope that helps"
	a, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != Say || a.Say.Text != "hi" {
		t.Fatalf("got %+v", a)
	}
}

func TestParseBraceMatchWithSurroundingProse(t *testing.T) {
	raw := `Sure, I'll do that: {"action": "move", "args": {"direction": "E", "distance": 2}} ok?`
	a, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != Move || a.Move.Direction != East {
		t.Fatalf("got %+v", a)
	}
}

func TestParseBraceMatchIgnoresBracesInStrings(t *testing.T) {
	raw := `{"action": "say", "args": {"text": "look at that { thing }"}}`
	a, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Say.Text != "look at that { thing }" {
		t.Fatalf("got %q", a.Say.Text)
	}
}

func TestParseMissingActionField(t *testing.T) {
	_, err := Parse(`{"args": {"text": "hi"}}`)
	requireKind(t, err, InvalidKind, "Missing 'action' field")
}

func TestParseMissingArgsField(t *testing.T) {
	_, err := Parse(`{"action": "say"}`)
	requireKind(t, err, InvalidKind, "Missing 'args' field")
}

func TestParseExtraTopLevelField(t *testing.T) {
	_, err := Parse(`{"action": "say", "args": {"text": "hi"}, "confidence": 0.9}`)
	requireKind(t, err, InvalidKind, "Extra fields not allowed")
}

func TestParseExtraArgsField(t *testing.T) {
	_, err := Parse(`{"action": "say", "args": {"text": "hi", "volume": "loud"}}`)
	requireKind(t, err, InvalidKind, "Extra fields not allowed")
}

func TestParseUnknownAction(t *testing.T) {
	_, err := Parse(`{"action": "dance", "args": {}}`)
	requireKind(t, err, InvalidKind, "unrecognized action")
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse(`{"action": "say", "args": {`)
	requireKind(t, err, ParseErrorKind, "")
}

func TestParseNoJSONAtAll(t *testing.T) {
	_, err := Parse("I think I'll just stand here.")
	requireKind(t, err, ParseErrorKind, "no JSON object")
}

func TestParseSayTextTooLong(t *testing.T) {
	_, err := Parse(`{"action": "say", "args": {"text": "` + strings.Repeat("a", 101) + `"}}`)
	requireKind(t, err, InvalidKind, "text")
}

func TestParseMoveBadDirection(t *testing.T) {
	_, err := Parse(`{"action": "move", "args": {"direction": "NE", "distance": 1}}`)
	requireKind(t, err, InvalidKind, "direction")
}

func TestParseMoveDistanceOutOfRange(t *testing.T) {
	_, err := Parse(`{"action": "move", "args": {"direction": "N", "distance": 6}}`)
	requireKind(t, err, InvalidKind, "distance")
}

func TestParseInteractEmptyEntityID(t *testing.T) {
	_, err := Parse(`{"action": "interact", "args": {"entity_id": ""}}`)
	requireKind(t, err, InvalidKind, "entity_id")
}

func TestSerializeRoundTrip(t *testing.T) {
	a := &Action{Kind: Move, Move: MoveArgs{Direction: South, Distance: 1.5}}
	s, err := Serialize(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		t.Fatalf("round-tripped action failed to parse: %v", err)
	}
	if parsed.Kind != Move || parsed.Move.Direction != South || parsed.Move.Distance != 1.5 {
		t.Fatalf("got %+v", parsed)
	}
}

func TestToolSchemasCoverAllKinds(t *testing.T) {
	schemas := ToolSchemas()
	if len(schemas) != 5 {
		t.Fatalf("expected 5 tool schemas, got %d", len(schemas))
	}
	seen := map[string]bool{}
	for _, s := range schemas {
		seen[s.Name] = true
	}
	for _, k := range []Kind{Say, Move, MoveTo, Interact, TransferItem} {
		if !seen[string(k)] {
			t.Fatalf("missing tool schema for %q", k)
		}
	}
}

func requireKind(t *testing.T, err error, kind ErrorKind, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Kind != kind {
		t.Fatalf("expected kind %q, got %q (%v)", kind, pe.Kind, err)
	}
	if substr != "" && !strings.Contains(pe.Error(), substr) {
		t.Fatalf("expected error to contain %q, got %q", substr, pe.Error())
	}
}
