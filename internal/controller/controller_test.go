package controller

import (
	"context"
	"strings"
	"testing"

	"npccore/internal/engine"
	"npccore/internal/llm"
	"npccore/internal/observation"
)

type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedClient) Decide(ctx context.Context, obs observation.Observation, memory string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return s.responses[len(s.responses)-1], nil
}

func (s *scriptedClient) DecideAsync(ctx context.Context, obs observation.Observation, memory string) <-chan llm.DecideResult {
	out := make(chan llm.DecideResult, 1)
	raw, err := s.Decide(ctx, obs, memory)
	out <- llm.DecideResult{Raw: raw, Err: err}
	return out
}

func (s *scriptedClient) TestConnection(ctx context.Context) bool { return true }

func newTestWorld() (*engine.ToyWorld, *engine.ToyCharacter, *engine.ToyCharacter) {
	w := engine.NewToyWorld()
	npc := engine.NewToyCharacter("guard", 320, 160, 32, 32, 4)
	player := engine.NewToyCharacter("player", 384, 160, 32, 32, 4)
	w.AddCharacter(npc)
	w.AddCharacter(player)
	return w, npc, player
}

func testEngine(w *engine.ToyWorld, npc, player *engine.ToyCharacter) Engine {
	return Engine{
		World:      w,
		NPC:        npc,
		Player:     player,
		Characters: []engine.Character{npc, player},
	}
}

func TestTickGatingNoDecisionWhenSilentAndIdle(t *testing.T) {
	w, npc, player := newTestWorld()
	c := New("guard", &scriptedClient{responses: []string{`{"action":"say","args":{"text":"hi"}}`}}, Options{})

	result, made := c.Tick(context.Background(), TickInput{
		CurrentTimeMS: 1000,
		PlayerSpoke:   false,
		Engine:        testEngine(w, npc, player),
	})
	if made {
		t.Fatalf("expected no decision, got result %q", result)
	}
}

func TestTickPlayerSpokeTriggersDecision(t *testing.T) {
	w, npc, player := newTestWorld()
	c := New("guard", &scriptedClient{responses: []string{`{"action":"say","args":{"text":"hi"}}`}}, Options{})

	result, made := c.Tick(context.Background(), TickInput{
		CurrentTimeMS: 1000,
		PlayerSpoke:   true,
		PlayerUtter:   "hello",
		Engine:        testEngine(w, npc, player),
	})
	if !made || result != "ok" {
		t.Fatalf("expected ok decision, got %q made=%v", result, made)
	}
	if npc.Speech() != "hi" {
		t.Fatalf("expected npc speech to update, got %q", npc.Speech())
	}
}

func TestTickInvalidLLMOutputIncrementsErrors(t *testing.T) {
	w, npc, player := newTestWorld()
	c := New("guard", &scriptedClient{responses: []string{"I think I'll move east."}}, Options{})

	result, made := c.Tick(context.Background(), TickInput{
		CurrentTimeMS: 1000,
		PlayerSpoke:   true,
		PlayerUtter:   "move",
		Engine:        testEngine(w, npc, player),
	})
	if !made {
		t.Fatalf("expected a decision to be made")
	}
	if !strings.HasPrefix(result, "parse_error:") {
		t.Fatalf("expected parse_error prefix, got %q", result)
	}
	if c.consecutiveErrors != 1 {
		t.Fatalf("expected consecutive_errors=1, got %d", c.consecutiveErrors)
	}
}

func TestMoveBlockedByWallClearsMovement(t *testing.T) {
	w, npc, player := newTestWorld()
	w.AddWall(engine.Rect{X: npc.Position().X + 4, Y: npc.Position().Y, Width: 32, Height: 32})
	c := New("guard", &scriptedClient{responses: []string{`{"action":"move","args":{"direction":"E","distance":1.0}}`}}, Options{})

	result, made := c.Tick(context.Background(), TickInput{
		CurrentTimeMS: 1000,
		PlayerSpoke:   true,
		PlayerUtter:   "move east",
		Engine:        testEngine(w, npc, player),
	})
	if !made || result != "blocked:wall" {
		t.Fatalf("expected blocked:wall, got %q made=%v", result, made)
	}
	if c.activeMovement != movementNone {
		t.Fatalf("expected movement cleared after block")
	}
}

func TestMoveCooldownBlocksImmediateRetry(t *testing.T) {
	w, npc, player := newTestWorld()
	c := New("guard", &scriptedClient{responses: []string{
		`{"action":"move","args":{"direction":"E","distance":1.0}}`,
		`{"action":"move","args":{"direction":"E","distance":1.0}}`,
	}}, Options{})

	eng := testEngine(w, npc, player)
	before := npc.Position()

	result1, _ := c.Tick(context.Background(), TickInput{CurrentTimeMS: 1000, PlayerSpoke: true, PlayerUtter: "go", Engine: eng})
	if result1 != "ok" {
		t.Fatalf("expected first move ok, got %q", result1)
	}

	result2, made := c.Tick(context.Background(), TickInput{CurrentTimeMS: 1050, PlayerSpoke: true, PlayerUtter: "go again", Engine: eng})
	if !made || result2 != "cooldown" {
		t.Fatalf("expected cooldown on immediate retry, got %q made=%v", result2, made)
	}

	after := npc.Position()
	if after.X == before.X {
		t.Fatalf("expected position to have changed from the first move")
	}
}

func TestTransferItemOk(t *testing.T) {
	w, npc, player := newTestWorld()
	npc.AddItem("iron_sword", 2)

	c := New("guard", &scriptedClient{responses: []string{
		`{"action":"transfer_item","args":{"entity_id":"player","item_id":"iron_sword"}}`,
	}}, Options{})

	eng := testEngine(w, npc, player)
	result, made := c.Tick(context.Background(), TickInput{CurrentTimeMS: 1000, PlayerSpoke: true, PlayerUtter: "take this", Engine: eng})
	if !made || result != "ok" {
		t.Fatalf("expected ok transfer, got %q made=%v", result, made)
	}
	if !npc.HasItem("iron_sword") {
		t.Fatalf("expected npc to retain 1 iron_sword")
	}
	if !player.HasItem("iron_sword") {
		t.Fatalf("expected player to receive iron_sword")
	}
}

func TestTransferItemRollsBackWhenInventoryFull(t *testing.T) {
	w, npc, player := newTestWorld()
	npc.AddItem("iron_sword", 2)
	for i := 0; i < 8; i++ {
		player.AddItem(itemName(i), 1)
	}

	c := New("guard", &scriptedClient{responses: []string{
		`{"action":"transfer_item","args":{"entity_id":"player","item_id":"iron_sword"}}`,
	}}, Options{})

	eng := testEngine(w, npc, player)
	result, made := c.Tick(context.Background(), TickInput{CurrentTimeMS: 1000, PlayerSpoke: true, PlayerUtter: "take this", Engine: eng})
	if !made || result != "blocked:inventory_full" {
		t.Fatalf("expected blocked:inventory_full, got %q made=%v", result, made)
	}

	found := false
	for _, slot := range npc.Items() {
		if slot.ItemID == "iron_sword" && slot.Quantity == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected npc iron_sword count to be rolled back to 2")
	}
}

func itemName(i int) string {
	return "filler_" + string(rune('a'+i))
}

func TestNPCStateIsTalkAfterSay(t *testing.T) {
	w, npc, player := newTestWorld()
	c := New("guard", &scriptedClient{responses: []string{`{"action":"say","args":{"text":"halt!"}}`}}, Options{})

	result, made := c.Tick(context.Background(), TickInput{
		CurrentTimeMS: 1000,
		PlayerSpoke:   true,
		PlayerUtter:   "who goes there",
		Engine:        testEngine(w, npc, player),
	})
	if !made || result != "ok" {
		t.Fatalf("expected ok say decision, got %q made=%v", result, made)
	}

	obs := c.buildObservation(TickInput{CurrentTimeMS: 1000, Engine: testEngine(w, npc, player)})
	if obs.NPC.State != "Talk" {
		t.Fatalf("expected npc state Talk after a say action, got %q", obs.NPC.State)
	}
}

func TestNPCHealthFlowsFromEngine(t *testing.T) {
	w, npc, player := newTestWorld()
	npc.SetHealth(42)
	c := New("guard", &scriptedClient{responses: []string{`{"action":"say","args":{"text":"hi"}}`}}, Options{})

	obs := c.buildObservation(TickInput{CurrentTimeMS: 1000, Engine: testEngine(w, npc, player)})
	if obs.NPC.HP != 42 {
		t.Fatalf("expected observation HP to reflect engine.NPC.Health(), got %d", obs.NPC.HP)
	}
}

func TestDialogueHistoryCappedAtSix(t *testing.T) {
	w, npc, player := newTestWorld()
	c := New("guard", &scriptedClient{responses: []string{`{"action":"say","args":{"text":"ok"}}`}}, Options{})

	for i := 0; i < 5; i++ {
		c.Tick(context.Background(), TickInput{CurrentTimeMS: float64(1000 + i*3000), PlayerSpoke: true, PlayerUtter: "hi again", Engine: testEngine(w, npc, player)})
	}

	if len(c.dialogue) > dialogueHistoryCap {
		t.Fatalf("expected dialogue history capped at %d, got %d", dialogueHistoryCap, len(c.dialogue))
	}
}
