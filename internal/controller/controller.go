// Package controller drives one NPC's tick-by-tick decision loop: gating
// whether a decision is due, consulting an LLM when it is, validating and
// executing the chosen action against an engine.NPC, and tracking the
// error/backoff and movement-continuation state that lets most ticks skip
// the LLM entirely.
package controller

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"npccore/internal/action"
	"npccore/internal/debug"
	"npccore/internal/decisionlog"
	"npccore/internal/engine"
	"npccore/internal/llm"
	"npccore/internal/navigator"
	"npccore/internal/observability"
	"npccore/internal/observation"
)

var tracer = otel.Tracer("npc-controller")

const (
	decisionIntervalMS    = 4000
	movementStepMS        = 200
	idleIntervalMultiple  = 8
	maxConsecutiveErrors  = 3
	errorBackoffMS        = 2000
	moveCooldownMS        = 200
	interactCooldownMS    = 1000
	interactionDistance   = 64.0
	moveToArrivalDistance = 16.0
	moveToStepBuffer      = 10
	moveToStepCap         = 200
	tileSize              = 32
	dialogueHistoryCap    = 6
)

type movementKind string

const (
	movementNone   movementKind = ""
	movementDir    movementKind = "move_dir"
	movementToward movementKind = "move_to"
)

// DialogueEntry is one line in the ring-buffer conversation history
// injected into the LLM prompt as "RECENT CONVERSATION".
type DialogueEntry struct {
	Speaker string
	Message string
}

// Engine bundles the TileWorld and the character roster a controller needs
// to build observations and execute actions for a single NPC.
type Engine struct {
	World      engine.TileWorld
	NPC        engine.NPC
	Player     engine.Character
	Characters []engine.Character
}

// Options configures optional controller behaviour.
type Options struct {
	Navigator           *navigator.Navigator
	Logger              *decisionlog.Logger
	Debug               *debug.Logger
	IdleBehaviorEnabled bool
	IdleSpeechChance    float64
	MovementTiles       float64
}

// Controller runs the decision loop for exactly one NPC.
type Controller struct {
	client llm.Client
	nav    *navigator.Navigator
	log    *decisionlog.Logger
	dbg    *debug.Logger
	npcID  string

	goals     []string
	cooldowns map[string]float64
	memory    string
	dialogue  []DialogueEntry

	lastResult        string
	lastDecisionTime  float64
	consecutiveErrors int
	npcSpeech         string

	idleEnabled      bool
	idleSpeechChance float64

	activeMovement         movementKind
	movementDirection      action.Direction
	movementStepsRemaining int
	movementTarget         *navigator.Waypoint
	movementWaypoints      []navigator.Waypoint
	movementTiles          float64
}

// New creates a Controller for npcID using client for decisions.
func New(npcID string, client llm.Client, opts Options) *Controller {
	movementTiles := opts.MovementTiles
	if movementTiles <= 0 {
		movementTiles = 2.0
	}
	return &Controller{
		client:           client,
		nav:              opts.Navigator,
		log:              opts.Logger,
		dbg:              opts.Debug,
		npcID:            npcID,
		goals:            []string{"greet player"},
		cooldowns:        map[string]float64{"move": 0, "interact": 0},
		idleEnabled:      opts.IdleBehaviorEnabled,
		idleSpeechChance: clamp01(opts.IdleSpeechChance),
		movementTiles:    movementTiles,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SetGoals replaces the NPC's stated goals, surfaced to the LLM in the
// observation.
func (c *Controller) SetGoals(goals []string) { c.goals = goals }

// AddMemory appends a free-text line to the controller's short-term memory
// summary, trimmed to the five most recent lines.
func (c *Controller) AddMemory(text string) {
	if c.memory == "" {
		c.memory = text
	} else {
		c.memory += "\n" + text
	}
	lines := splitLines(c.memory)
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	c.memory = joinLines(lines)
}

// EnableIdleBehavior turns on occasional LLM-driven decisions even when the
// player hasn't spoken and no movement is in progress.
func (c *Controller) EnableIdleBehavior(enabled bool, speechChance float64) {
	c.idleEnabled = enabled
	c.idleSpeechChance = clamp01(speechChance)
}

// SetMovementDistance records a default travel distance in tiles; values
// <= 0 are ignored. A move action always travels the distance given in its
// own arguments, and no execution path reads this value.
func (c *Controller) SetMovementDistance(tiles float64) {
	if tiles > 0 {
		c.movementTiles = tiles
	}
}

// TickInput is the per-tick snapshot a host passes to Tick.
type TickInput struct {
	CurrentTimeMS float64
	Tick          int
	PlayerSpoke   bool
	PlayerUtter   string
	Engine        Engine
}

// Tick runs at most one decision for the NPC and returns the result string,
// or ("", false) if gating decided no decision was due this tick.
func (c *Controller) Tick(ctx context.Context, in TickInput) (result string, made bool) {
	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprintf("decision_error: %v", r)
			made = true
			c.consecutiveErrors++
			c.lastResult = result
			c.lastDecisionTime = in.CurrentTimeMS
		}
	}()

	playerNearby := c.isPlayerNearby(in.Engine)
	if !c.shouldMakeDecision(in.CurrentTimeMS, in.PlayerSpoke, playerNearby) {
		return "", false
	}

	if c.consecutiveErrors >= maxConsecutiveErrors {
		if in.CurrentTimeMS-c.lastDecisionTime < errorBackoffMS {
			return "", false
		}
		c.consecutiveErrors = 0
	}

	dt := 0.0
	if c.lastDecisionTime > 0 {
		dt = in.CurrentTimeMS - c.lastDecisionTime
	}
	c.cooldowns["move"] = math.Max(0, c.cooldowns["move"]-dt)
	c.cooldowns["interact"] = math.Max(0, c.cooldowns["interact"]-dt)

	if c.activeMovement != movementNone && c.movementStepsRemaining > 0 {
		result = c.continueMovement(in.Engine)
		c.recordOutcome(result, in.CurrentTimeMS)
		return result, true
	}

	decisionID := uuid.NewString()
	result = c.decideWithLLM(ctx, in, decisionID)
	c.recordOutcome(result, in.CurrentTimeMS)
	return result, true
}

func (c *Controller) isPlayerNearby(eng Engine) bool {
	if eng.NPC == nil || eng.Player == nil {
		return false
	}
	npcPos := eng.NPC.Position()
	playerPos := eng.Player.Position()
	dx := float64(playerPos.CenterX() - npcPos.CenterX())
	dy := float64(playerPos.CenterY() - npcPos.CenterY())
	return math.Hypot(dx, dy) < 200
}

func (c *Controller) shouldMakeDecision(currentTime float64, playerSpoke, playerNearby bool) bool {
	if playerSpoke {
		return true
	}
	if c.activeMovement != movementNone && c.movementStepsRemaining > 0 {
		return currentTime-c.lastDecisionTime >= movementStepMS
	}
	if !c.idleEnabled {
		return false
	}
	if playerNearby {
		return currentTime-c.lastDecisionTime >= decisionIntervalMS*idleIntervalMultiple
	}
	return false
}

func (c *Controller) recordOutcome(result string, currentTime float64) {
	c.lastResult = result
	c.lastDecisionTime = currentTime
	if action.IsErrorResult(result) {
		c.consecutiveErrors++
	} else {
		c.consecutiveErrors = 0
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func (c *Controller) decideWithLLM(ctx context.Context, in TickInput, decisionID string) string {
	if in.PlayerUtter != "" {
		c.pushDialogue("Player", in.PlayerUtter)
	}

	obs := c.buildObservation(in)

	obsJSON, _ := observation.FormatForLLM(obs)

	ctx = context.WithValue(ctx, observability.GetSessionIDKey(), decisionID)
	spanCtx, span := tracer.Start(ctx, "controller.decide")
	defer span.End()

	raw, err := c.client.Decide(spanCtx, obs, c.renderMemory())
	if err != nil {
		if c.dbg != nil {
			c.dbg.Printf("controller %s: llm error: %v", c.npcID, err)
		}
		c.logDecision(decisionID, obsJSON, "", "", err.Error())
		return err.Error()
	}

	if c.dbg != nil {
		c.dbg.Printf("controller %s: raw response: %s", c.npcID, raw)
	}

	parsed, err := action.Parse(raw)
	if err != nil {
		c.logDecision(decisionID, obsJSON, raw, "", err.Error())
		return err.Error()
	}

	if c.dbg != nil {
		c.dbg.Printf("controller %s: executing %s", c.npcID, parsed.Kind)
	}

	result := c.execute(parsed, in.Engine)

	if parsed.Kind == action.Say {
		c.pushDialogue(c.npcID, parsed.Say.Text)
		c.npcSpeech = parsed.Say.Text
	}

	serialized, _ := action.Serialize(parsed)
	c.logDecision(decisionID, obsJSON, raw, serialized, result)

	return result
}

func (c *Controller) pushDialogue(speaker, message string) {
	c.dialogue = append(c.dialogue, DialogueEntry{Speaker: speaker, Message: message})
	if len(c.dialogue) > dialogueHistoryCap {
		c.dialogue = c.dialogue[len(c.dialogue)-dialogueHistoryCap:]
	}
}

func (c *Controller) renderMemory() string {
	if len(c.dialogue) == 0 {
		return c.memory
	}
	out := "RECENT CONVERSATION:\n"
	for _, d := range c.dialogue {
		out += fmt.Sprintf("%s: %s\n", d.Speaker, d.Message)
	}
	if c.memory != "" {
		out += c.memory
	}
	return out
}

func (c *Controller) buildObservation(in TickInput) observation.Observation {
	npcPos := in.Engine.NPC.Position()

	var lastResult *string
	if c.lastResult != "" {
		lr := c.lastResult
		lastResult = &lr
	}

	var speechText string
	if in.PlayerUtter != "" {
		speechText = in.PlayerUtter
	}

	walls := make([]observation.Wall, 0)
	for _, w := range in.Engine.World.Walls() {
		walls = append(walls, observation.Wall{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height})
	}
	entities := make([]observation.Entity, 0)
	for _, e := range in.Engine.World.Entities() {
		entities = append(entities, observation.Entity{ID: e.ID, Kind: e.Kind, X: e.X, Y: e.Y})
	}

	npcInv := make([]observation.InventorySlot, 0)
	for _, slot := range in.Engine.NPC.Items() {
		npcInv = append(npcInv, observation.InventorySlot{ItemID: slot.ItemID, Quantity: slot.Quantity})
	}

	playerPos := in.Engine.Player.Position()

	cooldowns := make(map[string]int, len(c.cooldowns))
	for k, v := range c.cooldowns {
		cooldowns[k] = int(v)
	}

	return observation.Build(observation.EngineState{
		NPC: observation.NPCSnapshot{
			CenterX:      npcPos.CenterX(),
			CenterY:      npcPos.CenterY(),
			Health:       in.Engine.NPC.Health(),
			IsPatrolling: false,
			IsMoving:     c.activeMovement != movementNone,
			SpeechText:   c.npcSpeech,
			Inventory:    npcInv,
		},
		Player: observation.PlayerSnapshot{
			CenterX:    playerPos.CenterX(),
			CenterY:    playerPos.CenterY(),
			SpeechText: speechText,
		},
		Walls:      walls,
		Entities:   entities,
		Tick:       in.Tick,
		LastResult: lastResult,
		Goals:      c.goals,
		Cooldowns:  cooldowns,
	})
}

func (c *Controller) logDecision(decisionID, obsJSON, raw, serializedAction, result string) {
	if c.log == nil {
		return
	}
	mode := "tool_call"
	if _, ok := c.client.(*llm.JSONClient); ok {
		mode = "json"
	}
	var errMsg *string
	if action.IsErrorResult(result) {
		e := result
		errMsg = &e
	}
	_ = c.log.Log(decisionID, c.npcID, obsJSON, raw, serializedAction, result, decisionlog.Metadata{
		Mode:  mode,
		Error: errMsg,
	})
}
