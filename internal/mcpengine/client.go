// Package mcpengine adapts a Model Context Protocol world process into the
// engine.NPC/engine.TileWorld surface a controller.Controller needs, for
// hosts that run their simulation out-of-process behind a separate world
// state server.
package mcpengine

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"npccore/internal/debug"
	"npccore/internal/engine"
)

// Actuator is an engine.NPC backed by an MCP session: every Move/Say/
// inventory call is a round trip to an external process rather than a
// local mutation.
type Actuator struct {
	client  *mcp.Client
	session *mcp.ClientSession
	npcID   string
	dbg     *debug.Logger

	cachedPos    engine.Rect
	cachedHealth int
	speed        int
}

// defaultHealth is reported when the remote process has no "get_npc_health"
// tool: the tool is optional, so a world process without a health concept
// degrades to this constant rather than failing the connection.
const defaultHealth = 100

// Config names the external process hosting the world and the NPC this
// Actuator drives within it.
type Config struct {
	Command string
	Args    []string
	Dir     string
	NPCID   string
	Speed   int
	Debug   *debug.Logger
}

// Connect launches the configured process and completes the MCP handshake.
func Connect(ctx context.Context, cfg Config) (*Actuator, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "npc-controller-client",
		Version: "v1.0.0",
	}, nil)

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	transport := mcp.NewCommandTransport(cmd)

	session, err := client.Connect(ctx, transport)
	if err != nil {
		return nil, fmt.Errorf("mcpengine: connect: %w", err)
	}

	a := &Actuator{
		client:       client,
		session:      session,
		npcID:        cfg.NPCID,
		dbg:          cfg.Debug,
		speed:        cfg.Speed,
		cachedHealth: defaultHealth,
	}

	if err := a.refreshPosition(ctx); err != nil {
		session.Close()
		return nil, err
	}
	a.refreshHealth(ctx)

	return a, nil
}

// Close ends the MCP session, terminating the external process.
func (a *Actuator) Close() error {
	if a.session == nil {
		return nil
	}
	return a.session.Close()
}

func (a *Actuator) callTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	result, err := a.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("mcpengine: call %s: %w", name, err)
	}

	text := ""
	if len(result.Content) > 0 {
		if tc, ok := result.Content[0].(*mcp.TextContent); ok {
			text = tc.Text
		}
	}

	if result.IsError {
		return "", fmt.Errorf("mcpengine: %s failed: %s", name, text)
	}

	if a.dbg != nil {
		a.dbg.Printf("mcpengine: %s(%v) -> %s", name, args, text)
	}

	return text, nil
}

type positionPayload struct {
	X, Y, Width, Height int
}

func (a *Actuator) refreshPosition(ctx context.Context) error {
	text, err := a.callTool(ctx, "get_npc_position", map[string]interface{}{"npc_id": a.npcID})
	if err != nil {
		return err
	}
	var p positionPayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return fmt.Errorf("mcpengine: parse position: %w", err)
	}
	a.cachedPos = engine.Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
	return nil
}

// refreshHealth best-effort queries "get_npc_health" on the remote process.
// A world process that doesn't implement the tool leaves cachedHealth at
// defaultHealth rather than failing the connection.
func (a *Actuator) refreshHealth(ctx context.Context) {
	text, err := a.callTool(ctx, "get_npc_health", map[string]interface{}{"npc_id": a.npcID})
	if err != nil {
		return
	}
	var hp int
	if err := json.Unmarshal([]byte(text), &hp); err == nil {
		a.cachedHealth = hp
	}
}

// ID satisfies engine.Character.
func (a *Actuator) ID() string { return a.npcID }

// Health returns the last health value fetched from the remote process, or
// defaultHealth if it never answered "get_npc_health".
func (a *Actuator) Health() int { return a.cachedHealth }

// Position returns the last position fetched from the remote process; it is
// refreshed after every successful Move.
func (a *Actuator) Position() engine.Rect { return a.cachedPos }

// Speed satisfies engine.Mover.
func (a *Actuator) Speed() int { return a.speed }

// Move asks the remote world to attempt the delta and reports the position
// it actually settled on. Walls and others are ignored: collision is the
// remote process's responsibility.
func (a *Actuator) Move(dx, dy float64, walls []engine.Rect, others []engine.Character) engine.Rect {
	ctx := context.Background()
	text, err := a.callTool(ctx, "move_npc", map[string]interface{}{
		"npc_id": a.npcID,
		"dx":     dx,
		"dy":     dy,
	})
	if err != nil {
		if a.dbg != nil {
			a.dbg.Printf("mcpengine: move failed, holding position: %v", err)
		}
		return a.cachedPos
	}

	var p positionPayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return a.cachedPos
	}
	a.cachedPos = engine.Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
	return a.cachedPos
}

// Say asks the remote process to surface a line of NPC speech.
func (a *Actuator) Say(text string) {
	_, _ = a.callTool(context.Background(), "npc_say", map[string]interface{}{
		"npc_id": a.npcID,
		"text":   text,
	})
}

// HasItem, Items, RemoveItem, and AddItem satisfy engine.Inventory by
// querying and mutating the remote process's inventory state per call.
func (a *Actuator) HasItem(itemID string) bool {
	for _, slot := range a.Items() {
		if slot.ItemID == itemID && slot.Quantity > 0 {
			return true
		}
	}
	return false
}

func (a *Actuator) Items() []engine.InventorySlot {
	text, err := a.callTool(context.Background(), "get_npc_inventory", map[string]interface{}{"npc_id": a.npcID})
	if err != nil {
		return nil
	}
	var slots []engine.InventorySlot
	if err := json.Unmarshal([]byte(text), &slots); err != nil {
		return nil
	}
	return slots
}

func (a *Actuator) RemoveItem(itemID string, qty int) int {
	text, err := a.callTool(context.Background(), "remove_npc_item", map[string]interface{}{
		"npc_id":  a.npcID,
		"item_id": itemID,
		"qty":     qty,
	})
	if err != nil {
		return 0
	}
	var removed int
	_ = json.Unmarshal([]byte(text), &removed)
	return removed
}

func (a *Actuator) AddItem(itemID string, qty int) bool {
	text, err := a.callTool(context.Background(), "add_npc_item", map[string]interface{}{
		"npc_id":  a.npcID,
		"item_id": itemID,
		"qty":     qty,
	})
	if err != nil {
		return false
	}
	var ok bool
	_ = json.Unmarshal([]byte(text), &ok)
	return ok
}
