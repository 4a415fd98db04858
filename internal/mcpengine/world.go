package mcpengine

import (
	"context"
	"encoding/json"

	"npccore/internal/engine"
)

// World fetches static layout (walls, entities) from the same MCP session
// an Actuator drives its NPC through, so a controller.Engine can be built
// entirely from one remote process.
type World struct {
	session callTooler
}

type callTooler interface {
	callTool(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// NewWorld wraps an already-connected Actuator's session for layout queries.
func NewWorld(a *Actuator) *World {
	return &World{session: a}
}

func (w *World) Walls() []engine.Rect {
	text, err := w.session.callTool(context.Background(), "get_walls", nil)
	if err != nil {
		return nil
	}
	var walls []engine.Rect
	_ = json.Unmarshal([]byte(text), &walls)
	return walls
}

func (w *World) Entities() []engine.Entity {
	text, err := w.session.callTool(context.Background(), "get_entities", nil)
	if err != nil {
		return nil
	}
	var entities []engine.Entity
	_ = json.Unmarshal([]byte(text), &entities)
	return entities
}

// RemoteCharacter is a read-only engine.Character backed by the same MCP
// session an Actuator drives its NPC through, for hosts whose player (or
// any other character the NPC might target) also lives in the remote
// process rather than in local Go state.
type RemoteCharacter struct {
	session callTooler
	id      string
}

// NewRemoteCharacter wraps an already-connected Actuator's session to read
// another character's position by id.
func NewRemoteCharacter(a *Actuator, id string) *RemoteCharacter {
	return &RemoteCharacter{session: a, id: id}
}

// ID satisfies engine.Character.
func (r *RemoteCharacter) ID() string { return r.id }

// Position fetches the character's current position from the remote
// process on every call; RemoteCharacter caches nothing since the host,
// not this module, owns that character's state.
func (r *RemoteCharacter) Position() engine.Rect {
	text, err := r.session.callTool(context.Background(), "get_npc_position", map[string]interface{}{"npc_id": r.id})
	if err != nil {
		return engine.Rect{}
	}
	var p struct{ X, Y, Width, Height int }
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return engine.Rect{}
	}
	return engine.Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}
