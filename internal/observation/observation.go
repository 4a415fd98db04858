// Package observation compacts an engine snapshot into the bounded JSON
// document an LLM client sends as the primary spatial input for a decision.
package observation

import (
	"strconv"
	"strings"
)

const (
	tileSize = 32
	gridSize = 11
	halfSize = gridSize / 2
)

// Wall is a rectangular obstacle in world-space pixels.
type Wall struct {
	X, Y, Width, Height int
}

// Entity is an interactive object (door, chest, furniture, another
// character) with a stable id, a kind, and a world-space position.
type Entity struct {
	ID   string
	Kind string
	X, Y int
}

// InventorySlot is one slot of a character's fixed-size inventory. A zero
// value (empty ItemID) represents an empty slot.
type InventorySlot struct {
	ItemID   string
	Quantity int
}

// NPCSnapshot is the subset of NPC state the builder needs.
type NPCSnapshot struct {
	CenterX, CenterY int
	Health           int
	IsPatrolling     bool
	IsMoving         bool
	SpeechText       string
	Inventory        []InventorySlot
}

// PlayerSnapshot is the subset of player state the builder needs.
type PlayerSnapshot struct {
	CenterX, CenterY int
	SpeechText       string
}

// EngineState is everything the builder reads from the host engine on a
// given tick. Cooldowns and Goals are copied as given; Build does not
// mutate them.
type EngineState struct {
	NPC       NPCSnapshot
	Player    PlayerSnapshot
	Walls     []Wall
	Entities  []Entity
	Tick      int
	LastResult *string
	Goals     []string
	Cooldowns map[string]int
}

// NPCField is the "npc" section of an Observation.
type NPCField struct {
	Pos       [2]int   `json:"pos"`
	HP        int      `json:"hp"`
	State     string   `json:"state"`
	Inventory []string `json:"inventory"`
}

// PlayerField is the "player" section of an Observation.
type PlayerField struct {
	Pos      [2]int  `json:"pos"`
	LastSaid *string `json:"last_said"`
}

// LocalTiles is the 11x11 window centred on the NPC.
type LocalTiles struct {
	Origin [2]int   `json:"origin"`
	Grid   []string `json:"grid"`
}

// VisibleEntity is one entity (including the player) inside the window.
type VisibleEntity struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Pos  [2]int `json:"pos"`
}

// Observation is the compact per-tick document handed to an LLM client.
type Observation struct {
	NPC             NPCField        `json:"npc"`
	Player          PlayerField     `json:"player"`
	LocalTiles      LocalTiles      `json:"local_tiles"`
	VisibleEntities []VisibleEntity `json:"visible_entities"`
	Goals           []string        `json:"goals"`
	Cooldowns       map[string]int  `json:"cooldowns"`
	LastResult      *string         `json:"last_result"`
	Tick            int             `json:"tick"`
}

func worldToTile(x, y int) (int, int) {
	return floorDiv(x, tileSize), floorDiv(y, tileSize)
}

func tileToWorld(tx, ty int) (int, int) {
	return tx * tileSize, ty * tileSize
}

// floorDiv divides rounding toward negative infinity, matching Python's //
// for the (rare, off-map) case of negative coordinates.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func rectanglesOverlap(ax, ay, aw, ah, bx, by, bw, bh int) bool {
	return !(ax+aw <= bx || bx+bw <= ax || ay+ah <= by || by+bh <= ay)
}

// Build computes the Observation for one NPC tick.
func Build(state EngineState) Observation {
	npcTileX, npcTileY := worldToTile(state.NPC.CenterX, state.NPC.CenterY)
	playerTileX, playerTileY := worldToTile(state.Player.CenterX, state.Player.CenterY)

	originTileX := npcTileX - halfSize
	originTileY := npcTileY - halfSize

	grid := make([]string, gridSize)
	for row := 0; row < gridSize; row++ {
		line := make([]byte, gridSize)
		for col := 0; col < gridSize; col++ {
			tileX := originTileX + col
			tileY := originTileY + row
			worldX, worldY := tileToWorld(tileX, tileY)

			char := byte('.')
			if tileOverlapsWall(worldX, worldY, state.Walls) {
				char = '#'
			} else if doorAt(tileX, tileY, state.Entities) {
				char = 'D'
			}

			// Post-pass: N/P overwrite floor or door, never a wall.
			if char != '#' {
				if tileX == playerTileX && tileY == playerTileY {
					char = 'P'
				} else if tileX == npcTileX && tileY == npcTileY {
					char = 'N'
				}
			}

			line[col] = char
		}
		grid[row] = string(line)
	}

	visible := []VisibleEntity{
		{ID: "player", Kind: "player", Pos: [2]int{playerTileX, playerTileY}},
	}
	for _, e := range state.Entities {
		etx, ety := worldToTile(e.X, e.Y)
		if etx >= originTileX && etx < originTileX+gridSize &&
			ety >= originTileY && ety < originTileY+gridSize {
			visible = append(visible, VisibleEntity{ID: e.ID, Kind: e.Kind, Pos: [2]int{etx, ety}})
		}
	}

	var lastSaid *string
	if state.Player.SpeechText != "" {
		text := state.Player.SpeechText
		lastSaid = &text
	}

	goals := state.Goals
	if len(goals) == 0 {
		goals = []string{"greet player"}
	}

	cooldowns := state.Cooldowns
	if cooldowns == nil {
		cooldowns = map[string]int{"move": 0, "interact": 0}
	}

	return Observation{
		NPC: NPCField{
			Pos:       [2]int{npcTileX, npcTileY},
			HP:        state.NPC.Health,
			State:     npcState(state.NPC),
			Inventory: renderInventory(state.NPC.Inventory),
		},
		Player: PlayerField{
			Pos:      [2]int{playerTileX, playerTileY},
			LastSaid: lastSaid,
		},
		LocalTiles: LocalTiles{
			Origin: [2]int{originTileX, originTileY},
			Grid:   grid,
		},
		VisibleEntities: visible,
		Goals:           goals,
		Cooldowns:       cooldowns,
		LastResult:      state.LastResult,
		Tick:            state.Tick,
	}
}

func tileOverlapsWall(worldX, worldY int, walls []Wall) bool {
	for _, w := range walls {
		if rectanglesOverlap(worldX, worldY, tileSize, tileSize, w.X, w.Y, w.Width, w.Height) {
			return true
		}
	}
	return false
}

func doorAt(tileX, tileY int, entities []Entity) bool {
	for _, e := range entities {
		etx, ety := worldToTile(e.X, e.Y)
		if etx == tileX && ety == tileY && strings.Contains(strings.ToLower(e.ID), "door") {
			return true
		}
	}
	return false
}

func npcState(npc NPCSnapshot) string {
	switch {
	case npc.IsPatrolling:
		return "Patrol"
	case npc.IsMoving:
		return "Approach"
	case npc.SpeechText != "":
		return "Talk"
	default:
		return "Idle"
	}
}

func renderInventory(slots []InventorySlot) []string {
	var rendered []string
	for _, s := range slots {
		if s.ItemID == "" || s.Quantity <= 0 {
			continue
		}
		rendered = append(rendered, strconv.Itoa(s.Quantity)+"x "+s.ItemID)
	}
	if len(rendered) == 0 {
		return []string{"Empty"}
	}
	return rendered
}
