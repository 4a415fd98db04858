// Package engine defines the narrow surface a controller needs from a game
// world: positions, movement, speech, and inventory. Anything that
// implements these interfaces - a real tile engine or a toy one built for
// tests - can host an NPC controller.
package engine

// Rect is an axis-aligned bounding box in world-space pixels, matching the
// pygame Rect shape the original engine was built around: a top-left
// (X, Y) plus a size, with Center derived from it.
type Rect struct {
	X, Y, Width, Height int
}

// CenterX returns the horizontal center of the rectangle.
func (r Rect) CenterX() int { return r.X + r.Width/2 }

// CenterY returns the vertical center of the rectangle.
func (r Rect) CenterY() int { return r.Y + r.Height/2 }

// Mover is anything that occupies a Rect and can attempt to move by a
// pixel delta, clipping against walls and other characters.
type Mover interface {
	Position() Rect
	Speed() int
	// Move attempts to shift by (dx, dy), resolving collisions against
	// walls and the given characters. It reports the position actually
	// reached, which may equal the starting position if blocked.
	Move(dx, dy float64, walls []Rect, others []Character) Rect
}

// Speaker can produce a line of speech that an observer picks up.
type Speaker interface {
	Say(text string)
}

// InventorySlot is one stack of a single item kind.
type InventorySlot struct {
	ItemID   string
	Quantity int
}

// Inventory holds item stacks with a transfer protocol: RemoveItem reports
// how many units it actually took (never more than are held, 0 if the item
// is absent), and adding to a full inventory is rejected so the caller can
// roll the transfer back.
type Inventory interface {
	HasItem(itemID string) bool
	Items() []InventorySlot
	RemoveItem(itemID string, qty int) int
	AddItem(itemID string, qty int) bool
}

// Character is any entity in the world a controller might target with
// interact or transfer_item - typically the player or another NPC.
type Character interface {
	ID() string
	Position() Rect
}

// NPC is the character a Controller drives: it moves, speaks, and carries
// items.
type NPC interface {
	Character
	Mover
	Speaker
	Inventory
	// Health returns current hit points, surfaced to the LLM verbatim as
	// observation.NPCField.HP.
	Health() int
}

// Entity is a non-character object visible in the world (a door, a chest,
// a sign) that an NPC can interact with but not move or talk as.
type Entity struct {
	ID   string
	Kind string
	X, Y int
}

// TileWorld supplies the static layout a controller's observation and
// navigation need: walls and entities currently present.
type TileWorld interface {
	Walls() []Rect
	Entities() []Entity
}
