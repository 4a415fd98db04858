// Package action defines the discriminated-union NPC action contract and
// its strict parser. An NPC turn always produces at most one Action, chosen
// by an LLM and validated here before it ever touches the game engine.
package action

// Kind names one of the five actions an NPC may take on a given tick.
type Kind string

const (
	Say          Kind = "say"
	Move         Kind = "move"
	MoveTo       Kind = "move_to"
	Interact     Kind = "interact"
	TransferItem Kind = "transfer_item"
)

// Direction is one of the four cardinal directions a Move action travels.
type Direction string

const (
	North Direction = "N"
	East  Direction = "E"
	South Direction = "S"
	West  Direction = "W"
)

// SayArgs holds the arguments for a Say action.
type SayArgs struct {
	Text string `json:"text"`
}

// MoveArgs holds the arguments for a Move action.
type MoveArgs struct {
	Direction Direction `json:"direction"`
	Distance  float64   `json:"distance"`
}

// MoveToArgs holds the arguments for a MoveTo action.
type MoveToArgs struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InteractArgs holds the arguments for an Interact action.
type InteractArgs struct {
	EntityID string `json:"entity_id"`
}

// TransferItemArgs holds the arguments for a TransferItem action.
type TransferItemArgs struct {
	EntityID string `json:"entity_id"`
	ItemID   string `json:"item_id"`
}

// Action is the discriminated union itself: Kind selects which of the Args
// fields is populated; the rest are left zero. Exactly one of these is
// relevant per action and the parser guarantees that invariant.
type Action struct {
	Kind Kind

	Say          SayArgs
	Move         MoveArgs
	MoveTo       MoveToArgs
	Interact     InteractArgs
	TransferItem TransferItemArgs
}

const (
	minSayText  = 1
	maxSayText  = 100
	minDistance = 0.1
	maxDistance = 5.0
)

var validDirections = map[Direction]bool{
	North: true, East: true, South: true, West: true,
}
