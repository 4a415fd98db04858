package action

// ToolSchema is the JSON-Schema-ish description of one callable action, in
// the shape an OpenAI-compatible /chat/completions endpoint expects under
// "tools": [{"type": "function", "function": ToolSchema}].
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolSchemas returns the five tool declarations used in tool-call wire
// mode, one per Kind, in a stable order.
func ToolSchemas() []ToolSchema {
	return []ToolSchema{
		{
			Name:        string(Say),
			Description: "Say something out loud to whoever is nearby.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":      "string",
						"minLength": minSayText,
						"maxLength": maxSayText,
					},
				},
				"required":             []string{"text"},
				"additionalProperties": false,
			},
		},
		{
			Name:        string(Move),
			Description: "Move a short distance in a cardinal direction.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"direction": map[string]interface{}{
						"type": "string",
						"enum": []string{string(North), string(East), string(South), string(West)},
					},
					"distance": map[string]interface{}{
						"type":    "number",
						"minimum": minDistance,
						"maximum": maxDistance,
					},
				},
				"required":             []string{"direction", "distance"},
				"additionalProperties": false,
			},
		},
		{
			Name:        string(MoveTo),
			Description: "Walk toward a specific tile coordinate, pathfinding around obstacles.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{"type": "integer"},
					"y": map[string]interface{}{"type": "integer"},
				},
				"required":             []string{"x", "y"},
				"additionalProperties": false,
			},
		},
		{
			Name:        string(Interact),
			Description: "Interact with a nearby entity, such as a door or object.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"entity_id": map[string]interface{}{"type": "string"},
				},
				"required":             []string{"entity_id"},
				"additionalProperties": false,
			},
		},
		{
			Name:        string(TransferItem),
			Description: "Give an item from this NPC's inventory to a nearby character.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"entity_id": map[string]interface{}{"type": "string"},
					"item_id":   map[string]interface{}{"type": "string"},
				},
				"required":             []string{"entity_id", "item_id"},
				"additionalProperties": false,
			},
		},
	}
}
