package action

import "encoding/json"

// Serialize renders an Action back to the {"action": ..., "args": ...} wire
// shape, e.g. for synthesizing a JSON action string out of a tool call.
func Serialize(a *Action) (string, error) {
	var args interface{}
	switch a.Kind {
	case Say:
		args = a.Say
	case Move:
		args = a.Move
	case MoveTo:
		args = a.MoveTo
	case Interact:
		args = a.Interact
	case TransferItem:
		args = a.TransferItem
	default:
		args = struct{}{}
	}

	out := struct {
		Action Kind        `json:"action"`
		Args   interface{} `json:"args"`
	}{Action: a.Kind, Args: args}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
