package llm

import (
	"strings"

	"npccore/internal/observation"
)

const systemReminder = "SYSTEM_REMINDER: Output one JSON object. No extra text. If unsure, ask via say."

// BuildUserMessage assembles the user turn in the fixed order both wire
// modes share: the literal system reminder, an optional recent-conversation
// block, the observation, and a trailing player message when one is present.
func BuildUserMessage(obs observation.Observation, memory string) (string, error) {
	var b strings.Builder
	b.WriteString(systemReminder)
	b.WriteString("\n")

	if strings.TrimSpace(memory) != "" {
		b.WriteString("\n")
		b.WriteString(memory)
		b.WriteString("\n")
	}

	obsJSON, err := observation.FormatForLLM(obs)
	if err != nil {
		return "", err
	}
	b.WriteString("\nOBSERVATION:\n")
	b.WriteString(obsJSON)
	b.WriteString("\n")

	if obs.Player.LastSaid != nil && *obs.Player.LastSaid != "" {
		b.WriteString("\nPLAYER_MESSAGE:\n\"")
		b.WriteString(*obs.Player.LastSaid)
		b.WriteString("\"")
	}

	return b.String(), nil
}

const defaultSystemPrompt = `You are an NPC in a 2D game. Respond to the player and your surroundings by choosing exactly one action: say, move, move_to, interact, or transfer_item. Always reply with a single JSON object of the form {"action": "<name>", "args": {...}}. Never include any text outside that object.`
