package observation

import "encoding/json"

// FormatForLLM renders an Observation as indented JSON followed by a grid
// legend trailer, ready to be embedded under an "OBSERVATION:" header.
func FormatForLLM(obs Observation) (string, error) {
	b, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n\nGRID LEGEND: N=NPC, P=Player, #=wall, .=floor, D=door", nil
}
