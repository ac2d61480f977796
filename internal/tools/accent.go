package tools

import (
	"fmt"
	"sort"
	"strings"
)

// accents maps the caller-facing accent name to the Polly voice ID it
// selects. Ground truth: original_source/gpt_functions/accent.py.
var accents = map[string]string{
	"Australian":      "Olivia",
	"British":         "Brian",
	"Indian":          "Kajal",
	"Irish":           "Niamh",
	"New Zealander":   "Aria",
	"South African":   "Ayanda",
	"American":        "Stephen",
	"Finnish":         "Suvi",
	"French":          "Remi",
	"German":          "Daniel",
	"Italian":         "Adriano",
	"Japanese":        "Takumi",
	"Polish":          "Ola",
	"Spanish":         "Sergio",
	"Swedish":         "Elin",
}

func sortedAccentNames() []string {
	names := make([]string, 0, len(accents))
	for name := range accents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VoiceSetter is the single-writer cell the change_accent tool writes the
// process-wide TTS voice identifier through.
type VoiceSetter interface {
	SetVoice(voiceID string)
}

// NewChangeAccentTool builds the change_accent tool descriptor. Calling it
// sets the TTS voice through voices, demonstrating the qualified-name
// dispatch path end to end ("rotarygpt__change_accent").
func NewChangeAccentTool(voices VoiceSetter) Descriptor {
	names := sortedAccentNames()

	return Descriptor{
		QualifiedName: "rotarygpt__change_accent",
		Description:   "Changes the agent's accent.",
		Parameters: Schema{
			Type: "object",
			Properties: map[string]Property{
				"accent": {
					Type:        "string",
					Description: fmt.Sprintf("The accent to change to. Needs to be one of %s", strings.Join(names, ", ")),
				},
			},
			Required: []string{"accent"},
		},
		Handler: func(args map[string]interface{}) string {
			raw, ok := args["accent"]
			if !ok {
				return "Accent parameter is required"
			}
			accent, ok := raw.(string)
			if !ok {
				return "Accent parameter is required"
			}
			voiceID, ok := accents[accent]
			if !ok {
				return fmt.Sprintf("Accent needs to be one of %s", strings.Join(names, ", "))
			}
			voices.SetVoice(voiceID)
			return fmt.Sprintf("The phone agent's accent is now %s. The phone agent's nationality is also %s. Please keep using English language.", accent, accent)
		},
	}
}
