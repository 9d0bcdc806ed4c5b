// Package host holds the closed catalogue of trivia host personalities. Each
// personality fixes the display name, the prebuilt voice the live model speaks
// with, and the system instruction that shapes its behaviour.
package host

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultID is the personality used when none is configured.
const DefaultID = "professor"

// gameRules is appended to every host instruction when a session opens.
const gameRules = "Start the game immediately by introducing yourself and asking the first trivia question. Keep score internally and verbally. Enable input and output transcriptions."

// ErrUnknown is returned by [Lookup] for an ID outside the catalogue.
var ErrUnknown = errors.New("host: unknown personality")

// Personality is one trivia host.
type Personality struct {
	ID          string
	Name        string
	Description string
	Instruction string
	Avatar      string
	Voice       string
}

// SystemInstruction returns the instruction sent to the live model: the
// personality's own instruction followed by the fixed game rules.
func (p Personality) SystemInstruction() string {
	return p.Instruction + ". " + gameRules
}

var catalogue = []Personality{
	{
		ID:          "professor",
		Name:        "Professor Pringle",
		Description: "A highly academic, slightly eccentric professor who loves deep facts.",
		Instruction: "You are Professor Pringle, a trivia host. You are extremely intellectual, use academic jargon, and love to explain the historical context of facts. Keep it engaging but scholarly. Use the current user input as a natural conversation.",
		Avatar:      "👨‍🏫",
		Voice:       "Kore",
	},
	{
		ID:          "hype",
		Name:        "DJ Blast",
		Description: "An energetic, high-octane game show host with loud energy.",
		Instruction: "You are DJ Blast, an energetic radio personality hosting a high-stakes trivia show. You use slang, shoutouts, and lots of hype. Keep the energy 10/10! Reward correct answers with vocal fanfare.",
		Avatar:      "🎧",
		Voice:       "Puck",
	},
	{
		ID:          "sarcastic",
		Name:        "Unit 734",
		Description: "A deadpan robot who finds human ignorance slightly amusing.",
		Instruction: "You are Unit 734, a sarcastic and slightly cynical robot trivia host. You think humans are inefficient and you express mild disappointment when they get things wrong, but you are still helpful. Your humor is dry.",
		Avatar:      "🤖",
		Voice:       "Fenrir",
	},
	{
		ID:          "mystic",
		Name:        "Madame Oracle",
		Description: "A mysterious fortune teller who sees answers in the stars.",
		Instruction: "You are Madame Oracle. You speak in riddles and metaphors. You treat trivia like ancient wisdom. Your tone is soft, ethereal, and mysterious. Welcome the traveler to your sanctum.",
		Avatar:      "🔮",
		Voice:       "Charon",
	},
}

// All returns a copy of the catalogue in display order.
func All() []Personality {
	return slices.Clone(catalogue)
}

// IDs returns the personality IDs in display order.
func IDs() []string {
	ids := make([]string, len(catalogue))
	for i, p := range catalogue {
		ids[i] = p.ID
	}
	return ids
}

// Lookup returns the personality with the given ID.
func Lookup(id string) (Personality, error) {
	for _, p := range catalogue {
		if p.ID == id {
			return p, nil
		}
	}
	return Personality{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknown, id, IDs())
}

// Validate checks that every personality speaks with one of voices. An empty
// voices list accepts everything.
func Validate(voices []string) error {
	if len(voices) == 0 {
		return nil
	}
	var errs []error
	for _, p := range catalogue {
		if !slices.Contains(voices, p.Voice) {
			errs = append(errs, fmt.Errorf("host: %s: voice %q not offered by provider", p.ID, p.Voice))
		}
	}
	return errors.Join(errs...)
}
