// Turn narration: resolved outcomes into bounded second-person prose.
package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/talgya/chronicle/internal/action"
)

// Narration bounds.
const (
	MaxSentences = 5
	MaxWords     = 120
)

const narratorSystem = `You are the narrator of a tabletop-style role-playing campaign. Narrate the player's turn in second person, present tense.

The mechanical result is final: describe a success as a success and a failure as a failure. Never invent new characters, items or locations beyond those listed. Respect every line under MUST RESPECT. Write at most 5 sentences and 120 words. Do not list choices, do not address the player out of character.`

// Storyteller narrates scenes and suggests choices through a Client.
type Storyteller struct {
	client    *Client
	maxTokens int
}

// NewStoryteller returns a storyteller. maxTokens <= 0 takes a default.
func NewStoryteller(client *Client, maxTokens int) *Storyteller {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Storyteller{client: client, maxTokens: maxTokens}
}

// Narrate asks the model for turn prose. The result is already bounded.
func (s *Storyteller) Narrate(ctx context.Context, scene SceneContext) (string, error) {
	if !s.client.Enabled() {
		return "", ErrDisabled
	}
	text, err := s.client.Complete(ctx, narratorSystem, buildScenePrompt(scene), s.maxTokens)
	if err != nil {
		return "", fmt.Errorf("narrate: %w", err)
	}
	text = BoundNarration(text)
	if text == "" {
		return "", fmt.Errorf("narrate: empty narration")
	}
	return text, nil
}

// BoundNarration trims text to MaxSentences sentences and MaxWords words.
func BoundNarration(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	sentences := splitSentences(text)
	if len(sentences) > MaxSentences {
		sentences = sentences[:MaxSentences]
	}
	text = strings.Join(sentences, " ")

	words := strings.Fields(text)
	if len(words) <= MaxWords {
		return text
	}
	cut := strings.Join(words[:MaxWords], " ")
	if i := strings.LastIndexAny(cut, ".!?"); i > len(cut)/2 {
		return cut[:i+1]
	}
	return strings.TrimRightFunc(cut, func(r rune) bool { return unicode.IsPunct(r) && r != '"' }) + "."
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + 1
		for end < len(runes) && (runes[end] == '"' || runes[end] == '\'' || runes[end] == ')') {
			end++
		}
		if end < len(runes) && runes[end] != ' ' {
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// FallbackNarration builds plain narration from the scene alone.
func FallbackNarration(s SceneContext) string {
	var parts []string

	place := s.Location.Name
	if place == "" {
		place = "the road"
	}
	switch {
	case s.Outcome == nil && s.Intent.Category == action.CategoryDialogueOnly:
		parts = append(parts, fmt.Sprintf("Your words hang in the air of %s.", place))
	case s.Outcome == nil:
		parts = append(parts, fmt.Sprintf("A moment passes in %s.", place))
	case s.Outcome.Traveled():
		parts = append(parts, fmt.Sprintf("You arrive at %s as the hour turns %s.", place, s.Period))
	case s.Outcome.Success:
		parts = append(parts, sentence(s.Outcome.Summary, "You manage it."))
	default:
		parts = append(parts, sentence(s.Outcome.Summary, "It does not go your way."))
	}

	if s.Introduced != "" {
		parts = append(parts, fmt.Sprintf("%s draws your attention.", s.Introduced))
	} else if len(s.Present) > 0 {
		parts = append(parts, fmt.Sprintf("%s %s nearby.", s.Present[0], verbFor(len(s.Present))))
	}
	if len(s.Banter) > 0 {
		parts = append(parts, s.Banter[0])
	}
	if len(s.Rumors) > 0 {
		parts = append(parts, "Word travels: "+sentence(s.Rumors[0], ""))
	}
	return BoundNarration(strings.Join(parts, " "))
}

// MetaNarration is the line for an out-of-character turn, which spends no
// world time.
func MetaNarration(s SceneContext) string {
	place := s.Location.Name
	if place == "" {
		place = "the road"
	}
	clock := s.Clock
	if clock == "" {
		clock = "the same hour"
	}
	return fmt.Sprintf("The world holds still in %s. It is still %s.", place, clock)
}

func verbFor(n int) string {
	if n > 1 {
		return "and others linger"
	}
	return "lingers"
}

func sentence(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if !strings.ContainsAny(s[len(s)-1:], ".!?") {
		s += "."
	}
	return s
}
