package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talgya/chronicle/internal/action"
)

const suggesterSystem = `You suggest what the player of a role-playing campaign might do next.

Respond ONLY with a JSON array of objects, each with:
- "text": a short imperative action, under 12 words
- "tone": one of "PARAGON", "RENEGADE", "INVESTIGATE", "NEUTRAL"
- "risk": one of "LOW", "MODERATE", "HIGH"

Offer distinct options that fit the scene. Do not number them.`

// Suggest asks the model for n choices. Callers still run NormalizeChoices.
func (s *Storyteller) Suggest(ctx context.Context, scene SceneContext, n int) ([]Choice, error) {
	if !s.client.Enabled() {
		return nil, ErrDisabled
	}
	prompt := buildScenePrompt(scene) + fmt.Sprintf("\nSuggest exactly %d choices as a JSON array.", n)
	resp, err := s.client.Complete(ctx, suggesterSystem, prompt, s.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	return parseChoices(resp)
}

func parseChoices(response string) ([]Choice, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	var raw []struct {
		Text string `json:"text"`
		Tone string `json:"tone"`
		Risk string `json:"risk"`
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("parse choices: %w", err)
	}
	out := make([]Choice, 0, len(raw))
	for _, r := range raw {
		out = append(out, Choice{
			Text: strings.TrimSpace(r.Text),
			Tone: action.Tone(strings.ToUpper(strings.TrimSpace(r.Tone))),
			Risk: action.Risk(strings.ToUpper(strings.TrimSpace(r.Risk))),
		})
	}
	return out, nil
}

// NormalizeChoices returns exactly n choices: valid, distinct entries of in
// first, then defaults for the scene.
func NormalizeChoices(in []Choice, n int, scene SceneContext) []Choice {
	if n <= 0 {
		return []Choice{}
	}
	out := make([]Choice, 0, n)
	seen := make(map[string]bool, n)
	add := func(c Choice) {
		key := strings.ToLower(c.Text)
		if len(out) >= n || seen[key] || !usableChoice(c) {
			return
		}
		seen[key] = true
		out = append(out, c)
	}
	for _, c := range in {
		add(c)
	}
	for _, c := range DefaultChoices(scene) {
		add(c)
	}
	for i := 1; len(out) < n; i++ {
		add(Choice{Text: fmt.Sprintf("Wait and watch (%d)", i), Tone: action.ToneNeutral, Risk: action.RiskLow})
	}
	return out
}

// UsableChoices counts the entries of in that NormalizeChoices keeps, up to n.
func UsableChoices(in []Choice, n int) int {
	seen := make(map[string]bool, len(in))
	kept := 0
	for _, c := range in {
		key := strings.ToLower(c.Text)
		if kept >= n || seen[key] || !usableChoice(c) {
			continue
		}
		seen[key] = true
		kept++
	}
	return kept
}

func usableChoice(c Choice) bool {
	return c.Text != "" && c.Tone.Valid() && c.Risk.Valid()
}

// DefaultChoices is a deterministic menu built from the scene.
func DefaultChoices(s SceneContext) []Choice {
	var out []Choice
	if s.Introduced != "" {
		out = append(out, Choice{Text: "Greet " + s.Introduced, Tone: action.ToneParagon, Risk: action.RiskLow})
	} else if len(s.Present) > 0 {
		out = append(out, Choice{Text: "Talk to " + s.Present[0], Tone: action.ToneParagon, Risk: action.RiskLow})
	}
	if len(s.Ledger.OpenThreads) > 0 {
		out = append(out, Choice{Text: "Follow up: " + s.Ledger.OpenThreads[0], Tone: action.ToneInvestigate, Risk: action.RiskModerate})
	}
	out = append(out,
		Choice{Text: "Search the area", Tone: action.ToneInvestigate, Risk: action.RiskLow},
		Choice{Text: "Ask around for news", Tone: action.ToneNeutral, Risk: action.RiskLow},
	)
	if s.Location.Armed {
		out = append(out, Choice{Text: "Slip past the guards", Tone: action.ToneRenegade, Risk: action.RiskHigh})
	} else {
		out = append(out, Choice{Text: "Pocket something valuable", Tone: action.ToneRenegade, Risk: action.RiskModerate})
	}
	if len(s.Location.Neighbors) > 0 {
		out = append(out, Choice{Text: "Travel to " + s.Location.Neighbors[0], Tone: action.ToneNeutral, Risk: action.RiskModerate})
	}
	out = append(out, Choice{Text: "Rest for a while", Tone: action.ToneNeutral, Risk: action.RiskLow})
	return out
}
