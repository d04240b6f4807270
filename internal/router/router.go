// Package router classifies free-text player input before any mechanics run.
//
// Classification is a pure function of the text and the rule tables. A
// guardrail term (violence, theft, stealth) always forces an ACTION, even
// inside speech: "I say we stab him" is an attack, not small talk.
package router

import (
	"strings"
	"unicode"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/event"
)

// Router classifies input against compiled rule tables.
type Router struct {
	metaPrefix string
	meta       map[string]bool
	dialogue   map[string]bool
	guardrail  map[string]bool
	kinds      map[string]action.Kind
	tones      map[string]action.Tone
	stopwords  map[string]bool
}

// New compiles rules into a Router.
func New(rules Rules) *Router {
	r := &Router{
		metaPrefix: rules.MetaPrefix,
		meta:       set(rules.Meta),
		dialogue:   set(rules.Dialogue),
		guardrail:  set(rules.Guardrail),
		kinds:      make(map[string]action.Kind),
		tones:      make(map[string]action.Tone),
		stopwords:  set(rules.Stopwords),
	}
	// Walk kinds and tones in fixed order so a term listed twice always
	// resolves the same way.
	for _, k := range action.ActionKinds {
		for _, term := range rules.Kinds[string(k)] {
			term = strings.ToLower(term)
			if _, taken := r.kinds[term]; !taken {
				r.kinds[term] = k
			}
		}
	}
	for _, tone := range action.Tones {
		for _, term := range rules.Tones[string(tone)] {
			term = strings.ToLower(term)
			if _, taken := r.tones[term]; !taken {
				r.tones[term] = tone
			}
		}
	}
	return r
}

// Default returns a router over the built-in rules.
func Default() *Router {
	return New(DefaultRules())
}

// Classify reads one line of player input.
func (r *Router) Classify(text string) action.Intent {
	trimmed := strings.TrimSpace(text)
	in := action.Intent{Raw: trimmed}
	if trimmed == "" {
		return meta(in)
	}
	if r.metaPrefix != "" && strings.HasPrefix(trimmed, r.metaPrefix) {
		return meta(in)
	}

	tokens := tokenize(trimmed)
	if len(tokens) == 0 {
		return meta(in)
	}
	if r.meta[tokens[0]] {
		in.Matched = []string{tokens[0]}
		return meta(in)
	}

	quoted := strings.HasPrefix(trimmed, `"`) || strings.HasPrefix(trimmed, "“") || strings.HasPrefix(trimmed, "'")

	guardIdx, actIdx, speechIdx := -1, -1, -1
	var actKind action.Kind
	for i, tok := range tokens {
		if guardIdx < 0 && r.guardrail[tok] {
			guardIdx = i
		}
		if actIdx < 0 {
			if k, ok := r.kinds[tok]; ok {
				actIdx, actKind = i, k
			}
		}
		if speechIdx < 0 && r.dialogue[tok] {
			speechIdx = i
		}
	}

	switch {
	case guardIdx >= 0:
		in.Category = action.CategoryAction
		in.Kind = r.kindOf(tokens[guardIdx])
		in.Guardrail = quoted || speechIdx >= 0
		in.Matched = append(in.Matched, tokens[guardIdx])
		in.Target = r.target(tokens, guardIdx)
	case quoted || (speechIdx >= 0 && (actIdx < 0 || speechIdx < actIdx)):
		in.Category = action.CategoryDialogueOnly
		in.Kind = action.KindDialogue
		if speechIdx >= 0 {
			in.Matched = append(in.Matched, tokens[speechIdx])
			in.Target = r.target(tokens, speechIdx)
		}
	case actIdx >= 0:
		in.Category = action.CategoryAction
		in.Kind = actKind
		in.Matched = append(in.Matched, tokens[actIdx])
		in.Target = r.target(tokens, actIdx)
	default:
		in.Category = action.CategoryAction
		in.Kind = action.KindGeneric
		in.Target = r.target(tokens, -1)
	}

	in.RequiresResolution = in.Category == action.CategoryAction
	in.Tone = r.tone(tokens, in.Kind)
	return in
}

func (r *Router) kindOf(term string) action.Kind {
	if k, ok := r.kinds[term]; ok {
		return k
	}
	return action.KindAttack
}

func (r *Router) tone(tokens []string, kind action.Kind) action.Tone {
	for _, tok := range tokens {
		if t, ok := r.tones[tok]; ok {
			return t
		}
	}
	switch kind {
	case action.KindAttack, action.KindSteal:
		return action.ToneRenegade
	case action.KindSearch:
		return action.ToneInvestigate
	}
	return action.ToneNeutral
}

// target joins the content words after position idx.
func (r *Router) target(tokens []string, idx int) string {
	var words []string
	for _, tok := range tokens[idx+1:] {
		if r.stopwords[tok] {
			continue
		}
		words = append(words, tok)
	}
	return strings.Join(words, " ")
}

// DialogueOutcome synthesizes the outcome of a speech-only turn: the fixed
// dialogue time cost and the spoken line, with no dice and no state change.
func DialogueOutcome(in action.Intent, speakerID string) action.Outcome {
	return action.Outcome{
		Kind:            action.KindDialogue,
		Tone:            in.Tone,
		Risk:            action.RiskLow,
		Success:         true,
		TimeCostMinutes: action.TimeCost(action.KindDialogue),
		Facts: []event.Draft{
			event.Visible(event.Dialogue{Speaker: speakerID, Text: in.Raw}),
		},
		Summary: "spoke",
	}
}

// MetaOutcome is the zero-cost outcome of an out-of-character command.
func MetaOutcome(in action.Intent) action.Outcome {
	return action.Outcome{
		Kind:            action.KindMeta,
		Tone:            action.ToneNeutral,
		Risk:            action.RiskLow,
		Success:         true,
		TimeCostMinutes: action.TimeCost(action.KindMeta),
		Summary:         "meta",
	}
}

func meta(in action.Intent) action.Intent {
	in.Category = action.CategoryMeta
	in.Kind = action.KindMeta
	in.Tone = action.ToneNeutral
	return in
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func set(terms []string) map[string]bool {
	m := make(map[string]bool, len(terms))
	for _, t := range terms {
		m[strings.ToLower(t)] = true
	}
	return m
}
