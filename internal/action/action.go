// Package action holds the vocabulary shared by every turn stage: how player
// input is categorized, the moral tone and risk of an action, and the
// mechanical outcome the resolver produces.
package action

// Category is the router's coarse classification of player input.
type Category string

const (
	CategoryMeta         Category = "META"
	CategoryDialogueOnly Category = "DIALOGUE_ONLY"
	CategoryAction       Category = "ACTION"
)

// Kind is the specific action being attempted.
type Kind string

const (
	KindAttack   Kind = "attack"
	KindSteal    Kind = "steal"
	KindSneak    Kind = "sneak"
	KindTravel   Kind = "travel"
	KindSearch   Kind = "search"
	KindSocial   Kind = "social"
	KindRest     Kind = "rest"
	KindGeneric  Kind = "generic"
	KindDialogue Kind = "dialogue"
	KindMeta     Kind = "meta"
)

// ActionKinds lists the kinds that can be resolved mechanically, in a stable order.
var ActionKinds = []Kind{KindAttack, KindSteal, KindSneak, KindTravel, KindSearch, KindSocial, KindRest, KindGeneric}

// Tone is the moral flavor of an action or suggested choice.
type Tone string

const (
	ToneParagon     Tone = "PARAGON"
	ToneRenegade    Tone = "RENEGADE"
	ToneInvestigate Tone = "INVESTIGATE"
	ToneNeutral     Tone = "NEUTRAL"
)

// Tones lists every tone in a stable order.
var Tones = []Tone{ToneParagon, ToneRenegade, ToneInvestigate, ToneNeutral}

// Valid reports whether t is one of the known tones.
func (t Tone) Valid() bool {
	switch t {
	case ToneParagon, ToneRenegade, ToneInvestigate, ToneNeutral:
		return true
	}
	return false
}

// Risk is a coarse danger tier.
type Risk string

const (
	RiskLow      Risk = "LOW"
	RiskModerate Risk = "MODERATE"
	RiskHigh     Risk = "HIGH"
)

// Risks lists every risk tier in a stable order.
var Risks = []Risk{RiskLow, RiskModerate, RiskHigh}

// Valid reports whether r is one of the known tiers.
func (r Risk) Valid() bool {
	switch r {
	case RiskLow, RiskModerate, RiskHigh:
		return true
	}
	return false
}

// Critical tags a natural 20 or natural 1.
type Critical string

const (
	CriticalNone    Critical = ""
	CriticalSuccess Critical = "critical_success"
	CriticalFailure Critical = "critical_failure"
)

// Intent is the router's reading of one line of player input.
type Intent struct {
	Raw                string   `json:"raw"`
	Category           Category `json:"category"`
	Kind               Kind     `json:"kind"`
	Tone               Tone     `json:"tone"`
	Target             string   `json:"target,omitempty"`
	RequiresResolution bool     `json:"requires_resolution"`
	Guardrail          bool     `json:"guardrail,omitempty"` // speech overridden by violence, theft or stealth
	Matched            []string `json:"matched,omitempty"`
}
