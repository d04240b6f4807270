package action

import "github.com/talgya/chronicle/internal/event"

// Modifier is one named adjustment to a difficulty class.
type Modifier struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Travel describes a resolved change of location.
type Travel struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Outcome is the mechanical result of a turn's action.
type Outcome struct {
	Kind     Kind     `json:"kind"`
	Tone     Tone     `json:"tone"`
	Risk     Risk     `json:"risk"`
	Success  bool     `json:"success"`
	Natural  int      `json:"natural,omitempty"` // raw die face
	Roll     int      `json:"roll,omitempty"`    // die plus stat bonus
	DC       int      `json:"dc,omitempty"`
	Critical Critical `json:"critical,omitempty"`

	Modifiers       []Modifier `json:"modifiers,omitempty"`
	TimeCostMinutes int        `json:"time_cost_minutes"`
	StressDelta     int        `json:"stress_delta"`

	Facts  []event.Draft `json:"facts,omitempty"`
	Travel *Travel       `json:"travel,omitempty"`

	// AffinityOverrides replaces the relationship engine's computed delta
	// for the named companions.
	AffinityOverrides map[string]int `json:"affinity_overrides,omitempty"`

	Summary string `json:"summary"`
}

// Traveled reports whether the outcome moved the party.
func (o Outcome) Traveled() bool {
	return o.Travel != nil && o.Travel.To != "" && o.Travel.To != o.Travel.From
}

// DCTotal sums the modifiers.
func DCTotal(base int, mods []Modifier) int {
	total := base
	for _, m := range mods {
		total += m.Value
	}
	return total
}
