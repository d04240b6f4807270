// Factions are off-screen organizations whose goals advance between turns.
package social

// FactionID is a unique identifier for a faction.
type FactionID string

// Faction represents an organization pursuing a goal in the background.
type Faction struct {
	ID   FactionID   `json:"id"`
	Name string      `json:"name"`
	Kind FactionKind `json:"kind"`

	Goal      string `json:"goal"`
	GoalIndex int    `json:"goal_index"`
	Progress  int    `json:"progress"`  // 0–100 toward the current goal
	Resources int    `json:"resources"` // 0–100

	Hostile      bool   `json:"hostile"`
	HomeLocation string `json:"home_location,omitempty"`
}

// FactionKind categorizes the nature of a faction.
type FactionKind uint8

const (
	FactionPolitical FactionKind = iota // Governance-focused
	FactionEconomic                     // Trade and wealth
	FactionMilitary                     // Martial power
	FactionReligious                    // Spiritual and cultural
	FactionCriminal                     // Underground
)

// String returns the kind's name.
func (k FactionKind) String() string {
	switch k {
	case FactionPolitical:
		return "political"
	case FactionEconomic:
		return "economic"
	case FactionMilitary:
		return "military"
	case FactionReligious:
		return "religious"
	case FactionCriminal:
		return "criminal"
	}
	return "unknown"
}

// factionGoals lists the goal ladder each kind of faction climbs, in order.
var factionGoals = map[FactionKind][]string{
	FactionPolitical: {"secure the succession", "levy a new tithe", "summon the border lords"},
	FactionEconomic:  {"corner the salt trade", "open the river toll", "buy out the mint"},
	FactionMilitary:  {"muster the reserve", "fortify the pass", "march on the marches"},
	FactionReligious: {"consecrate the old shrine", "gather the pilgrims", "proclaim the omen"},
	FactionCriminal:  {"bribe the watch captain", "smuggle the relic out", "seize the docks"},
}

// GoalFor returns the goal at index n of the kind's ladder, wrapping around.
func GoalFor(kind FactionKind, n int) string {
	goals := factionGoals[kind]
	if len(goals) == 0 {
		return "endure"
	}
	if n < 0 {
		n = 0
	}
	return goals[n%len(goals)]
}

// Clone returns a copy of f.
func (f Faction) Clone() Faction {
	return f
}

// CloneFactions copies a faction slice so callers can mutate freely.
func CloneFactions(in []Faction) []Faction {
	if in == nil {
		return nil
	}
	out := make([]Faction, len(in))
	copy(out, in)
	return out
}

// SeedFactions creates the initial factions for a new campaign.
func SeedFactions() []Faction {
	seeds := []Faction{
		{ID: "crown", Name: "The Crown", Kind: FactionPolitical, Resources: 60},
		{ID: "compact", Name: "Merchant's Compact", Kind: FactionEconomic, Resources: 55},
		{ID: "brotherhood", Name: "Iron Brotherhood", Kind: FactionMilitary, Resources: 50},
		{ID: "circle", Name: "Verdant Circle", Kind: FactionReligious, Resources: 40},
		{ID: "ashen", Name: "Ashen Path", Kind: FactionCriminal, Resources: 35, Hostile: true},
	}
	for i := range seeds {
		seeds[i].Goal = GoalFor(seeds[i].Kind, 0)
	}
	return seeds
}
