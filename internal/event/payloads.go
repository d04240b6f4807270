package event

import (
	"github.com/talgya/chronicle/internal/social"
	"github.com/talgya/chronicle/internal/world"
	"github.com/talgya/chronicle/internal/worldstate"
)

// Character roles.
const (
	RolePlayer = "player"
	RoleNPC    = "npc"
)

// CharacterCreated registers the player or a named NPC at campaign setup.
type CharacterCreated struct {
	CharacterID string         `json:"character_id"`
	Name        string         `json:"name"`
	Role        string         `json:"role"`
	LocationID  string         `json:"location_id"`
	Stats       map[string]int `json:"stats,omitempty"`
	Health      int            `json:"health"`
	Summary     string         `json:"summary,omitempty"`
	// Occupation is an NPC's standing in the world, e.g. "innkeeper".
	Occupation  string         `json:"occupation,omitempty"`
}

// CompanionJoined adds a companion to the party.
type CompanionJoined struct {
	CompanionID string        `json:"companion_id"`
	Name        string        `json:"name"`
	Traits      social.Traits `json:"traits"`
	Affinity    int           `json:"affinity"`
}

// LocationRegistered adds a location to the campaign map.
type LocationRegistered struct {
	Location world.Location `json:"location"`
}

// Move relocates a character.
type Move struct {
	CharacterID string `json:"character_id"`
	From        string `json:"from"`
	To          string `json:"to"`
}

// Damage reduces a character's health.
type Damage struct {
	CharacterID string `json:"character_id"`
	Amount      int    `json:"amount"`
	Source      string `json:"source,omitempty"`
}

// ItemChange adds or removes inventory.
type ItemChange struct {
	CharacterID string `json:"character_id"`
	Item        string `json:"item"`
	Delta       int    `json:"delta"`
}

// FlagSet records a world fact as a key/value flag.
type FlagSet struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// StressChange updates a character's psychological state. Stress and Mood
// carry the resulting values so projections stay order-independent.
type StressChange struct {
	CharacterID string `json:"character_id"`
	Delta       int    `json:"delta"`
	Stress      int    `json:"stress"`
	Mood        string `json:"mood"`
}

// Rumor is a public piece of off-screen news.
type Rumor struct {
	Text       string           `json:"text"`
	FactionID  social.FactionID `json:"faction_id,omitempty"`
	LocationID string           `json:"location_id,omitempty"`
	WorldTime  int64            `json:"world_time"`
}

// Dialogue is something a character said.
type Dialogue struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Narration is the committed prose for a turn.
type Narration struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback,omitempty"`
}

// NPCIntroduced brings a new entity into the scene.
type NPCIntroduced struct {
	CharacterID string `json:"character_id"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Summary     string `json:"summary,omitempty"`
	LocationID  string `json:"location_id"`
	Source      string `json:"source"` // template or procedural
	TemplateID  string `json:"template_id,omitempty"`
	WorldTime   int64  `json:"world_time"`
}

// FactionTick snapshots every faction after a simulator run.
type FactionTick struct {
	Factions     []social.Faction `json:"factions"`
	Trigger      string           `json:"trigger"` // setup, tick or travel
	TicksCrossed int64            `json:"ticks_crossed"`
	WorldTime    int64            `json:"world_time"`
}

// RelationshipUpdate carries a companion's full record after this turn.
type RelationshipUpdate struct {
	Companion     social.Companion    `json:"companion"`
	Delta         int                 `json:"delta"`
	PreviousStage social.LoyaltyStage `json:"previous_stage"`
	Overridden    bool                `json:"overridden,omitempty"`
}

// RelationshipMilestone marks a one-shot relationship beat.
type RelationshipMilestone struct {
	CompanionID string              `json:"companion_id"`
	Milestone   social.Milestone    `json:"milestone"`
	Stage       social.LoyaltyStage `json:"stage"`
	Affinity    int                 `json:"affinity"`
}

// Banter is a companion's unprompted remark.
type Banter struct {
	CompanionID string `json:"companion_id"`
	Line        string `json:"line"`
}

// ArcProgress records the arc tracker's state after this turn.
type ArcProgress struct {
	State        worldstate.ArcState `json:"state"`
	Transitioned bool                `json:"transitioned,omitempty"`
	From         worldstate.ArcStage `json:"from,omitempty"`
}

// WorldTimeAdvance records how far the world clock moved.
type WorldTimeAdvance struct {
	From    int64 `json:"from"`
	To      int64 `json:"to"`
	Minutes int   `json:"minutes"`
}

func (CharacterCreated) EventType() Type      { return TypeCharacterCreated }
func (CompanionJoined) EventType() Type       { return TypeCompanionJoined }
func (LocationRegistered) EventType() Type    { return TypeLocationRegistered }
func (Move) EventType() Type                  { return TypeMove }
func (Damage) EventType() Type                { return TypeDamage }
func (ItemChange) EventType() Type            { return TypeItemChange }
func (FlagSet) EventType() Type               { return TypeFlagSet }
func (StressChange) EventType() Type          { return TypeStressChange }
func (Rumor) EventType() Type                 { return TypeRumor }
func (Dialogue) EventType() Type              { return TypeDialogue }
func (Narration) EventType() Type             { return TypeNarration }
func (NPCIntroduced) EventType() Type         { return TypeNPCIntroduced }
func (FactionTick) EventType() Type           { return TypeFactionTick }
func (RelationshipUpdate) EventType() Type    { return TypeRelationshipUpdate }
func (RelationshipMilestone) EventType() Type { return TypeRelationshipMilestone }
func (Banter) EventType() Type                { return TypeBanter }
func (ArcProgress) EventType() Type           { return TypeArcProgress }
func (WorldTimeAdvance) EventType() Type      { return TypeWorldTimeAdvance }
