// Package worldstate defines the per-campaign world-state document.
//
// The document is a keyed JSON object whose schema only grows: keys this
// build does not know about are carried through decode and encode untouched.
package worldstate

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/talgya/chronicle/internal/social"
	"github.com/talgya/chronicle/internal/world"
)

// Document keys.
const (
	KeyActiveFactions  = "active_factions"
	KeyPartyAffinity   = "party_affinity"
	KeyLoyaltyProgress = "loyalty_progress"
	KeyBanterCooldowns = "banter_cooldowns"
	KeyPartyRoster     = "party_roster"
	KeyArcState        = "arc_state"
	KeyLedger          = "ledger"
	KeyKnownNPCs       = "known_npcs"
	KeyNewsFeed        = "news_feed"
	KeyIntroducedNPCs  = "introduced_npcs"
	KeyIntroductionLog = "introduction_log"
	KeyLastLocationID  = "last_location_id"
	KeyLocations       = "locations"
	KeySimLastTurn     = "sim_last_turn"
	KeyPlayerID        = "player_id"
	KeyFlags           = "flags"
)

// RosterEntry is the static part of a companion record.
type RosterEntry struct {
	Name   string        `json:"name"`
	Traits social.Traits `json:"traits"`
}

// LoyaltyProgress is the mutable relationship state besides affinity.
type LoyaltyProgress struct {
	Stage      social.LoyaltyStage `json:"stage"`
	Influence  int                 `json:"influence"`
	Trust      int                 `json:"trust"`
	Respect    int                 `json:"respect"`
	Fear       int                 `json:"fear"`
	Milestones []social.Milestone  `json:"milestones,omitempty"`
}

// KnownNPC is a named non-player character the campaign has met.
type KnownNPC struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role,omitempty"`
	LocationID string `json:"location_id"`
	Summary    string `json:"summary,omitempty"`
}

// NewsItem is one public rumor in the bounded news feed.
type NewsItem struct {
	Turn      int64            `json:"turn"`
	WorldTime int64            `json:"world_time"`
	Text      string           `json:"text"`
	FactionID social.FactionID `json:"faction_id,omitempty"`
}

// Introduction records when an entity was introduced at a location.
type Introduction struct {
	NPCID      string `json:"npc_id"`
	LocationID string `json:"location_id"`
	WorldTime  int64  `json:"world_time"`
	Turn       int64  `json:"turn"`
}

// Document is the campaign's world-state document.
type Document struct {
	ActiveFactions  []social.Faction           `json:"-"`
	PartyAffinity   map[string]int             `json:"-"`
	LoyaltyProgress map[string]LoyaltyProgress `json:"-"`
	BanterCooldowns map[string]int             `json:"-"`
	PartyRoster     map[string]RosterEntry     `json:"-"`
	Arc             ArcState                   `json:"-"`
	Ledger          Ledger                     `json:"-"`
	KnownNPCs       map[string]KnownNPC        `json:"-"`
	NewsFeed        []NewsItem                 `json:"-"`
	IntroducedNPCs  map[string]string          `json:"-"` // npc id → location id of introduction
	IntroductionLog []Introduction             `json:"-"`
	LastLocationID  string                     `json:"-"`
	Locations       map[string]world.Location  `json:"-"`
	SimLastTurn     int64                      `json:"-"`
	PlayerID        string                     `json:"-"`
	Flags           map[string]string          `json:"-"`

	extra map[string]json.RawMessage
}

// New returns an empty document with every collection initialized.
func New() *Document {
	d := &Document{Arc: ArcState{Stage: ArcSetup}}
	d.ensure()
	return d
}

func (d *Document) ensure() {
	if d.PartyAffinity == nil {
		d.PartyAffinity = make(map[string]int)
	}
	if d.LoyaltyProgress == nil {
		d.LoyaltyProgress = make(map[string]LoyaltyProgress)
	}
	if d.BanterCooldowns == nil {
		d.BanterCooldowns = make(map[string]int)
	}
	if d.PartyRoster == nil {
		d.PartyRoster = make(map[string]RosterEntry)
	}
	if d.KnownNPCs == nil {
		d.KnownNPCs = make(map[string]KnownNPC)
	}
	if d.IntroducedNPCs == nil {
		d.IntroducedNPCs = make(map[string]string)
	}
	if d.Locations == nil {
		d.Locations = make(map[string]world.Location)
	}
	if d.Flags == nil {
		d.Flags = make(map[string]string)
	}
	if d.ActiveFactions == nil {
		d.ActiveFactions = []social.Faction{}
	}
	if d.NewsFeed == nil {
		d.NewsFeed = []NewsItem{}
	}
	if d.IntroductionLog == nil {
		d.IntroductionLog = []Introduction{}
	}
	if d.Arc.Stage == "" {
		d.Arc.Stage = ArcSetup
	}
	d.Ledger.ensure()
}

// fields maps each known key to the field that holds it.
func (d *Document) fields() map[string]any {
	return map[string]any{
		KeyActiveFactions:  &d.ActiveFactions,
		KeyPartyAffinity:   &d.PartyAffinity,
		KeyLoyaltyProgress: &d.LoyaltyProgress,
		KeyBanterCooldowns: &d.BanterCooldowns,
		KeyPartyRoster:     &d.PartyRoster,
		KeyArcState:        &d.Arc,
		KeyLedger:          &d.Ledger,
		KeyKnownNPCs:       &d.KnownNPCs,
		KeyNewsFeed:        &d.NewsFeed,
		KeyIntroducedNPCs:  &d.IntroducedNPCs,
		KeyIntroductionLog: &d.IntroductionLog,
		KeyLastLocationID:  &d.LastLocationID,
		KeyLocations:       &d.Locations,
		KeySimLastTurn:     &d.SimLastTurn,
		KeyPlayerID:        &d.PlayerID,
		KeyFlags:           &d.Flags,
	}
}

// MarshalJSON encodes known fields and carries unknown keys through.
// Keys are emitted in sorted order so equal documents encode identically.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.extra)+16)
	for k, raw := range d.extra {
		out[k] = raw
	}
	for k, ptr := range d.fields() {
		b, err := json.Marshal(ptr)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out[k] = b
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes known keys and preserves the rest verbatim.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode world state: %w", err)
	}
	*d = Document{}
	fields := d.fields()
	for k, v := range raw {
		ptr, ok := fields[k]
		if !ok {
			if d.extra == nil {
				d.extra = make(map[string]json.RawMessage)
			}
			d.extra[k] = append(json.RawMessage(nil), v...)
			continue
		}
		if err := json.Unmarshal(v, ptr); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	}
	d.ensure()
	return nil
}

// Parse decodes a stored document. An empty input yields a fresh document.
func Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return New(), nil
	}
	d := &Document{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	b, err := d.MarshalJSON()
	if err != nil {
		// Every field is plain data; encoding cannot fail.
		panic(fmt.Sprintf("clone world state: %v", err))
	}
	c := &Document{}
	if err := c.UnmarshalJSON(b); err != nil {
		panic(fmt.Sprintf("clone world state: %v", err))
	}
	return c
}

// Extra returns the raw value of a key this build does not model.
func (d *Document) Extra(key string) (json.RawMessage, bool) {
	v, ok := d.extra[key]
	return v, ok
}

// AdoptExtra copies the unmodeled keys of from that d does not already carry.
func (d *Document) AdoptExtra(from *Document) {
	if from == nil {
		return
	}
	for k, v := range from.extra {
		if _, ok := d.extra[k]; ok {
			continue
		}
		if d.extra == nil {
			d.extra = make(map[string]json.RawMessage, len(from.extra))
		}
		d.extra[k] = append(json.RawMessage(nil), v...)
	}
}

// Companions assembles full companion records from the split keys, sorted by id.
func (d *Document) Companions() []social.Companion {
	ids := make([]string, 0, len(d.PartyRoster))
	for id := range d.PartyRoster {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]social.Companion, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.Companion(id))
	}
	return out
}

// Companion returns one companion record.
func (d *Document) Companion(id string) social.Companion {
	r := d.PartyRoster[id]
	lp := d.LoyaltyProgress[id]
	c := social.Companion{
		ID:             id,
		Name:           r.Name,
		Traits:         r.Traits,
		Affinity:       d.PartyAffinity[id],
		Stage:          lp.Stage,
		Influence:      lp.Influence,
		Trust:          lp.Trust,
		Respect:        lp.Respect,
		Fear:           lp.Fear,
		BanterCooldown: d.BanterCooldowns[id],
		Milestones:     append([]social.Milestone(nil), lp.Milestones...),
	}
	if c.Stage == "" {
		c.Stage = social.StageFor(c.Affinity)
	}
	return c
}

// PutCompanion writes a companion record back into the split keys.
func (d *Document) PutCompanion(c social.Companion) {
	d.ensure()
	d.PartyRoster[c.ID] = RosterEntry{Name: c.Name, Traits: c.Traits}
	d.PartyAffinity[c.ID] = c.Affinity
	d.BanterCooldowns[c.ID] = c.BanterCooldown
	d.LoyaltyProgress[c.ID] = LoyaltyProgress{
		Stage:      c.Stage,
		Influence:  c.Influence,
		Trust:      c.Trust,
		Respect:    c.Respect,
		Fear:       c.Fear,
		Milestones: append([]social.Milestone(nil), c.Milestones...),
	}
}

// Location returns the named location, if registered.
func (d *Document) Location(id string) (world.Location, bool) {
	l, ok := d.Locations[id]
	return l, ok
}

// CurrentLocation returns the party's location or a bare placeholder.
func (d *Document) CurrentLocation() world.Location {
	if l, ok := d.Locations[d.LastLocationID]; ok {
		return l
	}
	return world.Location{ID: d.LastLocationID, Name: d.LastLocationID}
}
