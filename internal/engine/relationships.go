// Relationship dynamics: companion approval and loyalty milestones.
package engine

import (
	"sort"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/entropy"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/social"
)

// Per-turn affinity change bounds.
const (
	MaxTurnDelta = 5
	MinTurnDelta = -5
)

// DefaultBanterCooldown is how many turns a companion waits between banter lines.
const DefaultBanterCooldown = 3

// toneVectors maps a tone onto the trait axes it appeals to.
var toneVectors = map[action.Tone]social.Traits{
	action.ToneParagon:     {Idealism: 1, Mercy: 1, Lawfulness: 1},
	action.ToneRenegade:    {Idealism: -1, Mercy: -1, Lawfulness: -1},
	action.ToneInvestigate: {Lawfulness: 1},
	action.ToneNeutral:     {},
}

// RelationshipEngine computes companion reactions to the turn's action.
type RelationshipEngine struct {
	BanterCooldown int
}

// NewRelationshipEngine returns an engine. A non-positive cooldown takes the default.
func NewRelationshipEngine(cooldown int) *RelationshipEngine {
	if cooldown <= 0 {
		cooldown = DefaultBanterCooldown
	}
	return &RelationshipEngine{BanterCooldown: cooldown}
}

// RelationInput is the relationship engine's view of the turn.
type RelationInput struct {
	Seed       int64
	Tone       action.Tone
	Success    bool
	Critical   action.Critical
	Companions []social.Companion
	Overrides  map[string]int
}

// CompanionUpdate is one companion's before/after for the turn.
type CompanionUpdate struct {
	Before     social.Companion   `json:"before"`
	After      social.Companion   `json:"after"`
	Delta      int                `json:"delta"`
	Overridden bool               `json:"overridden,omitempty"`
	Milestones []social.Milestone `json:"milestones,omitempty"`
}

// BanterLine is a companion's unprompted remark.
type BanterLine struct {
	CompanionID string `json:"companion_id"`
	Name        string `json:"name"`
	Line        string `json:"line"`
}

// Tension flags two companions reacting in opposite directions.
type Tension struct {
	A      string `json:"a"`
	B      string `json:"b"`
	DeltaA int    `json:"delta_a"`
	DeltaB int    `json:"delta_b"`
}

// RelationResult is the engine's proposal for the turn.
type RelationResult struct {
	Updates  []CompanionUpdate `json:"updates"`
	Banter   *BanterLine       `json:"banter,omitempty"`
	Tensions []Tension         `json:"tensions,omitempty"`
	Drafts   []event.Draft     `json:"-"`
}

// Delta computes a companion's raw approval of the action before clamping.
func Delta(traits social.Traits, tone action.Tone, success bool, crit action.Critical) int {
	d := traits.Dot(toneVectors[tone])
	switch {
	case crit == action.CriticalSuccess:
		d++
	case crit == action.CriticalFailure:
		d--
	case !success && d > 0:
		// Good intentions count for less when they fail.
		d--
	}
	return d
}

// Apply runs one turn of relationship dynamics over the given companions.
func (e *RelationshipEngine) Apply(in RelationInput) RelationResult {
	comps := make([]social.Companion, len(in.Companions))
	for i, c := range in.Companions {
		comps[i] = c.Clone()
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].ID < comps[j].ID })

	var res RelationResult
	for _, before := range comps {
		delta := Delta(before.Traits, in.Tone, in.Success, in.Critical)
		override, overridden := in.Overrides[before.ID]
		if overridden {
			delta = override
		}
		delta = clampInt(delta, MinTurnDelta, MaxTurnDelta)

		after := before.Clone()
		after.Affinity = social.ClampAffinity(before.Affinity + delta)
		after.Stage = social.StageFor(after.Affinity)
		adjustScores(&after, delta, in.Tone, in.Success)

		u := CompanionUpdate{Before: before, Delta: delta, Overridden: overridden}
		prevRank := social.StageFor(before.Affinity).Rank()
		if prevRank < social.StageTrusted.Rank() && after.Stage.Rank() >= social.StageTrusted.Rank() {
			u.Milestones = fire(&after, social.MilestoneCompanionRequest, u.Milestones)
		}
		if prevRank < social.StageLoyal.Rank() && after.Stage.Rank() >= social.StageLoyal.Rank() {
			u.Milestones = fire(&after, social.MilestonePersonalQuest, u.Milestones)
		}
		if delta <= -4 {
			u.Milestones = fire(&after, social.MilestoneConfrontation, u.Milestones)
		}
		u.After = after
		res.Updates = append(res.Updates, u)
	}

	e.banter(&res, in)
	res.Tensions = tensions(res.Updates)

	for _, u := range res.Updates {
		res.Drafts = append(res.Drafts, event.Hidden(event.RelationshipUpdate{
			Companion:     u.After.Clone(),
			Delta:         u.Delta,
			PreviousStage: u.Before.Stage,
			Overridden:    u.Overridden,
		}))
	}
	for _, u := range res.Updates {
		for _, m := range u.Milestones {
			res.Drafts = append(res.Drafts, event.Visible(event.RelationshipMilestone{
				CompanionID: u.After.ID,
				Milestone:   m,
				Stage:       u.After.Stage,
				Affinity:    u.After.Affinity,
			}))
		}
	}
	if res.Banter != nil {
		res.Drafts = append(res.Drafts, event.Visible(event.Banter{
			CompanionID: res.Banter.CompanionID,
			Line:        res.Banter.Line,
		}))
	}
	return res
}

// fire records m on c unless it already fired this campaign.
func fire(c *social.Companion, m social.Milestone, fired []social.Milestone) []social.Milestone {
	if c.HasMilestone(m) {
		return fired
	}
	*c = c.WithMilestone(m)
	return append(fired, m)
}

func adjustScores(c *social.Companion, delta int, tone action.Tone, success bool) {
	c.Trust = social.ClampScore(c.Trust + delta)
	if delta >= 2 || delta <= -2 {
		c.Influence = social.ClampScore(c.Influence + 1)
	}
	if success && (tone == action.ToneParagon || tone == action.ToneInvestigate) {
		c.Respect = social.ClampScore(c.Respect + 1)
	}
	if tone == action.ToneRenegade {
		c.Fear = social.ClampScore(c.Fear + 2)
	}
}

// banter picks at most one companion off cooldown to speak, strongest
// reaction first, and ticks every other cooldown down.
func (e *RelationshipEngine) banter(res *RelationResult, in RelationInput) {
	speaker := -1
	for i, u := range res.Updates {
		if u.Before.BanterCooldown > 0 || u.Delta == 0 {
			continue
		}
		if speaker < 0 || abs(u.Delta) > abs(res.Updates[speaker].Delta) {
			speaker = i
		}
	}

	for i := range res.Updates {
		a := &res.Updates[i].After
		switch {
		case i == speaker:
			a.BanterCooldown = e.BanterCooldown
		case a.BanterCooldown > 0:
			a.BanterCooldown--
		}
	}
	if speaker < 0 {
		return
	}

	u := res.Updates[speaker]
	rng := entropy.FromSeed(in.Seed)
	lines := approvingLines
	if u.Delta < 0 {
		lines = disapprovingLines
	}
	res.Banter = &BanterLine{
		CompanionID: u.After.ID,
		Name:        u.After.Name,
		Line:        lines[rng.Intn(len(lines))],
	}
}

func tensions(updates []CompanionUpdate) []Tension {
	var out []Tension
	for i := 0; i < len(updates); i++ {
		for j := i + 1; j < len(updates); j++ {
			a, b := updates[i], updates[j]
			if abs(a.Delta) < 2 || abs(b.Delta) < 2 {
				continue
			}
			if (a.Delta > 0) == (b.Delta > 0) {
				continue
			}
			out = append(out, Tension{A: a.After.ID, B: b.After.ID, DeltaA: a.Delta, DeltaB: b.Delta})
		}
	}
	return out
}

var approvingLines = []string{
	"That's the kind of thing I followed you for.",
	"Not bad. Not bad at all.",
	"Remind me to buy you a drink after this.",
}

var disapprovingLines = []string{
	"I'll pretend I didn't see that.",
	"We'll be talking about this later.",
	"Is this who we are now?",
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
