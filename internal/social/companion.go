package social

import "sort"

// Affinity bounds for any companion.
const (
	AffinityMin = -100
	AffinityMax = 100
)

// TraitMin and TraitMax bound each personality axis.
const (
	TraitMin = -3
	TraitMax = 3
)

// Traits is a companion's fixed moral profile. Each axis runs TraitMin..TraitMax.
type Traits struct {
	Idealism   int `json:"idealism"`
	Mercy      int `json:"mercy"`
	Lawfulness int `json:"lawfulness"`
}

// Clamp returns t with every axis pulled into range.
func (t Traits) Clamp() Traits {
	return Traits{
		Idealism:   clamp(t.Idealism, TraitMin, TraitMax),
		Mercy:      clamp(t.Mercy, TraitMin, TraitMax),
		Lawfulness: clamp(t.Lawfulness, TraitMin, TraitMax),
	}
}

// Dot returns the dot product of two trait vectors.
func (t Traits) Dot(o Traits) int {
	return t.Idealism*o.Idealism + t.Mercy*o.Mercy + t.Lawfulness*o.Lawfulness
}

// LoyaltyStage is a discrete band over affinity.
type LoyaltyStage string

const (
	StageStranger LoyaltyStage = "stranger"
	StageAlly     LoyaltyStage = "ally"
	StageTrusted  LoyaltyStage = "trusted"
	StageLoyal    LoyaltyStage = "loyal"
)

// StageFor maps an affinity value to its loyalty stage.
func StageFor(affinity int) LoyaltyStage {
	switch {
	case affinity <= -10:
		return StageStranger
	case affinity < 30:
		return StageAlly
	case affinity < 70:
		return StageTrusted
	default:
		return StageLoyal
	}
}

// Rank orders stages from stranger (0) to loyal (3).
func (s LoyaltyStage) Rank() int {
	switch s {
	case StageAlly:
		return 1
	case StageTrusted:
		return 2
	case StageLoyal:
		return 3
	}
	return 0
}

// Milestone is a one-shot relationship event.
type Milestone string

const (
	MilestoneCompanionRequest Milestone = "companion_request"
	MilestonePersonalQuest    Milestone = "personal_quest"
	MilestoneConfrontation    Milestone = "confrontation"
)

// Companion is a party member with a persistent relationship to the player.
type Companion struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Traits Traits `json:"traits"`

	Affinity int          `json:"affinity"`
	Stage    LoyaltyStage `json:"stage"`

	// Sub-scores, each 0–100.
	Influence int `json:"influence"`
	Trust     int `json:"trust"`
	Respect   int `json:"respect"`
	Fear      int `json:"fear"`

	BanterCooldown int         `json:"banter_cooldown"`
	Milestones     []Milestone `json:"milestones,omitempty"` // fired, sorted
}

// HasMilestone reports whether m already fired for this companion.
func (c Companion) HasMilestone(m Milestone) bool {
	for _, got := range c.Milestones {
		if got == m {
			return true
		}
	}
	return false
}

// WithMilestone returns c with m recorded.
func (c Companion) WithMilestone(m Milestone) Companion {
	if c.HasMilestone(m) {
		return c
	}
	ms := make([]Milestone, 0, len(c.Milestones)+1)
	ms = append(ms, c.Milestones...)
	ms = append(ms, m)
	sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })
	c.Milestones = ms
	return c
}

// Clone returns a deep copy of c.
func (c Companion) Clone() Companion {
	if c.Milestones != nil {
		ms := make([]Milestone, len(c.Milestones))
		copy(ms, c.Milestones)
		c.Milestones = ms
	}
	return c
}

// ClampAffinity pulls v into [AffinityMin, AffinityMax].
func ClampAffinity(v int) int {
	return clamp(v, AffinityMin, AffinityMax)
}

// ClampScore pulls a sub-score into [0, 100].
func ClampScore(v int) int {
	return clamp(v, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
