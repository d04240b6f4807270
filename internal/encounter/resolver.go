// Package encounter decides who is in the scene this turn.
//
// Named NPCs already at the location are present. When nobody named is
// there, at most one new entity is introduced, subject to a per-location
// throttle window. Candidates come from curated location templates, then
// the procedural name generator; if neither applies an anonymous
// background figure fills the scene without touching the log.
package encounter

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/talgya/chronicle/internal/entropy"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/world"
	"github.com/talgya/chronicle/internal/worldstate"
)

// DefaultWindow is the introduction throttle in world minutes.
const DefaultWindow = 120

// Entity sources.
const (
	SourceKnown      = "known"
	SourceTemplate   = "template"
	SourceProcedural = "procedural"
	SourceBackground = "background"
)

// npcNamespace scopes procedural NPC ids.
var npcNamespace = uuid.MustParse("6f1c2a8e-3b7d-4c55-9a0e-2d4f8b6c1e93")

// Entity is someone in the scene.
type Entity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role,omitempty"`
	Summary    string `json:"summary,omitempty"`
	LocationID string `json:"location_id"`
	Source     string `json:"source"`
	Background bool   `json:"background,omitempty"`
}

// Input is what the resolver reads. WorldTime is the post-action time.
type Input struct {
	CampaignID string
	Turn       int64
	Seed       int64
	Location   world.Location
	WorldTime  int64
	NPCs       []Entity
	Log        []worldstate.Introduction
	Introduced map[string]string
}

// Throttle explains the introduction decision.
type Throttle struct {
	Allowed        bool   `json:"allowed"`
	Reason         string `json:"reason"`
	LastAt         int64  `json:"last_at,omitempty"`
	NextEligibleAt int64  `json:"next_eligible_at,omitempty"`
}

// Result is the presence decision for one turn.
type Result struct {
	Present    []Entity      `json:"present"`
	Introduced *Entity       `json:"introduced,omitempty"`
	Drafts     []event.Draft `json:"-"`
	Throttle   Throttle      `json:"throttle"`
}

// Resolver resolves scene presence.
type Resolver struct {
	window     int64
	templates  []Template
	procedural bool
}

// NewResolver returns a resolver with the given throttle window and
// templates. A non-positive window uses DefaultWindow.
func NewResolver(window int64, templates []Template) *Resolver {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Resolver{window: window, templates: templates, procedural: true}
}

// WithoutProcedural disables the procedural generator tier.
func (r *Resolver) WithoutProcedural() *Resolver {
	c := *r
	c.procedural = false
	return &c
}

// Resolve decides who is present. It never writes anything; an
// introduction comes back as a staged draft.
func (r *Resolver) Resolve(in Input) Result {
	var res Result
	for _, npc := range in.NPCs {
		if npc.LocationID == in.Location.ID {
			npc.Source = SourceKnown
			res.Present = append(res.Present, npc)
		}
	}
	sort.Slice(res.Present, func(i, j int) bool { return res.Present[i].ID < res.Present[j].ID })

	res.Throttle = r.throttle(in)
	if len(res.Present) > 0 {
		res.Throttle.Allowed = false
		res.Throttle.Reason = "named npc present"
		return res
	}

	if res.Throttle.Allowed {
		if e, tplID, ok := r.candidate(in); ok {
			res.Introduced = &e
			res.Present = append(res.Present, e)
			res.Drafts = append(res.Drafts, event.Visible(event.NPCIntroduced{
				CharacterID: e.ID,
				Name:        e.Name,
				Role:        e.Role,
				Summary:     e.Summary,
				LocationID:  e.LocationID,
				Source:      e.Source,
				TemplateID:  tplID,
				WorldTime:   in.WorldTime,
			}))
			return res
		}
	}

	res.Present = append(res.Present, r.background(in))
	return res
}

func (r *Resolver) throttle(in Input) Throttle {
	last := int64(-1)
	for _, intro := range in.Log {
		if intro.LocationID == in.Location.ID && intro.WorldTime > last {
			last = intro.WorldTime
		}
	}
	if last < 0 {
		return Throttle{Allowed: true, Reason: "no prior introduction here"}
	}
	next := last + r.window
	if in.WorldTime >= next {
		return Throttle{Allowed: true, Reason: "window elapsed", LastAt: last, NextEligibleAt: next}
	}
	return Throttle{Allowed: false, Reason: "introduced here recently", LastAt: last, NextEligibleAt: next}
}

// recentlyIntroduced reports whether id was introduced at loc within the window.
func (r *Resolver) recentlyIntroduced(in Input, id string) bool {
	for _, intro := range in.Log {
		if intro.NPCID == id && intro.LocationID == in.Location.ID && in.WorldTime-intro.WorldTime < r.window {
			return true
		}
	}
	return false
}

func (r *Resolver) candidate(in Input) (Entity, string, bool) {
	for _, t := range r.templates {
		if !t.fits(in.Location.Tags) {
			continue
		}
		id := "tpl-" + t.ID + "-" + in.Location.ID
		if _, seen := in.Introduced[id]; seen || r.recentlyIntroduced(in, id) {
			continue
		}
		return Entity{
			ID:         id,
			Name:       t.Name,
			Role:       t.Role,
			Summary:    t.Summary,
			LocationID: in.Location.ID,
			Source:     SourceTemplate,
		}, t.ID, true
	}

	if !r.procedural {
		return Entity{}, "", false
	}
	rng := entropy.FromSeed(in.Seed)
	id := uuid.NewSHA1(npcNamespace, []byte(fmt.Sprintf("%s/%d/%s", in.CampaignID, in.Turn, in.Location.ID))).String()
	if _, seen := in.Introduced[id]; seen || r.recentlyIntroduced(in, id) {
		return Entity{}, "", false
	}
	role := roleFor(in.Location.Tags, rng)
	return Entity{
		ID:         id,
		Name:       generateName(rng),
		Role:       role,
		Summary:    "a " + role + " going about their business",
		LocationID: in.Location.ID,
		Source:     SourceProcedural,
	}, "", true
}

func (r *Resolver) background(in Input) Entity {
	rng := entropy.FromSeed(in.Seed ^ 0x5bd1e995)
	return Entity{
		ID:         "background-" + in.Location.ID,
		Name:       backgroundFigures[rng.Intn(len(backgroundFigures))],
		LocationID: in.Location.ID,
		Source:     SourceBackground,
		Background: true,
	}
}
