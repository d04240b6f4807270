package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/entropy"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/social"
	"github.com/talgya/chronicle/internal/worldstate"
)

func simInput(t0, t1 int64, traveled bool) SimInput {
	return SimInput{
		CampaignID: "camp",
		Turn:       5,
		Seed:       entropy.Seed("camp", 5, entropy.StreamWorld),
		TimeBefore: t0,
		TimeAfter:  t1,
		Traveled:   traveled,
		LocationID: "tavern",
		Factions:   social.SeedFactions(),
	}
}

func TestSimulatorSkipsWithoutTickOrTravel(t *testing.T) {
	res, err := NewSimulator(240, 10).Run(simInput(0, 15, false))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Ran || len(res.Drafts) != 0 {
		t.Fatalf("result = %+v, want no run", res)
	}
}

func TestSimulatorRunsOnTickBoundary(t *testing.T) {
	res, err := NewSimulator(240, 10).Run(simInput(230, 245, false))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Ran || res.Trigger != TriggerTick {
		t.Fatalf("ran = %v trigger = %s, want tick", res.Ran, res.Trigger)
	}
	ticks := 0
	for _, d := range res.Drafts {
		switch p := d.Payload.(type) {
		case event.FactionTick:
			ticks++
			if !d.Hidden {
				t.Fatal("faction_tick should be hidden")
			}
			if p.TicksCrossed != 1 {
				t.Fatalf("ticks crossed = %d, want 1", p.TicksCrossed)
			}
		case event.Rumor:
			if !d.PublicRumor {
				t.Fatal("rumor should be public")
			}
		}
	}
	if ticks != 1 {
		t.Fatalf("faction_tick drafts = %d, want exactly 1", ticks)
	}
}

func TestSimulatorRunsOnceForTravelAcrossManyTicks(t *testing.T) {
	res, err := NewSimulator(240, 10).Run(simInput(100, 1100, true))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Trigger != TriggerTick || res.TicksCrossed != 4 {
		t.Fatalf("trigger = %s crossed = %d", res.Trigger, res.TicksCrossed)
	}
	n := 0
	for _, d := range res.Drafts {
		if d.Type() == event.TypeFactionTick {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("faction_tick drafts = %d, want 1", n)
	}

	res, err = NewSimulator(240, 10).Run(simInput(10, 130, true))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Ran || res.Trigger != TriggerTravel {
		t.Fatalf("trigger = %s, want travel", res.Trigger)
	}
}

func TestSimulatorRefusesDoubleRun(t *testing.T) {
	in := simInput(230, 245, false)
	in.SimLastTurn = in.Turn
	if _, err := NewSimulator(240, 10).Run(in); !errors.Is(err, ErrAlreadySimulated) {
		t.Fatalf("err = %v, want ErrAlreadySimulated", err)
	}
}

func TestSimulatorIsDeterministicAndPure(t *testing.T) {
	in := simInput(230, 1200, true)
	before, _ := json.Marshal(in.Factions)

	a, err := NewSimulator(240, 10).Run(in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := NewSimulator(240, 10).Run(in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if !bytes.Equal(ja, jb) {
		t.Fatalf("results differ:\n%s\n%s", ja, jb)
	}
	after, _ := json.Marshal(in.Factions)
	if !bytes.Equal(before, after) {
		t.Fatal("simulator mutated its input factions")
	}
}

func TestNewsFeedBounded(t *testing.T) {
	sim := NewSimulator(240, 3)
	sim.RumorChance = 1
	in := simInput(230, 245, false)
	in.NewsFeed = []worldstate.NewsItem{{Text: "old 1"}, {Text: "old 2"}, {Text: "old 3"}}
	res, err := sim.Run(in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.NewsFeed) != 3 {
		t.Fatalf("news feed = %d items, want 3", len(res.NewsFeed))
	}
	if res.NewsFeed[2].Text != res.Rumors[len(res.Rumors)-1].Text {
		t.Fatal("news feed does not end with the newest rumor")
	}
}

func TestRelationshipCrossingFiresMilestoneOnce(t *testing.T) {
	eng := NewRelationshipEngine(3)
	lyra := social.Companion{
		ID:       "lyra",
		Name:     "Lyra",
		Traits:   social.Traits{Idealism: 2, Mercy: 1, Lawfulness: 0},
		Affinity: 28,
		Stage:    social.StageAlly,
	}
	res := eng.Apply(RelationInput{Tone: action.ToneParagon, Success: true, Companions: []social.Companion{lyra}})
	if len(res.Updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(res.Updates))
	}
	u := res.Updates[0]
	if u.Delta != 3 || u.After.Affinity != 31 {
		t.Fatalf("delta = %d affinity = %d, want +3 → 31", u.Delta, u.After.Affinity)
	}
	if u.After.Stage != social.StageTrusted {
		t.Fatalf("stage = %s, want trusted", u.After.Stage)
	}
	if countMilestones(res.Drafts, social.MilestoneCompanionRequest) != 1 {
		t.Fatalf("drafts = %+v, want one companion_request", res.Drafts)
	}

	// Drop back below trusted and cross again: the milestone stays spent.
	again := u.After
	again.Affinity = 28
	again.Stage = social.StageAlly
	res = eng.Apply(RelationInput{Tone: action.ToneParagon, Success: true, Companions: []social.Companion{again}})
	if res.Updates[0].After.Stage != social.StageTrusted {
		t.Fatalf("stage = %s, want trusted", res.Updates[0].After.Stage)
	}
	if n := countMilestones(res.Drafts, social.MilestoneCompanionRequest); n != 0 {
		t.Fatalf("companion_request fired %d more times", n)
	}
}

func TestOverrideReplacesComputedDelta(t *testing.T) {
	c := social.Companion{ID: "bryn", Traits: social.Traits{Idealism: 3, Mercy: 3, Lawfulness: 3}, Affinity: 0}
	res := NewRelationshipEngine(3).Apply(RelationInput{
		Tone:       action.ToneParagon,
		Success:    true,
		Companions: []social.Companion{c},
		Overrides:  map[string]int{"bryn": -9},
	})
	u := res.Updates[0]
	if !u.Overridden || u.Delta != MinTurnDelta {
		t.Fatalf("update = %+v, want override clamped to %d", u, MinTurnDelta)
	}
	if countMilestones(res.Drafts, social.MilestoneConfrontation) != 1 {
		t.Fatal("confrontation milestone missing")
	}
}

func TestAffinityClamped(t *testing.T) {
	c := social.Companion{ID: "a", Traits: social.Traits{Idealism: 3, Mercy: 3, Lawfulness: 3}, Affinity: 98}
	res := NewRelationshipEngine(3).Apply(RelationInput{Tone: action.ToneParagon, Success: true, Companions: []social.Companion{c}})
	if got := res.Updates[0].After.Affinity; got != social.AffinityMax {
		t.Fatalf("affinity = %d, want %d", got, social.AffinityMax)
	}
}

func TestBanterAtMostOncePerTurnWithCooldown(t *testing.T) {
	eng := NewRelationshipEngine(3)
	comps := []social.Companion{
		{ID: "b", Name: "Bryn", Traits: social.Traits{Idealism: 1}},
		{ID: "a", Name: "Ash", Traits: social.Traits{Idealism: 3, Mercy: 1}},
		{ID: "c", Name: "Cole", Traits: social.Traits{Idealism: 3, Mercy: 3}, BanterCooldown: 2},
	}
	res := eng.Apply(RelationInput{Tone: action.ToneParagon, Success: true, Companions: comps})
	if res.Banter == nil || res.Banter.CompanionID != "a" {
		t.Fatalf("banter = %+v, want Ash (largest delta off cooldown)", res.Banter)
	}
	n := 0
	for _, d := range res.Drafts {
		if d.Type() == event.TypeBanter {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("banter drafts = %d, want 1", n)
	}
	for _, u := range res.Updates {
		switch u.After.ID {
		case "a":
			if u.After.BanterCooldown != 3 {
				t.Fatalf("speaker cooldown = %d, want 3", u.After.BanterCooldown)
			}
		case "c":
			if u.After.BanterCooldown != 1 {
				t.Fatalf("cooling companion = %d, want 1", u.After.BanterCooldown)
			}
		}
	}
}

func TestTensionOnOppositeReactions(t *testing.T) {
	comps := []social.Companion{
		{ID: "saint", Traits: social.Traits{Idealism: 2, Mercy: 2}},
		{ID: "rogue", Traits: social.Traits{Idealism: -2, Mercy: -1}},
	}
	res := NewRelationshipEngine(3).Apply(RelationInput{Tone: action.ToneRenegade, Success: true, Companions: comps})
	if len(res.Tensions) != 1 {
		t.Fatalf("tensions = %+v, want one", res.Tensions)
	}
}

func TestRelationshipUpdateForEveryCompanion(t *testing.T) {
	comps := []social.Companion{{ID: "a"}, {ID: "b"}}
	res := NewRelationshipEngine(3).Apply(RelationInput{Tone: action.ToneNeutral, Success: true, Companions: comps})
	n := 0
	for _, d := range res.Drafts {
		if d.Type() == event.TypeRelationshipUpdate {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("relationship_update drafts = %d, want 2", n)
	}
}

func TestArcGates(t *testing.T) {
	tr := NewArcTracker(nil)
	state := worldstate.ArcState{Stage: worldstate.ArcSetup}
	ledger := worldstate.Ledger{Facts: []string{"a", "b", "c"}}

	for turn := int64(1); turn <= 3; turn++ {
		res := tr.Advance(state, ledger, turn)
		if res.Transitioned {
			t.Fatalf("turn %d transitioned early", turn)
		}
		state = res.State
	}
	res := tr.Advance(state, ledger, 4)
	if !res.Transitioned || res.State.Stage != worldstate.ArcRising || res.From != worldstate.ArcSetup {
		t.Fatalf("result = %+v, want SETUP→RISING", res)
	}
	if res.State.TurnsInStage != 0 || res.State.EnteredTurn != 4 {
		t.Fatalf("state = %+v", res.State)
	}
	if len(res.Pacing) == 0 {
		t.Fatal("no pacing hints")
	}
}

func TestArcNeedsLedgerWeight(t *testing.T) {
	tr := NewArcTracker(nil)
	state := worldstate.ArcState{Stage: worldstate.ArcSetup, TurnsInStage: 10}
	res := tr.Advance(state, worldstate.Ledger{Facts: []string{"only one"}}, 11)
	if res.Transitioned {
		t.Fatal("transitioned without enough ledger entries")
	}
}

func TestArcResolutionIsTerminal(t *testing.T) {
	tr := NewArcTracker(nil)
	state := worldstate.ArcState{Stage: worldstate.ArcResolution, TurnsInStage: 50}
	res := tr.Advance(state, worldstate.Ledger{Facts: make([]string, 40)}, 99)
	if res.Transitioned || res.State.Stage != worldstate.ArcResolution {
		t.Fatalf("result = %+v, want to stay in RESOLUTION", res)
	}
}

func countMilestones(drafts []event.Draft, m social.Milestone) int {
	n := 0
	for _, d := range drafts {
		if p, ok := d.Payload.(event.RelationshipMilestone); ok && p.Milestone == m {
			n++
		}
	}
	return n
}
