// Package mechanics resolves a classified action into a mechanical outcome.
// Resolution is pure: the same input, including the seed, always yields the
// same outcome.
package mechanics

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/entropy"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/social"
	"github.com/talgya/chronicle/internal/world"
	"github.com/talgya/chronicle/internal/worldstate"
)

// ErrNotAnAction is returned when asked to resolve a non-ACTION intent.
var ErrNotAnAction = errors.New("intent does not require resolution")

// Target is a named character the action may be aimed at.
type Target struct {
	ID   string
	Name string
}

// Input is everything the resolver reads.
type Input struct {
	Intent     action.Intent
	PlayerID   string
	Stats      map[string]int
	Stress     int
	Location   world.Location
	Locations  map[string]world.Location
	Present    []Target
	Companions []social.Companion
	Arc        worldstate.ArcStage
	WorldTime  int64
	Seed       int64
}

// Resolver turns intents into outcomes.
type Resolver struct{}

// NewResolver returns a resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve rolls for the action and derives its facts, time cost and stress.
func (r *Resolver) Resolve(in Input) (action.Outcome, error) {
	if !in.Intent.RequiresResolution {
		return action.Outcome{}, ErrNotAnAction
	}
	kind := in.Intent.Kind
	if _, ok := baseDC[kind]; !ok {
		kind = action.KindGeneric
	}

	rng := entropy.FromSeed(in.Seed)
	period := world.PeriodOf(in.WorldTime)
	risk := riskFor(kind, in.Location, period)
	mods := modifiers(kind, in.Location, period, in.Arc, risk)
	dc := action.DCTotal(baseDC[kind], mods)

	natural := entropy.D20(rng)
	roll := natural + statBonus(in.Stats, kind)

	out := action.Outcome{
		Kind:            kind,
		Tone:            in.Intent.Tone,
		Risk:            risk,
		Natural:         natural,
		Roll:            roll,
		DC:              dc,
		Modifiers:       mods,
		TimeCostMinutes: action.TimeCost(kind),
	}
	switch natural {
	case 20:
		out.Critical = action.CriticalSuccess
		out.Success = true
	case 1:
		out.Critical = action.CriticalFailure
		out.Success = false
	default:
		out.Success = roll >= dc
	}

	r.facts(&out, in, rng)
	out.StressDelta = stressDelta(kind, risk, out.Success)
	if out.StressDelta != 0 {
		stress := clamp(in.Stress+out.StressDelta, 0, 100)
		out.Facts = append(out.Facts, event.Hidden(event.StressChange{
			CharacterID: in.PlayerID,
			Delta:       out.StressDelta,
			Stress:      stress,
			Mood:        MoodFor(stress),
		}))
	}
	out.AffinityOverrides = overrides(in, out)
	out.Summary = summarize(out)
	return out, nil
}

func (r *Resolver) facts(out *action.Outcome, in Input, rng *rand.Rand) {
	loc := in.Location.ID
	target, named := matchTarget(in.Intent.Target, in.Present)

	switch out.Kind {
	case action.KindAttack:
		if out.Success {
			amount := 2 + (out.Roll-out.DC)/2
			if out.Critical == action.CriticalSuccess {
				amount *= 2
			}
			if amount < 1 {
				amount = 1
			}
			if named {
				out.Facts = append(out.Facts, event.Visible(event.Damage{CharacterID: target.ID, Amount: amount, Source: in.PlayerID}))
			}
			out.Facts = append(out.Facts, event.Visible(event.FlagSet{Key: "fought:" + loc, Value: "won"}))
			return
		}
		amount := 2 + rng.Intn(2)
		if out.Critical == action.CriticalFailure {
			amount *= 2
		}
		out.Facts = append(out.Facts, event.Visible(event.Damage{CharacterID: in.PlayerID, Amount: amount, Source: "counterattack"}))

	case action.KindSteal:
		if out.Success {
			item := in.Intent.Target
			if item == "" || named {
				item = "coin purse"
			}
			out.Facts = append(out.Facts, event.Visible(event.ItemChange{CharacterID: in.PlayerID, Item: item, Delta: 1}))
			return
		}
		out.Facts = append(out.Facts, event.Visible(event.FlagSet{Key: "suspicion:" + loc, Value: "theft"}))

	case action.KindSneak:
		if out.Success {
			out.Facts = append(out.Facts, event.Hidden(event.FlagSet{Key: "unseen:" + loc, Value: orDefault(in.Intent.Target, "the watch")}))
			return
		}
		out.Facts = append(out.Facts, event.Visible(event.FlagSet{Key: "spotted:" + loc, Value: "sneaking"}))

	case action.KindTravel:
		dest, ok := resolveDestination(in.Intent.Target, in.Location, in.Locations)
		if !ok {
			// Nowhere known to go: the attempt costs what any fumbling does.
			out.TimeCostMinutes = action.TimeCost(action.KindGeneric)
			out.Success = false
			out.Critical = action.CriticalNone
			return
		}
		out.Travel = &action.Travel{From: in.Location.ID, To: dest.ID}
		out.Facts = append(out.Facts, event.Visible(event.Move{CharacterID: in.PlayerID, From: in.Location.ID, To: dest.ID}))
		if !out.Success {
			out.Facts = append(out.Facts, event.Visible(event.Damage{CharacterID: in.PlayerID, Amount: 1, Source: "rough road"}))
		}

	case action.KindSearch:
		if out.Success {
			out.Facts = append(out.Facts, event.Visible(event.FlagSet{Key: "found:" + loc, Value: orDefault(in.Intent.Target, "something hidden")}))
			if out.Critical == action.CriticalSuccess {
				out.Facts = append(out.Facts, event.Visible(event.ItemChange{CharacterID: in.PlayerID, Item: "curious trinket", Delta: 1}))
			}
		}

	case action.KindSocial:
		if out.Success && named {
			out.Facts = append(out.Facts, event.Visible(event.FlagSet{Key: "swayed:" + target.ID, Value: strings.ToLower(string(out.Tone))}))
		}
	}
}

// overrides lets a social action aimed at a companion set their affinity
// change directly.
func overrides(in Input, out action.Outcome) map[string]int {
	if out.Kind != action.KindSocial || in.Intent.Target == "" {
		return nil
	}
	ref := strings.ToLower(in.Intent.Target)
	for _, c := range in.Companions {
		if !strings.Contains(ref, strings.ToLower(c.Name)) {
			continue
		}
		d := 4
		if out.Critical != action.CriticalNone {
			d = 5
		}
		if !out.Success {
			d = -d
		}
		return map[string]int{c.ID: d}
	}
	return nil
}

func matchTarget(ref string, present []Target) (Target, bool) {
	ref = strings.ToLower(ref)
	if ref == "" {
		return Target{}, false
	}
	for _, t := range present {
		name := strings.ToLower(t.Name)
		if name == "" {
			continue
		}
		if strings.Contains(ref, name) || strings.Contains(name, ref) {
			return t, true
		}
		// First names are enough: "stab maren" hits "Maren Voss".
		if first, _, _ := strings.Cut(name, " "); first != "" && strings.Contains(ref, first) {
			return t, true
		}
	}
	return Target{}, false
}

// resolveDestination finds a known location named by ref, preferring neighbors.
func resolveDestination(ref string, from world.Location, locs map[string]world.Location) (world.Location, bool) {
	if ref == "" {
		return world.Location{}, false
	}
	ids := make([]string, 0, len(locs))
	for id := range locs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	neighbor := make(map[string]bool, len(from.Neighbors))
	for _, n := range from.Neighbors {
		neighbor[n] = true
	}

	var fallback *world.Location
	for _, id := range ids {
		if id == from.ID {
			continue
		}
		l := locs[id]
		if !l.Matches(ref) {
			continue
		}
		if neighbor[id] {
			return l, true
		}
		if fallback == nil {
			fallback = &l
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return world.Location{}, false
}

func summarize(o action.Outcome) string {
	verdict := "failed"
	if o.Success {
		verdict = "succeeded"
	}
	if o.Critical != action.CriticalNone {
		verdict += " (" + strings.ReplaceAll(string(o.Critical), "_", " ") + ")"
	}
	return fmt.Sprintf("%s %s: rolled %d vs DC %d", o.Kind, verdict, o.Roll, o.DC)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
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
