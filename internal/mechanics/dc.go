package mechanics

import (
	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/world"
	"github.com/talgya/chronicle/internal/worldstate"
)

// baseDC is the unmodified difficulty of each action kind.
var baseDC = map[action.Kind]int{
	action.KindAttack:  12,
	action.KindSteal:   13,
	action.KindSneak:   12,
	action.KindTravel:  8,
	action.KindSearch:  10,
	action.KindSocial:  11,
	action.KindRest:    5,
	action.KindGeneric: 10,
}

// kindStat is the stat each kind rolls against.
var kindStat = map[action.Kind]string{
	action.KindAttack: StatStrength,
	action.KindSteal:  StatDexterity,
	action.KindSneak:  StatDexterity,
	action.KindTravel: StatEndurance,
	action.KindSearch: StatWits,
	action.KindSocial: StatCharisma,
	action.KindRest:   StatEndurance,
}

// Player stats.
const (
	StatStrength  = "strength"
	StatDexterity = "dexterity"
	StatEndurance = "endurance"
	StatWits      = "wits"
	StatCharisma  = "charisma"
)

// DefaultStats is the stat block for a new player.
func DefaultStats() map[string]int {
	return map[string]int{
		StatStrength:  10,
		StatDexterity: 10,
		StatEndurance: 10,
		StatWits:      10,
		StatCharisma:  10,
	}
}

var arcDC = map[worldstate.ArcStage]int{
	worldstate.ArcSetup:      0,
	worldstate.ArcRising:     1,
	worldstate.ArcClimax:     3,
	worldstate.ArcResolution: 1,
}

var riskDC = map[action.Risk]int{
	action.RiskLow:      0,
	action.RiskModerate: 2,
	action.RiskHigh:     4,
}

// riskFor grades how dangerous an action is in its context.
func riskFor(kind action.Kind, loc world.Location, period world.Period) action.Risk {
	switch kind {
	case action.KindAttack:
		return action.RiskHigh
	case action.KindSteal:
		if loc.Armed {
			return action.RiskHigh
		}
		return action.RiskModerate
	case action.KindSneak:
		return action.RiskModerate
	case action.KindTravel:
		if period.IsNight() {
			return action.RiskModerate
		}
	}
	return action.RiskLow
}

// modifiers lists every non-zero adjustment to the base DC.
func modifiers(kind action.Kind, loc world.Location, period world.Period, arc worldstate.ArcStage, risk action.Risk) []action.Modifier {
	var mods []action.Modifier
	add := func(name string, v int) {
		if v != 0 {
			mods = append(mods, action.Modifier{Name: name, Value: v})
		}
	}

	if loc.Armed {
		switch kind {
		case action.KindSteal, action.KindSneak, action.KindSocial:
			add("armed_presence", 2)
		}
	}
	if period.IsNight() {
		switch kind {
		case action.KindSneak:
			add("darkness", -2)
		case action.KindSearch:
			add("darkness", 2)
		}
	}
	add("arc_stage", arcDC[arc])
	add("risk", riskDC[risk])
	return mods
}

// statBonus converts a stat into a roll bonus.
func statBonus(stats map[string]int, kind action.Kind) int {
	name, ok := kindStat[kind]
	if !ok {
		return 0
	}
	v, ok := stats[name]
	if !ok {
		v = 10
	}
	// Floor division so a 9 costs a point like a 8 does.
	d := v - 10
	if d < 0 {
		return (d - 1) / 2
	}
	return d / 2
}

// stressDelta is the stress an action adds: risk tier, plus one on failure;
// rest relieves stress instead.
func stressDelta(kind action.Kind, risk action.Risk, success bool) int {
	if kind == action.KindRest {
		if success {
			return -2
		}
		return -1
	}
	var d int
	switch risk {
	case action.RiskModerate:
		d = 1
	case action.RiskHigh:
		d = 3
	}
	if !success {
		d++
	}
	return d
}

// MoodFor names the mood that goes with a stress level.
func MoodFor(stress int) string {
	switch {
	case stress < 30:
		return "steady"
	case stress < 60:
		return "tense"
	case stress < 85:
		return "shaken"
	default:
		return "breaking"
	}
}
