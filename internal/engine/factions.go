// Faction dynamics: goal progress and seeded resource drift.
package engine

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ojrac/opensimplex-go"

	"github.com/talgya/chronicle/internal/social"
)

// advanceFaction moves a faction one step toward its goal. Resource drift
// follows simplex noise over tick index, so a faction's fortunes rise and
// fall in runs rather than jittering. Returns the goal it completed, if any.
func advanceFaction(f *social.Faction, idx int, noise opensimplex.Noise, tick int64, rng *rand.Rand) string {
	drift := noise.Eval2(float64(tick)*0.35, float64(idx)*1.7) // -1..1

	gain := 3 + int(math.Round(drift*4)) + f.Resources/25 + rng.Intn(3)
	if gain < 0 {
		gain = 0
	}
	f.Progress = clampInt(f.Progress+gain, 0, 100)
	f.Resources = clampInt(f.Resources+int(math.Round(drift*3)), 0, 100)

	if f.Progress < 100 {
		return ""
	}
	done := f.Goal
	f.GoalIndex++
	f.Goal = social.GoalFor(f.Kind, f.GoalIndex)
	f.Progress = 0
	f.Resources = clampInt(f.Resources-10, 0, 100)
	return done
}

func completedRumor(f social.Faction, goal string) string {
	return fmt.Sprintf("Word spreads that %s managed to %s.", f.Name, goal)
}

var progressTemplates = []string{
	"Whispers say %s moves to %s.",
	"Travelers claim %s is pouring coin into a plan to %s.",
	"A drunk swears %s will %s before the season turns.",
}

func progressRumor(f social.Faction, rng *rand.Rand) string {
	tmpl := progressTemplates[rng.Intn(len(progressTemplates))]
	return fmt.Sprintf(tmpl, f.Name, f.Goal)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
