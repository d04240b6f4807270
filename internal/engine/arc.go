// Arc stage tracking and narrative pacing.
package engine

import (
	"math"

	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/worldstate"
)

// Gate is the minimum dwell and narrative weight before leaving a stage.
type Gate struct {
	MinTurns   int `yaml:"min_turns"`
	MinEntries int `yaml:"min_entries"`
}

// DefaultGates are the stock gates keyed by the stage being left.
func DefaultGates() map[worldstate.ArcStage]Gate {
	return map[worldstate.ArcStage]Gate{
		worldstate.ArcSetup:  {MinTurns: 4, MinEntries: 3},
		worldstate.ArcRising: {MinTurns: 8, MinEntries: 8},
		worldstate.ArcClimax: {MinTurns: 5, MinEntries: 12},
	}
}

var baseTension = map[worldstate.ArcStage]float64{
	worldstate.ArcSetup:      0.2,
	worldstate.ArcRising:     0.45,
	worldstate.ArcClimax:     0.85,
	worldstate.ArcResolution: 0.3,
}

var pacingHints = map[worldstate.ArcStage][]string{
	worldstate.ArcSetup:      {"introduce the locals", "plant a hook", "keep stakes personal"},
	worldstate.ArcRising:     {"complicate the plan", "let factions push back", "reveal a cost"},
	worldstate.ArcClimax:     {"force a hard choice", "bring threads together", "no easy exits"},
	worldstate.ArcResolution: {"show consequences", "let companions reflect", "close open threads"},
}

// ArcTracker advances the campaign arc.
type ArcTracker struct {
	Gates map[worldstate.ArcStage]Gate
}

// NewArcTracker returns a tracker; nil gates take the defaults.
func NewArcTracker(gates map[worldstate.ArcStage]Gate) *ArcTracker {
	if gates == nil {
		gates = DefaultGates()
	}
	return &ArcTracker{Gates: gates}
}

// ArcResult is the tracker's output for one turn.
type ArcResult struct {
	State        worldstate.ArcState `json:"state"`
	Transitioned bool                `json:"transitioned"`
	From         worldstate.ArcStage `json:"from,omitempty"`
	Pacing       []string            `json:"pacing"`
	Draft        event.Draft         `json:"-"`
}

// Advance counts one more turn in the current stage and moves forward when
// the stage's gate is met. Stages never move backward.
func (a *ArcTracker) Advance(state worldstate.ArcState, ledger worldstate.Ledger, turn int64) ArcResult {
	if state.Stage == "" {
		state.Stage = worldstate.ArcSetup
	}
	next := state
	next.TurnsInStage++

	var res ArcResult
	if gate, ok := a.Gates[state.Stage]; ok {
		if next.TurnsInStage >= gate.MinTurns && ledger.Entries() >= gate.MinEntries {
			if stage, ok := state.Stage.Next(); ok {
				res.Transitioned = true
				res.From = state.Stage
				next.Stage = stage
				next.TurnsInStage = 0
				next.EnteredTurn = turn
			}
		}
	}
	next.Tension = tension(next)
	res.State = next
	res.Pacing = append([]string(nil), pacingHints[next.Stage]...)
	res.Draft = event.Hidden(event.ArcProgress{State: next, Transitioned: res.Transitioned, From: res.From})
	return res
}

func tension(s worldstate.ArcState) float64 {
	t := baseTension[s.Stage] + math.Min(0.1, float64(s.TurnsInStage)*0.01)
	return math.Round(t*100) / 100
}
