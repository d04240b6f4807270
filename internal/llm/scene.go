package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/social"
	"github.com/talgya/chronicle/internal/world"
	"github.com/talgya/chronicle/internal/worldstate"
)

// SceneContext is everything a narrator may know about the committed turn.
type SceneContext struct {
	Title      string
	Era        string
	Turn       int64
	Clock      string
	Period     world.Period
	Location   world.Location
	PlayerName string
	Input      string
	Intent     action.Intent
	Outcome    *action.Outcome
	Present    []string
	Introduced string
	Companions []social.Companion
	Banter     []string
	Rumors     []string
	Arc        worldstate.ArcStage
	Pacing     []string
	Ledger     worldstate.Ledger
}

// Narrator turns a resolved scene into prose.
type Narrator interface {
	Narrate(ctx context.Context, scene SceneContext) (string, error)
}

// Suggester proposes the player's next choices.
type Suggester interface {
	Suggest(ctx context.Context, scene SceneContext, n int) ([]Choice, error)
}

// Choice is one suggested next action.
type Choice struct {
	Text string      `json:"text"`
	Tone action.Tone `json:"tone"`
	Risk action.Risk `json:"risk"`
}

func buildScenePrompt(s SceneContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CAMPAIGN: %s", s.Title)
	if s.Era != "" {
		fmt.Fprintf(&b, " (%s)", s.Era)
	}
	fmt.Fprintf(&b, "\nTIME: %s, %s\n", s.Clock, s.Period)
	fmt.Fprintf(&b, "LOCATION: %s\n", s.Location.Name)
	fmt.Fprintf(&b, "ARC STAGE: %s\n\n", s.Arc)

	fmt.Fprintf(&b, "PLAYER (%s) SAID OR DID: %s\n", s.PlayerName, s.Input)
	if o := s.Outcome; o != nil {
		result := "FAILURE"
		if o.Success {
			result = "SUCCESS"
		}
		fmt.Fprintf(&b, "MECHANICAL RESULT: %s (%s, risk %s)", result, o.Kind, o.Risk)
		if o.Critical != action.CriticalNone {
			fmt.Fprintf(&b, " [%s]", o.Critical)
		}
		fmt.Fprintf(&b, "\n%s\n", o.Summary)
	}
	b.WriteString("\n")

	if len(s.Present) > 0 {
		fmt.Fprintf(&b, "PRESENT: %s\n", strings.Join(s.Present, ", "))
	}
	if s.Introduced != "" {
		fmt.Fprintf(&b, "NEWLY ARRIVED: %s\n", s.Introduced)
	}
	if len(s.Companions) > 0 {
		b.WriteString("COMPANIONS:\n")
		for _, c := range s.Companions {
			fmt.Fprintf(&b, "- %s (%s)\n", c.Name, c.Stage)
		}
	}
	if len(s.Banter) > 0 {
		b.WriteString("BANTER:\n")
		for _, l := range s.Banter {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	if len(s.Rumors) > 0 {
		b.WriteString("RUMORS HEARD:\n")
		for i, r := range s.Rumors {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(s.Ledger.Constraints) > 0 {
		b.WriteString("MUST RESPECT:\n")
		for _, c := range s.Ledger.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if len(s.Ledger.OpenThreads) > 0 {
		b.WriteString("OPEN THREADS:\n")
		for _, t := range s.Ledger.OpenThreads {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	if len(s.Pacing) > 0 {
		fmt.Fprintf(&b, "PACING: %s\n", strings.Join(s.Pacing, "; "))
	}
	return b.String()
}
