package turn

import (
	"fmt"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/encounter"
	"github.com/talgya/chronicle/internal/engine"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/llm"
	"github.com/talgya/chronicle/internal/persistence"
	"github.com/talgya/chronicle/internal/world"
	"github.com/talgya/chronicle/internal/worldstate"
)

// Packet is the in-memory state of one turn as it moves through the
// stages. Stages read earlier fields and fill their own; none of them
// touches storage.
type Packet struct {
	CampaignID string
	Turn       int64
	Version    int64
	Input      string

	Model      persistence.ReadModel
	Doc        *worldstate.Document
	TimeBefore int64
	TimeAfter  int64
	Location   world.Location

	Intent    action.Intent
	Outcome   *action.Outcome
	Presence  encounter.Result
	Sim       engine.SimResult
	Relations engine.RelationResult
	Arc       engine.ArcResult

	// Tentative is Doc with every staged draft folded in.
	Tentative *worldstate.Document

	Narration         string
	NarrationFallback bool
	Choices           []llm.Choice

	Warnings []Warning
}

func (p *Packet) warn(code, format string, args ...any) {
	p.Warnings = append(p.Warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

// drafts stages events in commit order.
func (p *Packet) drafts() []event.Draft {
	out := []event.Draft{event.Hidden(event.WorldTimeAdvance{
		From:    p.TimeBefore,
		To:      p.TimeAfter,
		Minutes: int(p.TimeAfter - p.TimeBefore),
	})}
	if p.Outcome != nil {
		out = append(out, p.Outcome.Facts...)
	}
	out = append(out, p.Presence.Drafts...)
	out = append(out, p.Sim.Drafts...)
	out = append(out, p.Relations.Drafts...)
	if p.Arc.Draft.Payload != nil {
		out = append(out, p.Arc.Draft)
	}
	// Out-of-character lines stay out of the story log.
	if p.Narration != "" && p.Intent.Category != action.CategoryMeta {
		out = append(out, event.Visible(event.Narration{Text: p.Narration, Fallback: p.NarrationFallback}))
	}
	return out
}

func (p *Packet) scene() llm.SceneContext {
	s := llm.SceneContext{
		Title:      p.Model.Campaign.Title,
		Era:        p.Model.Campaign.Era,
		Turn:       p.Turn,
		Clock:      world.Clock(p.TimeAfter),
		Period:     world.PeriodOf(p.TimeAfter),
		Location:   p.Location,
		Input:      p.Input,
		Intent:     p.Intent,
		Outcome:    p.Outcome,
		Arc:        p.Arc.State.Stage,
		Pacing:     p.Arc.Pacing,
		Companions: p.Tentative.Companions(),
		Ledger:     p.Tentative.Ledger,
	}
	if p.Model.Player != nil {
		s.PlayerName = p.Model.Player.Name
	}
	for _, e := range p.Presence.Present {
		label := e.Name
		if e.Role != "" {
			label += " (" + e.Role + ")"
		}
		s.Present = append(s.Present, label)
	}
	if p.Presence.Introduced != nil {
		s.Introduced = p.Presence.Introduced.Name
	}
	if b := p.Relations.Banter; b != nil {
		s.Banter = append(s.Banter, b.Name+": "+b.Line)
	}
	for _, r := range p.Sim.Rumors {
		s.Rumors = append(s.Rumors, r.Text)
	}
	return s
}
