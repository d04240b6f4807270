package turn

import (
	"context"
	"time"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/llm"
)

const observerTimeout = 2 * time.Second

// Summary is what observers hear about a committed turn. It carries only
// player-visible events.
type Summary struct {
	CampaignID string          `json:"campaign_id"`
	Turn       int64           `json:"turn"`
	Version    int64           `json:"version"`
	WorldTime  int64           `json:"world_time"`
	Clock      string          `json:"clock"`
	Category   action.Category `json:"category"`
	Narration  string          `json:"narration"`
	Choices    []llm.Choice    `json:"choices"`
	Events     []event.Event   `json:"events"`
}

// Observer is told about each committed turn. Its errors become warnings;
// they never undo the commit.
type Observer interface {
	TurnCommitted(ctx context.Context, s Summary) error
}

// Summary returns the observer view of the result.
func (r *Result) Summary() Summary {
	return Summary{
		CampaignID: r.CampaignID,
		Turn:       r.Turn,
		Version:    r.Version,
		WorldTime:  r.WorldTime,
		Clock:      r.Clock,
		Category:   r.Intent.Category,
		Narration:  r.Narration,
		Choices:    r.Choices,
		Events:     r.Events,
	}
}

func (p *Pipeline) notify(ctx context.Context, res *Result) {
	if len(p.observers) == 0 {
		return
	}
	s := res.Summary()
	for _, o := range p.observers {
		octx, cancel := context.WithTimeout(ctx, observerTimeout)
		err := o.TurnCommitted(octx, s)
		cancel()
		if err != nil {
			p.log.Warn("observer failed", "campaign", res.CampaignID, "turn", res.Turn, "error", err)
			res.Warnings = append(res.Warnings, Warning{Code: WarnObserverFailed, Message: err.Error()})
		}
	}
}
