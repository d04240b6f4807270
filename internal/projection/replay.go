package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/worldstate"
)

// ErrOutOfOrder means the log returned events out of append order.
var ErrOutOfOrder = errors.New("event log out of order")

const replayPage = 500

// EventSource pages through a campaign's log in append order.
type EventSource interface {
	ListEvents(ctx context.Context, campaignID string, afterID int64, limit int, includeHidden bool) ([]event.Event, error)
}

// RebuildTx is the transactional surface a rebuild needs.
type RebuildTx interface {
	EventSource
	Execer
	ResetProjections(ctx context.Context, campaignID string) error
	SaveWorldState(ctx context.Context, campaignID string, doc *worldstate.Document) error
	SetWorldTime(ctx context.Context, campaignID string, minutes int64) error
}

// Applier projects one committed event into entity tables.
type Applier interface {
	Apply(ctx context.Context, exec Execer, evt event.Event) error
}

// Replayed summarizes a replay.
type Replayed struct {
	Doc         *worldstate.Document
	WorldTime   int64
	Events      int
	LastEventID int64
	LastTurn    int64
}

// Replay folds a campaign's full log into a fresh document, calling apply
// (if non-nil) for each event in order.
func Replay(ctx context.Context, src EventSource, campaignID string, folder Folder, apply func(event.Event) error) (Replayed, error) {
	out := Replayed{Doc: worldstate.New()}
	after := int64(0)
	for {
		page, err := src.ListEvents(ctx, campaignID, after, replayPage, true)
		if err != nil {
			return out, fmt.Errorf("list events: %w", err)
		}
		for _, evt := range page {
			if evt.ID <= out.LastEventID {
				return out, fmt.Errorf("%w: id %d after %d", ErrOutOfOrder, evt.ID, out.LastEventID)
			}
			if evt.TurnNumber < out.LastTurn {
				return out, fmt.Errorf("%w: turn %d after %d", ErrOutOfOrder, evt.TurnNumber, out.LastTurn)
			}
			folder.Fold(out.Doc, evt)
			if adv, ok := evt.Payload.(event.WorldTimeAdvance); ok {
				out.WorldTime = adv.To
			}
			if apply != nil {
				if err := apply(evt); err != nil {
					return out, err
				}
			}
			out.LastEventID = evt.ID
			out.LastTurn = evt.TurnNumber
			out.Events++
		}
		if len(page) < replayPage {
			return out, nil
		}
		after = out.LastEventID
	}
}

// Rebuild truncates a campaign's projections and replays its log into them
// through proj (Projector when nil). Keys of live that the fold does not
// model are carried into the rebuilt document. Run it inside a transaction
// so a failed rebuild leaves the old state.
func Rebuild(ctx context.Context, tx RebuildTx, campaignID string, folder Folder, proj Applier, live *worldstate.Document) (Replayed, error) {
	if proj == nil {
		proj = Projector{}
	}
	if err := tx.ResetProjections(ctx, campaignID); err != nil {
		return Replayed{}, fmt.Errorf("reset projections: %w", err)
	}
	res, err := Replay(ctx, tx, campaignID, folder, func(evt event.Event) error {
		return proj.Apply(ctx, tx, evt)
	})
	if err != nil {
		return res, err
	}
	res.Doc.AdoptExtra(live)
	if err := tx.SaveWorldState(ctx, campaignID, res.Doc); err != nil {
		return res, fmt.Errorf("save world state: %w", err)
	}
	if err := tx.SetWorldTime(ctx, campaignID, res.WorldTime); err != nil {
		return res, fmt.Errorf("set world time: %w", err)
	}
	return res, nil
}
