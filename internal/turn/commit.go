package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/persistence"
	"github.com/talgya/chronicle/internal/projection"
	"github.com/talgya/chronicle/internal/worldstate"
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	LoadReadModel(ctx context.Context, campaignID string, recent int) (persistence.ReadModel, error)
	WithTx(ctx context.Context, fn func(*persistence.Tx) error) error
}

// EntityProjector writes normalized entity rows for one committed event.
type EntityProjector interface {
	Apply(ctx context.Context, exec projection.Execer, evt event.Event) error
}

// CommitRequest is everything the coordinator writes for one turn.
type CommitRequest struct {
	CampaignID      string
	Turn            int64
	ExpectedVersion int64
	TimeBefore      int64
	TimeAfter       int64
	// Base is the world-state document before the turn; it is not modified.
	Base   *worldstate.Document
	Drafts []event.Draft
	// Create, when set, inserts the campaign row first (setup turn only).
	Create *persistence.Campaign
}

// Committed is the coordinator's result.
type Committed struct {
	Events  []event.Event
	Doc     *worldstate.Document
	Version int64
}

// coordinator owns the only write path to the event store.
type coordinator struct {
	store     Store
	folder    projection.Folder
	projector EntityProjector
	now       func() time.Time
}

// commit applies a turn in one transaction: advance time, append events,
// project entities, persist the folded document, bump the version. Any
// failure rolls everything back and comes back as a *CommitError.
func (c *coordinator) commit(ctx context.Context, req CommitRequest) (Committed, error) {
	var out Committed
	fail := func(step string, err error) error {
		return &CommitError{CampaignID: req.CampaignID, Turn: req.Turn, Step: step, Err: err}
	}

	err := c.store.WithTx(ctx, func(tx *persistence.Tx) error {
		if req.Create != nil {
			if err := tx.InsertCampaign(ctx, *req.Create); err != nil {
				return fail(StepCreateCampaign, err)
			}
		}

		if req.TimeAfter < req.TimeBefore {
			return fail(StepAdvanceTime, fmt.Errorf("%d -> %d: %w", req.TimeBefore, req.TimeAfter, persistence.ErrTimeRegression))
		}
		if err := tx.AdvanceWorldTime(ctx, req.CampaignID, req.TimeAfter); err != nil {
			return fail(StepAdvanceTime, err)
		}

		evts, err := tx.AppendEvents(ctx, req.CampaignID, req.Turn, req.Drafts, c.now())
		if err != nil {
			return fail(StepAppendEvents, err)
		}

		for _, e := range evts {
			if err := c.projector.Apply(ctx, tx, e); err != nil {
				return fail(StepProject, err)
			}
		}

		doc := worldstate.New()
		if req.Base != nil {
			doc = req.Base.Clone()
		}
		c.folder.FoldAll(doc, evts)
		if err := tx.SaveWorldState(ctx, req.CampaignID, doc); err != nil {
			return fail(StepPersistState, err)
		}

		if err := tx.BumpVersion(ctx, req.CampaignID, req.ExpectedVersion, req.Turn+1); err != nil {
			return fail(StepBumpVersion, err)
		}

		out = Committed{Events: evts, Doc: doc, Version: req.ExpectedVersion + 1}
		return nil
	})
	if err != nil {
		var ce *CommitError
		if errors.As(err, &ce) {
			return Committed{}, err
		}
		return Committed{}, fail("transaction", err)
	}
	return out, nil
}
