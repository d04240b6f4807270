package turn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/talgya/chronicle/internal/persistence"
	"github.com/talgya/chronicle/internal/projection"
	"github.com/talgya/chronicle/internal/worldstate"
)

// RebuildReport describes a replay of a campaign's log over its live state.
type RebuildReport struct {
	CampaignID  string `json:"campaign_id"`
	Replayed    int    `json:"replayed"`
	LastTurn    int64  `json:"last_turn"`
	WorldTime   int64  `json:"world_time"`
	DocDrift    bool   `json:"doc_drift"`
	EntityDrift bool   `json:"entity_drift"`
	TimeDrift   bool   `json:"time_drift"`
}

// Drifted reports whether the rebuilt state differs from what was live.
func (r RebuildReport) Drifted() bool {
	return r.DocDrift || r.EntityDrift || r.TimeDrift
}

// Rebuild truncates a campaign's projections, replays its whole log into
// them and reports whether the live state had drifted from the log.
func (p *Pipeline) Rebuild(ctx context.Context, campaignID string) (RebuildReport, error) {
	unlock := p.locks.Lock(campaignID)
	defer unlock()

	rep := RebuildReport{CampaignID: campaignID}
	err := p.store.WithTx(ctx, func(tx *persistence.Tx) error {
		before, err := snapshot(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		res, err := projection.Rebuild(ctx, tx, campaignID, p.folder, p.commits.projector, before.parsed)
		if err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		after, err := snapshot(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		rep.Replayed = res.Events
		rep.LastTurn = res.LastTurn
		rep.WorldTime = res.WorldTime
		rep.DocDrift = !bytes.Equal(before.doc, after.doc)
		rep.EntityDrift = !bytes.Equal(before.entities, after.entities)
		rep.TimeDrift = before.worldTime != after.worldTime
		return nil
	})
	if err != nil {
		return RebuildReport{}, err
	}
	if rep.Drifted() {
		p.log.Warn("rebuild found drift", "campaign", campaignID, "doc", rep.DocDrift, "entities", rep.EntityDrift, "time", rep.TimeDrift)
	} else {
		p.log.Info("rebuild clean", "campaign", campaignID, "events", rep.Replayed)
	}
	return rep, nil
}

type liveState struct {
	parsed    *worldstate.Document
	doc       []byte
	entities  []byte
	worldTime int64
}

func snapshot(ctx context.Context, tx *persistence.Tx, campaignID string) (liveState, error) {
	c, err := tx.Campaign(ctx, campaignID)
	if errors.Is(err, persistence.ErrCampaignNotFound) {
		return liveState{}, fmt.Errorf("%s: %w", campaignID, ErrUnknownCampaign)
	}
	if err != nil {
		return liveState{}, err
	}
	doc, err := c.Document()
	if err != nil {
		return liveState{}, fmt.Errorf("decode world state: %w", err)
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return liveState{}, err
	}
	chars, err := tx.Characters(ctx, campaignID)
	if err != nil {
		return liveState{}, err
	}
	charJSON, err := json.Marshal(chars)
	if err != nil {
		return liveState{}, err
	}
	return liveState{parsed: doc, doc: docJSON, entities: charJSON, worldTime: c.WorldTimeMinutes}, nil
}

// Archive closes a campaign and writes its legacy record. Archived
// campaigns accept no further turns.
func (p *Pipeline) Archive(ctx context.Context, campaignID, summary string) (persistence.LegacyRecord, error) {
	unlock := p.locks.Lock(campaignID)
	defer unlock()

	var rec persistence.LegacyRecord
	err := p.store.WithTx(ctx, func(tx *persistence.Tx) error {
		c, err := tx.Campaign(ctx, campaignID)
		if errors.Is(err, persistence.ErrCampaignNotFound) {
			return fmt.Errorf("%s: %w", campaignID, ErrUnknownCampaign)
		}
		if err != nil {
			return err
		}
		if c.Status == persistence.StatusArchived {
			return fmt.Errorf("%s: %w", campaignID, ErrCampaignArchived)
		}
		rec = persistence.LegacyRecord{
			CampaignID: campaignID,
			Summary:    summary,
			FinalTurn:  c.NextTurnNumber - 1,
			WorldTime:  c.WorldTimeMinutes,
			WorldState: c.WorldState,
			ArchivedAt: p.commits.now().UnixMilli(),
		}
		return tx.Archive(ctx, rec)
	})
	if err != nil {
		return persistence.LegacyRecord{}, err
	}
	p.log.Info("campaign archived", "campaign", campaignID, "final_turn", rec.FinalTurn)
	return rec, nil
}
