package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/worldstate"
)

// Tx is the write handle of one commit. It is only ever passed as an
// argument and never outlives WithTx.
type Tx struct {
	tx *sqlx.Tx
}

// ExecContext runs a statement inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// Campaign loads a campaign row as seen by this transaction.
func (t *Tx) Campaign(ctx context.Context, id string) (Campaign, error) {
	return getCampaign(ctx, t.tx, id)
}

// InsertCampaign creates the campaign row at version 0.
func (t *Tx) InsertCampaign(ctx context.Context, c Campaign) error {
	now := time.Now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = StatusActive
	}
	if c.WorldState == "" {
		c.WorldState = "{}"
	}
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO campaigns (`+campaignColumns+`)
		VALUES (:id, :title, :era, :world_time_minutes, :world_state, :version, :next_turn_number, :status, :created_at, :updated_at)`, c)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// AdvanceWorldTime moves the campaign clock to minutes. Moving it backward
// fails with ErrTimeRegression.
func (t *Tx) AdvanceWorldTime(ctx context.Context, campaignID string, minutes int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE campaigns SET world_time_minutes = ? WHERE id = ? AND world_time_minutes <= ?`,
		minutes, campaignID, minutes)
	if err != nil {
		return fmt.Errorf("advance world time: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance world time: %w", err)
	}
	if n == 0 {
		if _, err := t.Campaign(ctx, campaignID); err != nil {
			return err
		}
		return fmt.Errorf("advance to %d: %w", minutes, ErrTimeRegression)
	}
	return nil
}

// SetWorldTime overwrites the campaign clock. Only rebuilds use it.
func (t *Tx) SetWorldTime(ctx context.Context, campaignID string, minutes int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE campaigns SET world_time_minutes = ? WHERE id = ?`, minutes, campaignID)
	if err != nil {
		return fmt.Errorf("set world time: %w", err)
	}
	return nil
}

// AppendEvents writes drafts to the log in order and returns them as
// committed events.
func (t *Tx) AppendEvents(ctx context.Context, campaignID string, turn int64, drafts []event.Draft, at time.Time) ([]event.Event, error) {
	out := make([]event.Event, 0, len(drafts))
	ts := at.UTC().UnixMilli()
	for _, d := range drafts {
		payload, err := event.Encode(d.Payload)
		if err != nil {
			return nil, err
		}
		res, err := t.tx.ExecContext(ctx, `INSERT INTO turn_events
			(campaign_id, turn_number, event_type, payload, is_hidden, is_public_rumor, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			campaignID, turn, string(d.Type()), string(payload), d.Hidden, d.PublicRumor, ts)
		if err != nil {
			return nil, fmt.Errorf("append %s: %w", d.Type(), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("append %s: %w", d.Type(), err)
		}
		out = append(out, event.Event{
			ID:          id,
			CampaignID:  campaignID,
			TurnNumber:  turn,
			Type:        d.Type(),
			Payload:     d.Payload,
			Hidden:      d.Hidden,
			PublicRumor: d.PublicRumor,
			Timestamp:   time.UnixMilli(ts).UTC(),
		})
	}
	return out, nil
}

// SaveWorldState persists the folded world-state document.
func (t *Tx) SaveWorldState(ctx context.Context, campaignID string, doc *worldstate.Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode world state: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE campaigns SET world_state = ? WHERE id = ?`, string(b), campaignID)
	if err != nil {
		return fmt.Errorf("save world state: %w", err)
	}
	return nil
}

// BumpVersion increments the campaign version if it still equals expected
// and sets the next turn number. A stale expected version fails with
// ErrVersionConflict.
func (t *Tx) BumpVersion(ctx context.Context, campaignID string, expected, nextTurn int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE campaigns
		SET version = version + 1, next_turn_number = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		nextTurn, time.Now().UnixMilli(), campaignID, expected)
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expected version %d: %w", expected, ErrVersionConflict)
	}
	return nil
}

// ListEvents pages through the log as seen by this transaction.
func (t *Tx) ListEvents(ctx context.Context, campaignID string, afterID int64, limit int, includeHidden bool) ([]event.Event, error) {
	return listEvents(ctx, t.tx, campaignID, afterID, limit, includeHidden)
}

// Characters loads projected characters as seen by this transaction.
func (t *Tx) Characters(ctx context.Context, campaignID string) ([]Character, error) {
	return listCharacters(ctx, t.tx, campaignID)
}

// ResetProjections clears a campaign's entity projections before a rebuild.
func (t *Tx) ResetProjections(ctx context.Context, campaignID string) error {
	for _, q := range []string{
		`DELETE FROM inventory WHERE campaign_id = ?`,
		`DELETE FROM characters WHERE campaign_id = ?`,
	} {
		if _, err := t.tx.ExecContext(ctx, q, campaignID); err != nil {
			return fmt.Errorf("reset projections: %w", err)
		}
	}
	return nil
}

// Archive writes the legacy record and marks the campaign completed.
func (t *Tx) Archive(ctx context.Context, rec LegacyRecord) error {
	if rec.ArchivedAt == 0 {
		rec.ArchivedAt = time.Now().UnixMilli()
	}
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO legacy_records
		(campaign_id, summary, final_turn, world_time, world_state, archived_at)
		VALUES (:campaign_id, :summary, :final_turn, :world_time, :world_state, :archived_at)`, rec)
	if err != nil {
		return fmt.Errorf("insert legacy record: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE campaigns SET status = ? WHERE id = ?`, StatusArchived, rec.CampaignID)
	if err != nil {
		return fmt.Errorf("archive campaign: %w", err)
	}
	return nil
}
