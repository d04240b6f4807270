package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/chronicle/internal/event"
)

// Shared by DB and Tx so reads inside a commit see uncommitted rows.

func getCampaign(ctx context.Context, q sqlx.QueryerContext, id string) (Campaign, error) {
	var c Campaign
	err := sqlx.GetContext(ctx, q, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("campaign %s: %w", id, ErrCampaignNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("load campaign: %w", err)
	}
	return c, nil
}

func listEvents(ctx context.Context, q sqlx.QueryerContext, campaignID string, afterID int64, limit int, includeHidden bool) ([]event.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT id, campaign_id, turn_number, event_type, payload, is_hidden, is_public_rumor, timestamp
		FROM turn_events WHERE campaign_id = ? AND id > ?`
	if !includeHidden {
		query += ` AND is_hidden = 0`
	}
	query += ` ORDER BY id LIMIT ?`

	var rows []eventRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, campaignID, afterID, limit); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return decodeRows(rows)
}

func recentEvents(ctx context.Context, q sqlx.QueryerContext, campaignID string, limit int) ([]event.Event, error) {
	var rows []eventRow
	err := sqlx.SelectContext(ctx, q, &rows, `SELECT * FROM (
			SELECT id, campaign_id, turn_number, event_type, payload, is_hidden, is_public_rumor, timestamp
			FROM turn_events WHERE campaign_id = ? AND is_hidden = 0 ORDER BY id DESC LIMIT ?
		) ORDER BY id`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return decodeRows(rows)
}

func decodeRows(rows []eventRow) ([]event.Event, error) {
	out := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		e, err := r.decode()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", r.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func listCharacters(ctx context.Context, q sqlx.QueryerContext, campaignID string) ([]Character, error) {
	var chars []Character
	err := sqlx.SelectContext(ctx, q, &chars, `SELECT campaign_id, id, name, role, location_id, stats_json,
		health, relationship_score, mood, stress
		FROM characters WHERE campaign_id = ? ORDER BY id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}

	var inv []struct {
		CharacterID string `db:"character_id"`
		Item        string `db:"item"`
		Quantity    int    `db:"quantity"`
	}
	err = sqlx.SelectContext(ctx, q, &inv, `SELECT character_id, item, quantity FROM inventory
		WHERE campaign_id = ? AND quantity > 0 ORDER BY character_id, item`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	byID := make(map[string]int, len(chars))
	for i := range chars {
		chars[i].decode()
		byID[chars[i].ID] = i
	}
	for _, row := range inv {
		i, ok := byID[row.CharacterID]
		if !ok {
			continue
		}
		if chars[i].Inventory == nil {
			chars[i].Inventory = map[string]int{}
		}
		chars[i].Inventory[row.Item] = row.Quantity
	}
	return chars, nil
}

// ListEvents pages through a campaign's log in append order.
func (db *DB) ListEvents(ctx context.Context, campaignID string, afterID int64, limit int, includeHidden bool) ([]event.Event, error) {
	return listEvents(ctx, db.conn, campaignID, afterID, limit, includeHidden)
}

// RecentEvents returns the last limit player-visible events, oldest first.
func (db *DB) RecentEvents(ctx context.Context, campaignID string, limit int) ([]event.Event, error) {
	return recentEvents(ctx, db.conn, campaignID, limit)
}

// CountEvents returns the total number of events in a campaign's log.
func (db *DB) CountEvents(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM turn_events WHERE campaign_id = ?`, campaignID)
	return n, err
}

// LoadReadModel assembles the campaign, its world-state document, projected
// characters and recent visible history.
func (db *DB) LoadReadModel(ctx context.Context, campaignID string, recent int) (ReadModel, error) {
	var m ReadModel
	c, err := getCampaign(ctx, db.conn, campaignID)
	if err != nil {
		return m, err
	}
	doc, err := c.Document()
	if err != nil {
		return m, fmt.Errorf("decode world state: %w", err)
	}
	chars, err := listCharacters(ctx, db.conn, campaignID)
	if err != nil {
		return m, err
	}
	m = ReadModel{Campaign: c, Doc: doc, Characters: chars}
	for i := range chars {
		if chars[i].ID == doc.PlayerID {
			m.Player = &chars[i]
			break
		}
	}
	if recent > 0 {
		if m.Recent, err = recentEvents(ctx, db.conn, campaignID, recent); err != nil {
			return m, err
		}
	}
	return m, nil
}
