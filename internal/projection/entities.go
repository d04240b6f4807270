package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/talgya/chronicle/internal/event"
)

// Execer is the write side of a transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DefaultHealth is the health an NPC starts with when none is given.
const DefaultHealth = 10

// Projector writes normalized character and inventory rows from events.
type Projector struct{}

// Apply projects one event. Events that touch no entity are skipped.
func (Projector) Apply(ctx context.Context, exec Execer, evt event.Event) error {
	var err error
	switch p := evt.Payload.(type) {
	case event.CharacterCreated:
		stats, merr := json.Marshal(p.Stats)
		if merr != nil {
			return fmt.Errorf("encode stats: %w", merr)
		}
		health := p.Health
		if health <= 0 {
			health = DefaultHealth
		}
		_, err = exec.ExecContext(ctx, `INSERT INTO characters
			(campaign_id, id, name, role, location_id, stats_json, health, mood, stress)
			VALUES (?, ?, ?, ?, ?, ?, ?, 'steady', 0)`,
			evt.CampaignID, p.CharacterID, p.Name, p.Role, p.LocationID, string(stats), health)

	case event.CompanionJoined:
		_, err = exec.ExecContext(ctx, `INSERT INTO characters
			(campaign_id, id, name, role, location_id, stats_json, health, relationship_score, mood, stress)
			VALUES (?, ?, ?, ?, '', '{}', ?, ?, 'steady', 0)`,
			evt.CampaignID, p.CompanionID, p.Name, event.RoleNPC, DefaultHealth, p.Affinity)

	case event.NPCIntroduced:
		_, err = exec.ExecContext(ctx, `INSERT OR IGNORE INTO characters
			(campaign_id, id, name, role, location_id, stats_json, health, mood, stress)
			VALUES (?, ?, ?, ?, ?, '{}', ?, 'steady', 0)`,
			evt.CampaignID, p.CharacterID, p.Name, event.RoleNPC, p.LocationID, DefaultHealth)

	case event.Move:
		_, err = exec.ExecContext(ctx,
			`UPDATE characters SET location_id = ? WHERE campaign_id = ? AND id = ?`,
			p.To, evt.CampaignID, p.CharacterID)

	case event.Damage:
		_, err = exec.ExecContext(ctx,
			`UPDATE characters SET health = MAX(0, health - ?) WHERE campaign_id = ? AND id = ?`,
			p.Amount, evt.CampaignID, p.CharacterID)

	case event.ItemChange:
		_, err = exec.ExecContext(ctx, `INSERT INTO inventory (campaign_id, character_id, item, quantity)
			VALUES (?, ?, ?, MAX(0, ?))
			ON CONFLICT(campaign_id, character_id, item)
			DO UPDATE SET quantity = MAX(0, inventory.quantity + ?)`,
			evt.CampaignID, p.CharacterID, p.Item, p.Delta, p.Delta)

	case event.StressChange:
		_, err = exec.ExecContext(ctx,
			`UPDATE characters SET stress = ?, mood = ? WHERE campaign_id = ? AND id = ?`,
			p.Stress, p.Mood, evt.CampaignID, p.CharacterID)

	case event.RelationshipUpdate:
		_, err = exec.ExecContext(ctx,
			`UPDATE characters SET relationship_score = ? WHERE campaign_id = ? AND id = ?`,
			p.Companion.Affinity, evt.CampaignID, p.Companion.ID)

	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("project %s: %w", evt.Type, err)
	}
	return nil
}
