package persistence

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/worldstate"
)

// Campaign statuses.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

const campaignColumns = `id, title, era, world_time_minutes, world_state, version, next_turn_number, status, created_at, updated_at`

// Campaign is the aggregate root row.
type Campaign struct {
	ID               string `db:"id" json:"id"`
	Title            string `db:"title" json:"title"`
	Era              string `db:"era" json:"era"`
	WorldTimeMinutes int64  `db:"world_time_minutes" json:"world_time_minutes"`
	WorldState       string `db:"world_state" json:"-"`
	Version          int64  `db:"version" json:"version"`
	NextTurnNumber   int64  `db:"next_turn_number" json:"next_turn_number"`
	Status           string `db:"status" json:"status"`
	CreatedAt        int64  `db:"created_at" json:"created_at"`
	UpdatedAt        int64  `db:"updated_at" json:"updated_at"`
}

// Document decodes the stored world-state document.
func (c Campaign) Document() (*worldstate.Document, error) {
	return worldstate.Parse([]byte(c.WorldState))
}

// Character is a projected character row.
type Character struct {
	CampaignID        string        `db:"campaign_id" json:"-"`
	ID                string        `db:"id" json:"id"`
	Name              string        `db:"name" json:"name"`
	Role              string        `db:"role" json:"role"`
	LocationID        string        `db:"location_id" json:"location_id"`
	StatsJSON         string        `db:"stats_json" json:"-"`
	Health            int           `db:"health" json:"health"`
	RelationshipScore sql.NullInt64 `db:"relationship_score" json:"-"`
	Mood              string        `db:"mood" json:"mood"`
	Stress            int           `db:"stress" json:"stress"`

	Stats     map[string]int `db:"-" json:"stats,omitempty"`
	Score     *int           `db:"-" json:"relationship_score,omitempty"`
	Inventory map[string]int `db:"-" json:"inventory,omitempty"`
}

func (c *Character) decode() {
	c.Stats = map[string]int{}
	if c.StatsJSON != "" {
		_ = json.Unmarshal([]byte(c.StatsJSON), &c.Stats)
	}
	if c.RelationshipScore.Valid {
		s := int(c.RelationshipScore.Int64)
		c.Score = &s
	}
}

// LegacyRecord is the archive entry of a completed campaign.
type LegacyRecord struct {
	CampaignID string `db:"campaign_id" json:"campaign_id"`
	Summary    string `db:"summary" json:"summary"`
	FinalTurn  int64  `db:"final_turn" json:"final_turn"`
	WorldTime  int64  `db:"world_time" json:"world_time"`
	WorldState string `db:"world_state" json:"-"`
	ArchivedAt int64  `db:"archived_at" json:"archived_at"`
}

// ReadModel is everything a turn needs to start.
type ReadModel struct {
	Campaign   Campaign             `json:"campaign"`
	Doc        *worldstate.Document `json:"world_state"`
	Player     *Character           `json:"player,omitempty"`
	Characters []Character          `json:"characters"`
	Recent     []event.Event        `json:"recent"`
}

// NPCsAt returns the non-player characters at a location.
func (m ReadModel) NPCsAt(locationID string) []Character {
	var out []Character
	for _, c := range m.Characters {
		if c.Role != event.RolePlayer && c.LocationID == locationID {
			out = append(out, c)
		}
	}
	return out
}

type eventRow struct {
	ID          int64  `db:"id"`
	CampaignID  string `db:"campaign_id"`
	TurnNumber  int64  `db:"turn_number"`
	Type        string `db:"event_type"`
	Payload     string `db:"payload"`
	Hidden      bool   `db:"is_hidden"`
	PublicRumor bool   `db:"is_public_rumor"`
	Timestamp   int64  `db:"timestamp"`
}

func (r eventRow) decode() (event.Event, error) {
	t := event.Type(r.Type)
	p, err := event.Decode(t, []byte(r.Payload))
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		ID:          r.ID,
		CampaignID:  r.CampaignID,
		TurnNumber:  r.TurnNumber,
		Type:        t,
		Payload:     p,
		Hidden:      r.Hidden,
		PublicRumor: r.PublicRumor,
		Timestamp:   time.UnixMilli(r.Timestamp).UTC(),
	}, nil
}
