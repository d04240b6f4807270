package turn

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/chronicle/internal/engine"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/mechanics"
	"github.com/talgya/chronicle/internal/persistence"
	"github.com/talgya/chronicle/internal/social"
	"github.com/talgya/chronicle/internal/world"
	"github.com/talgya/chronicle/internal/worldstate"
)

// DefaultStartMinutes is 08:00 on day one.
const DefaultStartMinutes = 8 * world.MinutesPerHour

// Setup describes a new campaign.
type Setup struct {
	ID           string           `json:"id,omitempty"`
	Title        string           `json:"title"`
	Era          string           `json:"era,omitempty"`
	StartMinutes int64            `json:"start_minutes,omitempty"`
	Player       PlayerSeed       `json:"player"`
	Companions   []CompanionSeed  `json:"companions,omitempty"`
	NPCs         []NPCSeed        `json:"npcs,omitempty"`
	Locations    []world.Location `json:"locations,omitempty"`
	Factions     []social.Faction `json:"factions,omitempty"`
}

// PlayerSeed is the player character at setup.
type PlayerSeed struct {
	Name       string         `json:"name"`
	Stats      map[string]int `json:"stats,omitempty"`
	Health     int            `json:"health,omitempty"`
	LocationID string         `json:"location_id,omitempty"`
}

// CompanionSeed is a companion who starts in the party.
type CompanionSeed struct {
	ID       string        `json:"id,omitempty"`
	Name     string        `json:"name"`
	Traits   social.Traits `json:"traits"`
	Affinity int           `json:"affinity"`
}

// NPCSeed is a named NPC placed at setup.
type NPCSeed struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Role       string `json:"role,omitempty"`
	Summary    string `json:"summary,omitempty"`
	LocationID string `json:"location_id"`
}

// CreateCampaign commits turn zero: the campaign row and every setup fact
// as events, through the same coordinator as ordinary turns.
func (p *Pipeline) CreateCampaign(ctx context.Context, s Setup) (persistence.ReadModel, error) {
	start := s.StartMinutes
	if start <= 0 {
		start = DefaultStartMinutes
	}
	drafts, err := s.drafts(start)
	if err != nil {
		return persistence.ReadModel{}, err
	}
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}

	unlock := p.locks.Lock(id)
	defer unlock()

	committed, err := p.commits.commit(ctx, CommitRequest{
		CampaignID: id,
		Turn:       0,
		TimeBefore: start,
		TimeAfter:  start,
		Base:       worldstate.New(),
		Drafts:     append(drafts, event.Hidden(event.WorldTimeAdvance{From: start, To: start})),
		Create: &persistence.Campaign{
			ID:               id,
			Title:            strings.TrimSpace(s.Title),
			Era:              s.Era,
			WorldTimeMinutes: start,
		},
	})
	if err != nil {
		return persistence.ReadModel{}, err
	}
	p.log.Info("campaign created", "campaign", id, "title", s.Title, "events", len(committed.Events))
	return p.store.LoadReadModel(ctx, id, p.opts.RecentEvents)
}

func (s Setup) drafts(startMinutes int64) ([]event.Draft, error) {
	if strings.TrimSpace(s.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidSetup)
	}
	if strings.TrimSpace(s.Player.Name) == "" {
		return nil, fmt.Errorf("%w: player name is required", ErrInvalidSetup)
	}

	locs := s.Locations
	if len(locs) == 0 {
		locs = world.StarterMap()
	}
	known := make(map[string]bool, len(locs))
	var out []event.Draft
	for _, l := range locs {
		if l.ID == "" || known[l.ID] {
			return nil, fmt.Errorf("%w: location ids must be unique and non-empty", ErrInvalidSetup)
		}
		known[l.ID] = true
		out = append(out, event.Hidden(event.LocationRegistered{Location: l.Clone()}))
	}

	start := s.Player.LocationID
	if start == "" {
		start = locs[0].ID
	}
	if !known[start] {
		return nil, fmt.Errorf("%w: unknown start location %q", ErrInvalidSetup, start)
	}
	stats := s.Player.Stats
	if len(stats) == 0 {
		stats = mechanics.DefaultStats()
	}
	out = append(out, event.Visible(event.CharacterCreated{
		CharacterID: uuid.NewString(),
		Name:        s.Player.Name,
		Role:        event.RolePlayer,
		LocationID:  start,
		Stats:       stats,
		Health:      s.Player.Health,
	}))

	for _, n := range s.NPCs {
		if !known[n.LocationID] {
			return nil, fmt.Errorf("%w: npc %q at unknown location %q", ErrInvalidSetup, n.Name, n.LocationID)
		}
		id := n.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, event.Visible(event.CharacterCreated{
			CharacterID: id,
			Name:        n.Name,
			Role:        event.RoleNPC,
			LocationID:  n.LocationID,
			Summary:     n.Summary,
			Occupation:  strings.TrimSpace(n.Role),
		}))
	}

	for _, c := range s.Companions {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, event.Visible(event.CompanionJoined{
			CompanionID: id,
			Name:        c.Name,
			Traits:      c.Traits.Clamp(),
			Affinity:    social.ClampAffinity(c.Affinity),
		}))
	}

	factions := s.Factions
	if len(factions) == 0 {
		factions = social.SeedFactions()
	}
	out = append(out, engine.SeedDraft(factions, startMinutes))
	return out, nil
}
