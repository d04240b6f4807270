// Package projection derives read models from the turn event log.
//
// The world-state document is a pure fold over events, and the normalized
// character and inventory tables are written by an entity projector over the
// same events. Rebuilding a campaign from an empty projection therefore
// reproduces exactly what live turns produced.
package projection

import (
	"fmt"
	"strings"

	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/social"
	"github.com/talgya/chronicle/internal/worldstate"
)

// Flag key prefixes with ledger meaning.
const (
	ConstraintPrefix = "constraint:"
	ThreadPrefix     = "thread:"
)

// Folder folds events into a world-state document.
type Folder struct {
	Limits worldstate.Limits
}

// NewFolder returns a folder with the given caps; zero caps take defaults.
func NewFolder(limits worldstate.Limits) Folder {
	return Folder{Limits: limits.WithDefaults()}
}

// FoldAll folds events in order.
func (f Folder) FoldAll(doc *worldstate.Document, evts []event.Event) {
	for _, e := range evts {
		f.Fold(doc, e)
	}
}

// FoldDrafts folds staged drafts as if they were committed in turn.
func (f Folder) FoldDrafts(doc *worldstate.Document, campaignID string, turn int64, drafts []event.Draft) {
	for _, d := range drafts {
		f.Fold(doc, event.Event{
			CampaignID:  campaignID,
			TurnNumber:  turn,
			Type:        d.Type(),
			Payload:     d.Payload,
			Hidden:      d.Hidden,
			PublicRumor: d.PublicRumor,
		})
	}
}

// Fold applies one event to doc. Event types with no bearing on the
// document, and unknown types, are ignored.
func (f Folder) Fold(doc *worldstate.Document, evt event.Event) {
	lim := f.Limits.WithDefaults()

	switch p := evt.Payload.(type) {
	case event.CharacterCreated:
		if p.Role == event.RolePlayer {
			doc.PlayerID = p.CharacterID
			doc.LastLocationID = p.LocationID
			return
		}
		doc.KnownNPCs[p.CharacterID] = worldstate.KnownNPC{
			ID:         p.CharacterID,
			Name:       p.Name,
			Role:       p.Occupation,
			LocationID: p.LocationID,
			Summary:    p.Summary,
		}

	case event.CompanionJoined:
		aff := social.ClampAffinity(p.Affinity)
		doc.PutCompanion(social.Companion{
			ID:       p.CompanionID,
			Name:     p.Name,
			Traits:   p.Traits.Clamp(),
			Affinity: aff,
			Stage:    social.StageFor(aff),
		})

	case event.LocationRegistered:
		doc.Locations[p.Location.ID] = p.Location.Clone()

	case event.Move:
		if p.CharacterID == doc.PlayerID {
			doc.LastLocationID = p.To
			name := p.To
			if l, ok := doc.Locations[p.To]; ok {
				name = l.Name
			}
			doc.Ledger.AddFact("arrived at "+name, lim.Facts)
			return
		}
		if npc, ok := doc.KnownNPCs[p.CharacterID]; ok {
			npc.LocationID = p.To
			doc.KnownNPCs[p.CharacterID] = npc
		}

	case event.ItemChange:
		if p.CharacterID != doc.PlayerID {
			return
		}
		verb := "acquired"
		if p.Delta < 0 {
			verb = "lost"
		}
		doc.Ledger.AddFact(verb+" "+p.Item, lim.Facts)

	case event.FlagSet:
		switch {
		case strings.HasPrefix(p.Key, ConstraintPrefix):
			doc.Ledger.AddConstraint(p.Value, lim.Constraints)
		case strings.HasPrefix(p.Key, ThreadPrefix):
			thread := strings.TrimPrefix(p.Key, ThreadPrefix)
			if p.Value == "closed" {
				doc.Ledger.CloseThread(thread)
			} else {
				doc.Ledger.OpenThread(thread, lim.Threads)
			}
		default:
			doc.Flags[p.Key] = p.Value
			if !evt.Hidden {
				doc.Ledger.AddFact(fmt.Sprintf("%s %s", p.Key, p.Value), lim.Facts)
			}
		}

	case event.Rumor:
		doc.NewsFeed = append(doc.NewsFeed, worldstate.NewsItem{
			Turn:      evt.TurnNumber,
			WorldTime: p.WorldTime,
			Text:      p.Text,
			FactionID: p.FactionID,
		})
		if len(doc.NewsFeed) > lim.NewsFeed {
			doc.NewsFeed = append([]worldstate.NewsItem(nil), doc.NewsFeed[len(doc.NewsFeed)-lim.NewsFeed:]...)
		}

	case event.NPCIntroduced:
		doc.KnownNPCs[p.CharacterID] = worldstate.KnownNPC{
			ID:         p.CharacterID,
			Name:       p.Name,
			Role:       p.Role,
			LocationID: p.LocationID,
			Summary:    p.Summary,
		}
		doc.IntroducedNPCs[p.CharacterID] = p.LocationID
		doc.IntroductionLog = append(doc.IntroductionLog, worldstate.Introduction{
			NPCID:      p.CharacterID,
			LocationID: p.LocationID,
			WorldTime:  p.WorldTime,
			Turn:       evt.TurnNumber,
		})
		if len(doc.IntroductionLog) > lim.Introductions {
			doc.IntroductionLog = append([]worldstate.Introduction(nil), doc.IntroductionLog[len(doc.IntroductionLog)-lim.Introductions:]...)
		}
		desc := p.Name
		if p.Role != "" {
			desc += ", " + p.Role
		}
		doc.Ledger.AddFact("met "+desc, lim.Facts)

	case event.FactionTick:
		doc.ActiveFactions = social.CloneFactions(p.Factions)
		if p.Trigger != "setup" {
			doc.SimLastTurn = evt.TurnNumber
		}

	case event.RelationshipUpdate:
		doc.PutCompanion(p.Companion.Clone())

	case event.RelationshipMilestone:
		if _, ok := doc.PartyRoster[p.CompanionID]; !ok {
			return
		}
		c := doc.Companion(p.CompanionID).WithMilestone(p.Milestone)
		doc.PutCompanion(c)
		name := c.Name
		if name == "" {
			name = c.ID
		}
		switch p.Milestone {
		case social.MilestoneCompanionRequest:
			doc.Ledger.OpenThread(name+" has asked something of the party", lim.Threads)
		case social.MilestonePersonalQuest:
			doc.Ledger.OpenThread(name+"'s personal quest", lim.Threads)
		case social.MilestoneConfrontation:
			doc.Ledger.AddFact(name+" confronted the party", lim.Facts)
		}

	case event.ArcProgress:
		doc.Arc = p.State
	}
}
