// Package event defines the turn event log: the closed set of event types,
// their typed payloads, and the drafts pipeline stages stage before commit.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies an event kind in the log.
type Type string

const (
	TypeCharacterCreated      Type = "character_created"
	TypeCompanionJoined       Type = "companion_joined"
	TypeLocationRegistered    Type = "location_registered"
	TypeMove                  Type = "move"
	TypeDamage                Type = "damage"
	TypeItemChange            Type = "item_change"
	TypeFlagSet               Type = "flag_set"
	TypeStressChange          Type = "stress_change"
	TypeRumor                 Type = "rumor"
	TypeDialogue              Type = "dialogue"
	TypeNarration             Type = "narration"
	TypeNPCIntroduced         Type = "npc_introduced"
	TypeFactionTick           Type = "faction_tick"
	TypeRelationshipUpdate    Type = "relationship_update"
	TypeRelationshipMilestone Type = "relationship_milestone"
	TypeBanter                Type = "banter"
	TypeArcProgress           Type = "arc_progress"
	TypeWorldTimeAdvance      Type = "world_time_advance"
)

// registry builds an empty payload for each known type.
var registry = map[Type]func() Payload{
	TypeCharacterCreated:      func() Payload { return &CharacterCreated{} },
	TypeCompanionJoined:       func() Payload { return &CompanionJoined{} },
	TypeLocationRegistered:    func() Payload { return &LocationRegistered{} },
	TypeMove:                  func() Payload { return &Move{} },
	TypeDamage:                func() Payload { return &Damage{} },
	TypeItemChange:            func() Payload { return &ItemChange{} },
	TypeFlagSet:               func() Payload { return &FlagSet{} },
	TypeStressChange:          func() Payload { return &StressChange{} },
	TypeRumor:                 func() Payload { return &Rumor{} },
	TypeDialogue:              func() Payload { return &Dialogue{} },
	TypeNarration:             func() Payload { return &Narration{} },
	TypeNPCIntroduced:         func() Payload { return &NPCIntroduced{} },
	TypeFactionTick:           func() Payload { return &FactionTick{} },
	TypeRelationshipUpdate:    func() Payload { return &RelationshipUpdate{} },
	TypeRelationshipMilestone: func() Payload { return &RelationshipMilestone{} },
	TypeBanter:                func() Payload { return &Banter{} },
	TypeArcProgress:           func() Payload { return &ArcProgress{} },
	TypeWorldTimeAdvance:      func() Payload { return &WorldTimeAdvance{} },
}

// Known reports whether t is part of the closed set this build understands.
func (t Type) Known() bool {
	_, ok := registry[t]
	return ok
}

// Payload is the typed body of an event.
type Payload interface {
	EventType() Type
}

// Unknown carries a payload whose type this build does not understand.
// Projections skip it; encoding reproduces the original bytes.
type Unknown struct {
	Type Type
	Raw  json.RawMessage
}

// EventType implements Payload.
func (u Unknown) EventType() Type { return u.Type }

// MarshalJSON returns the original payload bytes.
func (u Unknown) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return []byte("null"), nil
	}
	return u.Raw, nil
}

// Event is one immutable entry in a campaign's turn log.
type Event struct {
	ID          int64     `json:"id"`
	CampaignID  string    `json:"campaign_id"`
	TurnNumber  int64     `json:"turn_number"`
	Type        Type      `json:"event_type"`
	Payload     Payload   `json:"payload"`
	Hidden      bool      `json:"is_hidden"`
	PublicRumor bool      `json:"is_public_rumor"`
	Timestamp   time.Time `json:"timestamp"`
}

// UnmarshalJSON decodes the payload by the event's type.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var aux struct {
		plain
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Event(aux.plain)
	e.Payload = nil
	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		return nil
	}
	p, err := Decode(e.Type, aux.Payload)
	if err != nil {
		return err
	}
	e.Payload = p
	return nil
}

// Draft is an event staged by a pipeline stage but not yet committed.
type Draft struct {
	Payload     Payload `json:"payload"`
	Hidden      bool    `json:"is_hidden"`
	PublicRumor bool    `json:"is_public_rumor"`
}

// Type returns the draft's event type.
func (d Draft) Type() Type {
	if d.Payload == nil {
		return ""
	}
	return d.Payload.EventType()
}

// Visible returns a player-visible draft.
func Visible(p Payload) Draft { return Draft{Payload: p} }

// Hidden returns a bookkeeping draft kept out of player history.
func Hidden(p Payload) Draft { return Draft{Payload: p, Hidden: true} }

// PublicRumor returns a draft flagged for the public news feed.
func PublicRumor(p Payload) Draft { return Draft{Payload: p, PublicRumor: true} }

// Encode serializes a payload for storage.
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("encode payload: nil payload")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.EventType(), err)
	}
	return b, nil
}

// Decode parses a stored payload. Unknown types never fail: they come back
// as Unknown so consumers can skip them.
func Decode(t Type, raw []byte) (Payload, error) {
	ctor, ok := registry[t]
	if !ok {
		return Unknown{Type: t, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	p := ctor()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}
	return deref(p), nil
}

// deref converts the pointer built by the registry into the value type the
// rest of the code switches on.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *CharacterCreated:
		return *v
	case *CompanionJoined:
		return *v
	case *LocationRegistered:
		return *v
	case *Move:
		return *v
	case *Damage:
		return *v
	case *ItemChange:
		return *v
	case *FlagSet:
		return *v
	case *StressChange:
		return *v
	case *Rumor:
		return *v
	case *Dialogue:
		return *v
	case *Narration:
		return *v
	case *NPCIntroduced:
		return *v
	case *FactionTick:
		return *v
	case *RelationshipUpdate:
		return *v
	case *RelationshipMilestone:
		return *v
	case *Banter:
		return *v
	case *ArcProgress:
		return *v
	case *WorldTimeAdvance:
		return *v
	}
	return p
}
